// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"log"
	"log/slog"
	"math/rand"
	"time"

	"github.com/AleutianAI/swiftcart/services/pulse"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	mockPort     int
	mockProducts int
	mockInterval time.Duration
	mockHitRate  float64

	mockPulseCmd = &cobra.Command{
		Use:   "mock-pulse",
		Short: "Run an in-memory demo feed with synthetic shopper traffic",
		Long: `mock-pulse starts the full pulse service against a throwaway
in-memory store, seeds generated products, and injects random
interaction hits so the feed moves without real shoppers. Point a
frontend or a websocket client at /ws/pulse to watch prices decay.`,
		Run: runMockPulseCommand,
	}
)

func init() {
	mockPulseCmd.Flags().IntVar(&mockPort, "port", 8000, "HTTP port")
	mockPulseCmd.Flags().IntVar(&mockProducts, "count", 3,
		"Number of synthetic products to generate")
	mockPulseCmd.Flags().DurationVar(&mockInterval, "interval", 50*time.Millisecond,
		"Tick interval for the demo feed")
	mockPulseCmd.Flags().Float64Var(&mockHitRate, "hit-rate", 2.0,
		"Average synthetic hits per second across all products")
}

func runMockPulseCommand(cmd *cobra.Command, args []string) {
	products := make([]string, mockProducts)
	for i := range products {
		products[i] = fmt.Sprintf("mock-%s", uuid.New().String())
	}

	svc, err := pulse.New(pulse.Config{
		Port:         mockPort,
		InMemory:     true,
		TickInterval: mockInterval,
		Products:     products,
	})
	if err != nil {
		log.Fatalf("Failed to create mock pulse service: %v", err)
	}

	slog.Info("Mock pulse feed starting",
		"port", mockPort,
		"products", products,
		"interval", mockInterval.String(),
		"hit_rate", mockHitRate,
	)

	stop := make(chan struct{})
	go injectSyntheticHits(svc, products, stop)
	defer close(stop)

	if err := svc.Run(); err != nil {
		log.Fatalf("Mock pulse service error: %v", err)
	}
}

// injectSyntheticHits posts interaction hits against the running service
// at roughly the configured rate, spread randomly across products.
func injectSyntheticHits(svc pulse.Service, products []string, stop <-chan struct{}) {
	if mockHitRate <= 0 || len(products) == 0 {
		return
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	interval := time.Duration(float64(time.Second) / mockHitRate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			id := products[rng.Intn(len(products))]
			if err := svc.RecordInteraction(id); err != nil {
				slog.Warn("Synthetic hit failed", "product_id", id, "error", err)
			}
		}
	}
}
