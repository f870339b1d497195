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
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/AleutianAI/swiftcart/services/pulse"
	"github.com/spf13/cobra"
)

var (
	servePort     int
	serveDataDir  string
	serveInMemory bool
	serveProducts []string

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the pulse service: decay engine, WebSocket feed, and checkout API",
		Run:   runServeCommand,
	}
)

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0,
		"HTTP port (overrides SWIFTCART_PORT)")
	serveCmd.Flags().StringVar(&serveDataDir, "data-dir", "",
		"Badger data directory (overrides SWIFTCART_DATA_DIR)")
	serveCmd.Flags().BoolVar(&serveInMemory, "in-memory", false,
		"Run without disk persistence (state is lost on exit)")
	serveCmd.Flags().StringSliceVar(&serveProducts, "products", nil,
		"Product ids to manage (overrides SWIFTCART_PRODUCTS)")
}

func runServeCommand(cmd *cobra.Command, args []string) {
	cfg := serveConfigFromEnv()

	if servePort != 0 {
		cfg.Port = servePort
	}
	if serveDataDir != "" {
		cfg.DataDir = serveDataDir
	}
	if serveInMemory {
		cfg.InMemory = true
	}
	if len(serveProducts) > 0 {
		cfg.Products = serveProducts
	}

	slog.Info("Starting SwiftCart",
		"port", cfg.Port,
		"data_dir", cfg.DataDir,
		"products", cfg.Products,
		"stripe_configured", cfg.StripeKey != "",
	)

	svc, err := pulse.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create pulse service: %v", err)
	}

	// Run the server (blocks until shutdown)
	if err := svc.Run(); err != nil {
		log.Fatalf("Pulse service error: %v", err)
	}
}

// serveConfigFromEnv builds the service configuration from environment
// variables.
func serveConfigFromEnv() pulse.Config {
	return pulse.Config{
		Port:           getEnvInt("SWIFTCART_PORT", 8000),
		DataDir:        getEnvString("SWIFTCART_DATA_DIR", "./data/swiftcart"),
		MSRP:           getEnvFloat("SWIFTCART_MSRP", 100.0),
		MaxStock:       getEnvInt("SWIFTCART_MAX_STOCK", 100),
		TickInterval:   time.Duration(getEnvInt("SWIFTCART_TICK_INTERVAL_MS", 200)) * time.Millisecond,
		Products:       getEnvList("SWIFTCART_PRODUCTS", []string{"pro_001_nebula"}),
		StripeKey:      os.Getenv("STRIPE_SECRET_KEY"),
		CelestialToken: os.Getenv("CELESTIAL_TOKEN"),
		OTelEndpoint:   getEnvString("OTEL_EXPORTER_OTLP_ENDPOINT", "swiftcart-otel-collector:4317"),
	}
}
