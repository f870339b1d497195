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
	"encoding/json"
	"log"
	"os"
	"time"

	"github.com/AleutianAI/swiftcart/services/physics/celestial"
	"github.com/AleutianAI/swiftcart/services/physics/engine"
	"github.com/AleutianAI/swiftcart/services/physics/pulsewire"
	"github.com/AleutianAI/swiftcart/services/physics/state"
	"github.com/spf13/cobra"
)

var (
	decayTicks    int
	decayInterval time.Duration
	decayDataDir  string
	decayInMemory bool
	decayProducts []string

	decayCmd = &cobra.Command{
		Use:   "decay",
		Short: "Run the decay engine headless, printing each pulse as a JSON line",
		Long: `decay runs the price physics against the store without the HTTP
surface. Useful for inspecting decay behavior, replaying a store, or
generating pulse fixtures. Each tick's pulse is printed to stdout as
one JSON object per line.`,
		Run: runDecayCommand,
	}
)

func init() {
	decayCmd.Flags().IntVar(&decayTicks, "ticks", 25,
		"Number of ticks to run (0 runs until interrupted)")
	decayCmd.Flags().DurationVar(&decayInterval, "interval", 200*time.Millisecond,
		"Tick interval")
	decayCmd.Flags().StringVar(&decayDataDir, "data-dir", "",
		"Badger data directory (overrides SWIFTCART_DATA_DIR)")
	decayCmd.Flags().BoolVar(&decayInMemory, "in-memory", false,
		"Run against a throwaway in-memory store")
	decayCmd.Flags().StringSliceVar(&decayProducts, "products", nil,
		"Product ids to tick (overrides SWIFTCART_PRODUCTS)")
}

func runDecayCommand(cmd *cobra.Command, args []string) {
	params := state.DefaultParams()
	params.MSRP = getEnvFloat("SWIFTCART_MSRP", params.MSRP)
	params.MaxStock = getEnvInt("SWIFTCART_MAX_STOCK", params.MaxStock)

	dataDir := decayDataDir
	if dataDir == "" {
		dataDir = getEnvString("SWIFTCART_DATA_DIR", "./data/swiftcart")
	}

	store, err := state.Open(state.Config{
		Path:     dataDir,
		InMemory: decayInMemory,
	}, params)
	if err != nil {
		log.Fatalf("Failed to open state store: %v", err)
	}
	defer store.Close()

	products := decayProducts
	if len(products) == 0 {
		products = getEnvList("SWIFTCART_PRODUCTS", []string{"pro_001_nebula"})
	}
	for _, id := range products {
		if err := store.EnsureProduct(id); err != nil {
			log.Fatalf("Failed to seed product %q: %v", id, err)
		}
	}

	cfg := engine.DefaultConfig(products...)
	cfg.Interval = decayInterval
	eng := engine.New(cfg, store, celestial.NewKeeper(store), nil)

	enc := json.NewEncoder(os.Stdout)
	ticker := time.NewTicker(decayInterval)
	defer ticker.Stop()

	for tick := 0; decayTicks == 0 || tick < decayTicks; tick++ {
		<-ticker.C
		for _, id := range products {
			ev, err := eng.Tick(id)
			if err != nil {
				log.Fatalf("Tick failed for %q: %v", id, err)
			}
			if err := enc.Encode(pulseLine(ev)); err != nil {
				log.Fatalf("Failed to write pulse: %v", err)
			}
		}
	}
}

// pulseLine mirrors the wire frame's short keys in JSON form so the
// output matches what observers decode.
func pulseLine(ev pulsewire.PulseEvent) map[string]interface{} {
	return map[string]interface{}{
		"id":   ev.ProductID,
		"p":    ev.Price,
		"m":    ev.Mass,
		"ins":  ev.Instability,
		"stk":  ev.Stock,
		"hits": ev.Hits,
		"t":    ev.Timestamp,
	}
}
