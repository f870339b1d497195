// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command swiftcart manages the SwiftCart real-time pricing stack.
//
// This is the main entry point for the containerized pulse service and
// its operational helpers. Configuration comes from environment
// variables, overridable per-command with flags.
//
// # Environment Variables
//
//   - SWIFTCART_PORT: HTTP server port (default: 8000)
//   - SWIFTCART_DATA_DIR: Badger data directory (default: ./data/swiftcart)
//   - SWIFTCART_MSRP: Starting price per product (default: 100.0)
//   - SWIFTCART_TICK_INTERVAL_MS: Decay tick period in ms (default: 200)
//   - SWIFTCART_MAX_STOCK: Initial stock per product (default: 100)
//   - SWIFTCART_PRODUCTS: Comma-separated product ids (default: pro_001_nebula)
//   - STRIPE_SECRET_KEY: Stripe secret key (optional; payments 503 without it)
//   - CELESTIAL_TOKEN: Shared secret for the celestial control surface
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OpenTelemetry collector (default: swiftcart-otel-collector:4317)
//   - SWIFTCART_LOG_LEVEL: Minimum log level (default: info)
//   - SWIFTCART_LOG_DIR: Directory for JSON log files (default: stderr only)
//
// # Usage
//
//	# Build
//	go build -o swiftcart ./cmd/swiftcart
//
//	# Run the full service
//	./swiftcart serve
//
//	# Run the decay engine headless, printing pulses
//	./swiftcart decay --ticks 50
//
//	# Run an in-memory demo feed with synthetic traffic
//	./swiftcart mock-pulse
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/AleutianAI/swiftcart/pkg/logging"
	"github.com/spf13/cobra"
)

// rootLogger is installed by PersistentPreRun and closed after the
// command finishes, so file logs are flushed on exit.
var rootLogger *logging.Logger

var rootCmd = &cobra.Command{
	Use:   "swiftcart",
	Short: "A cli to manage the SwiftCart real-time pricing stack",
	Long: `SwiftCart runs a physics-styled commerce backend: prices decay in
real time under shopper interaction, observers follow a binary pulse
feed over WebSocket, and checkout commits atomically against live
state.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Setup structured logging before any command runs
		logger, err := logging.New(logging.Config{
			Level:   logging.ParseLevel(getEnvString("SWIFTCART_LOG_LEVEL", "info")),
			LogDir:  getEnvString("SWIFTCART_LOG_DIR", ""),
			Service: cmd.Name(),
			JSON:    true,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to initialize logging: %v\n", err)
			os.Exit(1)
		}
		rootLogger = logger
		logger.InstallDefault()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if rootLogger != nil {
			_ = rootLogger.Close()
		}
	},
}

func main() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(decayCmd)
	rootCmd.AddCommand(mockPulseCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// getEnvString returns the environment variable value or a default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat returns the environment variable as float64 or a default.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

// getEnvList returns a comma-separated environment variable as a slice,
// dropping empty entries.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
