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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// =============================================================================
// Environment Helper Tests
// =============================================================================

func TestGetEnvString(t *testing.T) {
	t.Setenv("SWIFTCART_TEST_STR", "custom")
	assert.Equal(t, "custom", getEnvString("SWIFTCART_TEST_STR", "default"))
	assert.Equal(t, "default", getEnvString("SWIFTCART_TEST_STR_MISSING", "default"))
}

func TestGetEnvInt(t *testing.T) {
	t.Setenv("SWIFTCART_TEST_INT", "42")
	assert.Equal(t, 42, getEnvInt("SWIFTCART_TEST_INT", 7))
	assert.Equal(t, 7, getEnvInt("SWIFTCART_TEST_INT_MISSING", 7))

	t.Setenv("SWIFTCART_TEST_INT_BAD", "not-a-number")
	assert.Equal(t, 7, getEnvInt("SWIFTCART_TEST_INT_BAD", 7))
}

func TestGetEnvFloat(t *testing.T) {
	t.Setenv("SWIFTCART_TEST_FLOAT", "99.5")
	assert.InDelta(t, 99.5, getEnvFloat("SWIFTCART_TEST_FLOAT", 100.0), 1e-12)
	assert.InDelta(t, 100.0, getEnvFloat("SWIFTCART_TEST_FLOAT_MISSING", 100.0), 1e-12)
}

func TestGetEnvList(t *testing.T) {
	t.Setenv("SWIFTCART_TEST_LIST", "orb1, orb2 ,orb3")
	assert.Equal(t, []string{"orb1", "orb2", "orb3"},
		getEnvList("SWIFTCART_TEST_LIST", []string{"fallback"}))

	assert.Equal(t, []string{"fallback"},
		getEnvList("SWIFTCART_TEST_LIST_MISSING", []string{"fallback"}))

	t.Setenv("SWIFTCART_TEST_LIST_EMPTY", " , ,")
	assert.Equal(t, []string{"fallback"},
		getEnvList("SWIFTCART_TEST_LIST_EMPTY", []string{"fallback"}))
}

// =============================================================================
// Serve Config Tests
// =============================================================================

func TestServeConfigFromEnv_Defaults(t *testing.T) {
	cfg := serveConfigFromEnv()

	assert.Equal(t, 8000, cfg.Port)
	assert.Equal(t, "./data/swiftcart", cfg.DataDir)
	assert.InDelta(t, 100.0, cfg.MSRP, 1e-12)
	assert.Equal(t, 200*time.Millisecond, cfg.TickInterval)
	assert.Equal(t, []string{"pro_001_nebula"}, cfg.Products)
}

func TestServeConfigFromEnv_Overrides(t *testing.T) {
	t.Setenv("SWIFTCART_PORT", "9001")
	t.Setenv("SWIFTCART_TICK_INTERVAL_MS", "50")
	t.Setenv("SWIFTCART_PRODUCTS", "orb1,orb2")

	cfg := serveConfigFromEnv()

	assert.Equal(t, 9001, cfg.Port)
	assert.Equal(t, 50*time.Millisecond, cfg.TickInterval)
	assert.Equal(t, []string{"orb1", "orb2"}, cfg.Products)
}
