// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// CelestialControlRequest Tests
// =============================================================================

func TestCelestialControl_Valid(t *testing.T) {
	g := 0.8
	m := 2.0
	req := CelestialControlRequest{Gravity: &g, BaseMass: &m, ForcePulse: true}
	assert.NoError(t, req.Validate())
}

func TestCelestialControl_NilFieldsAreValid(t *testing.T) {
	// A request that changes nothing is still a valid force-pulse trigger.
	req := CelestialControlRequest{ForcePulse: true}
	assert.NoError(t, req.Validate())
}

func TestCelestialControl_Bounds(t *testing.T) {
	negative := -0.1
	zero := 0.0
	huge := MaxGravity + 1

	tests := []struct {
		name    string
		req     CelestialControlRequest
		wantErr bool
	}{
		{"zero gravity allowed", CelestialControlRequest{Gravity: &zero}, false},
		{"negative gravity rejected", CelestialControlRequest{Gravity: &negative}, true},
		{"oversized gravity rejected", CelestialControlRequest{Gravity: &huge}, true},
		{"zero base mass rejected", CelestialControlRequest{BaseMass: &zero}, true},
		{"negative base mass rejected", CelestialControlRequest{BaseMass: &negative}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCelestialControl_ProductID(t *testing.T) {
	ok := CelestialControlRequest{ForcePulse: true, ProductID: "pro_001_nebula"}
	assert.NoError(t, ok.Validate())

	bad := CelestialControlRequest{ForcePulse: true, ProductID: "a:b"}
	assert.Error(t, bad.Validate())
}

// =============================================================================
// HyperdriveCaptureRequest Tests
// =============================================================================

func TestHyperdriveCapture_Valid(t *testing.T) {
	req := HyperdriveCaptureRequest{
		ProductID:       "pro_001_nebula",
		ClientPrice:     98.4,
		ClientTimestamp: 1756500000.2,
		PaymentHandle:   "pi_123_secret_abc",
	}
	assert.NoError(t, req.Validate())
}

func TestHyperdriveCapture_Invalid(t *testing.T) {
	tests := []struct {
		name string
		req  HyperdriveCaptureRequest
	}{
		{"missing product", HyperdriveCaptureRequest{ClientPrice: 10}},
		{"bad product id", HyperdriveCaptureRequest{ProductID: "a:b", ClientPrice: 10}},
		{"zero price", HyperdriveCaptureRequest{ProductID: "orb1"}},
		{"negative price", HyperdriveCaptureRequest{ProductID: "orb1", ClientPrice: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.req.Validate())
		})
	}
}

func TestHyperdriveCapture_DecodesCanonicalKeys(t *testing.T) {
	var req HyperdriveCaptureRequest
	body := `{"product_id":"orb1","client_price":98.4,"client_timestamp":1756500000.2,` +
		`"payment_handle":"pi_123_secret_abc","force_abort":true}`
	require.NoError(t, json.Unmarshal([]byte(body), &req))

	assert.Equal(t, "orb1", req.ProductID)
	assert.InDelta(t, 98.4, req.ClientPrice, 1e-9)
	assert.InDelta(t, 1756500000.2, req.ClientTimestamp, 1e-6)
	assert.Equal(t, "pi_123_secret_abc", req.PaymentHandle)
	assert.True(t, req.ForceAbort)
}

func TestHyperdriveCapture_DecodesBrowserClientKeys(t *testing.T) {
	var req HyperdriveCaptureRequest
	body := `{"product_id":"orb1","price":98.4,"timestamp":1756500000.2,` +
		`"clientSecret":"pi_123_secret_abc","force_paradox":true}`
	require.NoError(t, json.Unmarshal([]byte(body), &req))

	assert.Equal(t, "orb1", req.ProductID)
	assert.InDelta(t, 98.4, req.ClientPrice, 1e-9)
	assert.InDelta(t, 1756500000.2, req.ClientTimestamp, 1e-6)
	assert.Equal(t, "pi_123_secret_abc", req.PaymentHandle)
	assert.True(t, req.ForceAbort)
	assert.NoError(t, req.Validate())
}

func TestHyperdriveCapture_CanonicalKeysWinOverAliases(t *testing.T) {
	var req HyperdriveCaptureRequest
	body := `{"product_id":"orb1","client_price":98.4,"price":1.0,` +
		`"payment_handle":"pi_canon","clientSecret":"pi_alias"}`
	require.NoError(t, json.Unmarshal([]byte(body), &req))

	assert.InDelta(t, 98.4, req.ClientPrice, 1e-9)
	assert.Equal(t, "pi_canon", req.PaymentHandle)
}

// =============================================================================
// PaymentIntentRequest Tests
// =============================================================================

func TestPaymentIntent_EmptyBodyIsValid(t *testing.T) {
	req := PaymentIntentRequest{}
	assert.NoError(t, req.Validate())
}

func TestPaymentIntent_AmountBounds(t *testing.T) {
	ok := int64(2500)
	zero := int64(0)
	huge := int64(1000001)

	assert.NoError(t, (&PaymentIntentRequest{AmountCents: &ok}).Validate())
	assert.Error(t, (&PaymentIntentRequest{AmountCents: &zero}).Validate())
	assert.Error(t, (&PaymentIntentRequest{AmountCents: &huge}).Validate())
}
