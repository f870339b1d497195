// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes provides request and response types for the pulse service.
//
// This file contains hyperdrive capture (checkout) types. Physics types
// live in physics.go.
package datatypes

import "encoding/json"

// =============================================================================
// Hyperdrive Capture Types
// =============================================================================

// HyperdriveCaptureRequest represents one atomic checkout attempt.
//
// # Description
//
// The client submits the price it last observed along with the pulse
// timestamp it came from. The server re-reads the live price inside a
// transaction and aborts if the observed price has drifted beyond the
// configured epsilon, so a stale cart can never buy at a stale price.
//
// # Fields
//
//   - ProductID: Required. The product being captured.
//   - ClientPrice: Required. Price the client last observed, > 0.
//   - ClientTimestamp: Optional. Unix seconds of the pulse the price
//     came from. Used for audit logging only.
//   - PaymentHandle: Optional. Client secret of a previously created
//     payment intent, correlated in logs.
//   - ForceAbort: Optional. Simulates a paradox: the attempt validates
//     and then aborts with reason FORCED. Used by chaos tests.
//
// JSON decoding also accepts the browser client's original key names
// (price, timestamp, clientSecret, force_paradox) as aliases.
//
// # Validation
//
//   - ProductID: required, valid store-key identifier
//   - ClientPrice: required, gt=0
type HyperdriveCaptureRequest struct {
	ProductID       string  `json:"product_id" validate:"required,storeid"`
	ClientPrice     float64 `json:"client_price" validate:"required,gt=0"`
	ClientTimestamp float64 `json:"client_timestamp,omitempty"`
	PaymentHandle   string  `json:"payment_handle,omitempty"`
	ForceAbort      bool    `json:"force_abort,omitempty"`
}

// hyperdriveCaptureWire is the raw decode target. The browser client
// sends clientSecret/price/timestamp/force_paradox; the canonical names
// take precedence when both appear.
type hyperdriveCaptureWire struct {
	ProductID       string   `json:"product_id"`
	ClientPrice     *float64 `json:"client_price"`
	Price           *float64 `json:"price"`
	ClientTimestamp *float64 `json:"client_timestamp"`
	Timestamp       *float64 `json:"timestamp"`
	PaymentHandle   string   `json:"payment_handle"`
	ClientSecret    string   `json:"clientSecret"`
	ForceAbort      *bool    `json:"force_abort"`
	ForceParadox    *bool    `json:"force_paradox"`
}

// UnmarshalJSON accepts both the canonical field names and the browser
// client's original keys.
func (r *HyperdriveCaptureRequest) UnmarshalJSON(data []byte) error {
	var w hyperdriveCaptureWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	r.ProductID = w.ProductID

	r.ClientPrice = 0
	switch {
	case w.ClientPrice != nil:
		r.ClientPrice = *w.ClientPrice
	case w.Price != nil:
		r.ClientPrice = *w.Price
	}

	r.ClientTimestamp = 0
	switch {
	case w.ClientTimestamp != nil:
		r.ClientTimestamp = *w.ClientTimestamp
	case w.Timestamp != nil:
		r.ClientTimestamp = *w.Timestamp
	}

	r.PaymentHandle = w.PaymentHandle
	if r.PaymentHandle == "" {
		r.PaymentHandle = w.ClientSecret
	}

	r.ForceAbort = false
	switch {
	case w.ForceAbort != nil:
		r.ForceAbort = *w.ForceAbort
	case w.ForceParadox != nil:
		r.ForceAbort = *w.ForceParadox
	}

	return nil
}

// Validate validates the HyperdriveCaptureRequest fields.
//
// # Outputs
//
//   - error: Non-nil if validation failed, with details about which field
func (r *HyperdriveCaptureRequest) Validate() error {
	return physicsValidate.Struct(r)
}

// HyperdriveCaptureResponse is the committed checkout outcome.
// Status is always "captured"; aborted attempts get a 409 error body instead.
type HyperdriveCaptureResponse struct {
	Status         string  `json:"status"`
	ProductID      string  `json:"product_id"`
	FinalPrice     float64 `json:"final_price"`
	RemainingStock int     `json:"remaining_stock"`
}

// CaptureStatusCaptured is the status of every committed capture.
const CaptureStatusCaptured = "captured"
