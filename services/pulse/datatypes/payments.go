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
// This file contains payment intent types.
package datatypes

// =============================================================================
// Payment Intent Types
// =============================================================================

// PaymentIntentRequest asks the server to open a payment intent.
//
// # Description
//
// The body is optional; an empty request uses the service's fixed demo
// amount. AmountCents, when present, overrides it.
//
// # Validation
//
//   - AmountCents: if present, gt=0 and lte=1000000 (USD 10,000)
type PaymentIntentRequest struct {
	AmountCents *int64 `json:"amount_cents,omitempty" validate:"omitempty,gt=0,lte=1000000"`
}

// Validate validates the PaymentIntentRequest fields.
//
// # Outputs
//
//   - error: Non-nil if validation failed, with details about which field
func (r *PaymentIntentRequest) Validate() error {
	return physicsValidate.Struct(r)
}

// PaymentIntentResponse returns the client secret for the new intent.
type PaymentIntentResponse struct {
	ClientSecret string `json:"clientSecret"`
}
