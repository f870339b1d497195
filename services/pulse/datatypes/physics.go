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
// This file contains the physics surface: celestial control frames and
// the shared validator. Checkout types live in checkout.go, payment
// types in payments.go. The snapshot handshake carries a raw binary
// body, so it has no request struct here.
package datatypes

import (
	"github.com/AleutianAI/swiftcart/pkg/validation"
	"github.com/go-playground/validator/v10"
)

// =============================================================================
// Constants for Security Compliance
// =============================================================================

const (
	// MaxSnapshotBytes is the maximum size of a session snapshot blob.
	// Snapshots are opaque client state; an unbounded blob would let a
	// single session exhaust store memory.
	MaxSnapshotBytes = 64 * 1024 // 64KB

	// MaxGravity bounds the operator-settable gravity constant.
	MaxGravity = 100.0

	// MaxBaseMass bounds the operator-settable base mass constant.
	MaxBaseMass = 1000.0
)

// =============================================================================
// Shared Validator Instance
// =============================================================================

// physicsValidate is the validator instance for pulse datatypes.
// Initialized in init() with custom validators.
var physicsValidate *validator.Validate

func init() {
	physicsValidate = validator.New()

	// Field must be a valid store-key identifier.
	_ = physicsValidate.RegisterValidation("storeid", validateStoreID)
}

// validateStoreID validates that a string field is a safe store-key
// identifier (product or session id).
//
// # Description
//
// Custom validator bridging to the validation package. Identifiers are
// embedded into store keys, so hostile values could collide with other
// key prefixes.
//
// # Inputs
//
//   - fl: Validator field level containing the string to validate
//
// # Outputs
//
//   - bool: true if the identifier is valid
func validateStoreID(fl validator.FieldLevel) bool {
	return validation.ValidateProductID(fl.Field().String()) == nil
}

// =============================================================================
// Celestial Control Types
// =============================================================================

// CelestialControlRequest adjusts the simulation constants at runtime.
//
// # Description
//
// Operator-only request that tunes the gravity and base mass constants
// shared by all products, and optionally forces an immediate celestial
// frame to all connected observers. Pointer fields distinguish "leave
// unchanged" (nil) from an explicit zero.
//
// # Fields
//
//   - Gravity: Optional. New gravity constant, 0 to MaxGravity.
//   - BaseMass: Optional. New base mass, must be positive, up to MaxBaseMass.
//   - ForcePulse: Optional. When true, broadcast a celestial frame now.
//   - ProductID: Optional. Tags the forced frame with a product id so
//     observers can scope the reaction; defaults to a generated pulse id.
//
// # Validation
//
//   - Gravity: if present, gte=0 and lte=100
//   - BaseMass: if present, gt=0 and lte=1000
//   - ProductID: if present, valid store-key identifier
type CelestialControlRequest struct {
	Gravity    *float64 `json:"gravity_coefficient,omitempty" validate:"omitempty,gte=0,lte=100"`
	BaseMass   *float64 `json:"base_mass,omitempty" validate:"omitempty,gt=0,lte=1000"`
	ForcePulse bool     `json:"force_pulse,omitempty"`
	ProductID  string   `json:"product_id,omitempty" validate:"omitempty,storeid"`
}

// Validate validates the CelestialControlRequest fields.
//
// # Outputs
//
//   - error: Non-nil if validation failed, with details about which field
func (r *CelestialControlRequest) Validate() error {
	return physicsValidate.Struct(r)
}

// CelestialMetricsResponse reports the current simulation constants and
// observer population.
type CelestialMetricsResponse struct {
	Gravity   float64 `json:"gravity"`
	BaseMass  float64 `json:"base_mass"`
	Observers int     `json:"observers"`
}
