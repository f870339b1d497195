// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation utilities for security-critical operations.
//
// This package contains validators for user-provided identifiers that are
// embedded into store keys. Using these validators keeps hostile input out
// of the keyspace (prefix collisions, control characters, oversized keys).
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// idPattern matches valid product and session identifiers.
// Allows: letters, digits, then dots, underscores and hyphens
// (pro_001_nebula, test-orb-1, UUID strings). Max length: 64.
var idPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._\-]{0,63}$`)

// ValidateProductID validates a product identifier before it is embedded
// into a state store key.
//
// Valid ids:
//   - 1-64 characters
//   - letters and digits, plus dots, underscores, hyphens after the
//     first character
//
// Returns an error if the id is invalid.
//
// Example:
//
//	if err := validation.ValidateProductID(id); err != nil {
//	    return fmt.Errorf("invalid product id: %w", err)
//	}
//	// Safe to use in a store key
func ValidateProductID(id string) error {
	if id == "" {
		return fmt.Errorf("product id cannot be empty")
	}
	if !idPattern.MatchString(id) {
		return fmt.Errorf("invalid product id format: %q (must be 1-64 alphanumeric chars, dots, underscores, or hyphens)", id)
	}
	return nil
}

// ValidateSessionID validates a session identifier used as a snapshot
// store key. Same format rules as product ids.
func ValidateSessionID(id string) error {
	if id == "" {
		return fmt.Errorf("session id cannot be empty")
	}
	if !idPattern.MatchString(id) {
		return fmt.Errorf("invalid session id format: %q (must be 1-64 alphanumeric chars, dots, underscores, or hyphens)", id)
	}
	return nil
}

// SanitizeSessionID trims whitespace and validates a session id.
// Returns the trimmed id if valid, or an error if invalid.
func SanitizeSessionID(id string) (string, error) {
	trimmed := strings.TrimSpace(id)
	if err := ValidateSessionID(trimmed); err != nil {
		return "", err
	}
	return trimmed, nil
}
