// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package payments

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestStripeClient_FailsFastWhenUnconfigured pins the availability
// contract: no key means no network call, just ErrNotConfigured.
func TestStripeClient_FailsFastWhenUnconfigured(t *testing.T) {
	c := NewStripeClient("")
	require.False(t, c.Configured())

	_, err := c.CreateIntent(context.Background(), DefaultAmountCents, DefaultCurrency)
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestStripeClient_ConfiguredWithKey(t *testing.T) {
	c := NewStripeClient("sk_test_xxx")
	require.True(t, c.Configured())
}
