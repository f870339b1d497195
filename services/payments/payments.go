// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package payments wraps the external payment provider.
//
// The core only needs an opaque client secret to correlate a later
// checkout attempt with a created payment intent; amount and currency
// validation belong to the provider, not to us. When no API key is
// configured, intent creation fails fast with ErrNotConfigured instead
// of attempting a doomed network call.
package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
)

// ErrNotConfigured is returned when the Stripe secret key is absent.
// Surfaced to HTTP callers as service-unavailable.
var ErrNotConfigured = errors.New("payments: stripe is not configured")

// Placeholder order amount, as in the prototype: a single-item flow at
// $10.00. A real cart would price server-side from its items.
const (
	DefaultAmountCents = 1000
	DefaultCurrency    = string(stripe.CurrencyUSD)
)

// Client creates payment intents. Handlers depend on this interface so
// tests can stub the provider.
type Client interface {
	// CreateIntent creates a payment intent and returns its client
	// secret, the opaque handle the frontend uses for capture.
	CreateIntent(ctx context.Context, amountCents int64, currency string) (string, error)
}

// StripeClient is the production Client backed by the Stripe API.
type StripeClient struct {
	api *client.API
}

// NewStripeClient builds a Stripe-backed client. An empty secret key is
// allowed; every CreateIntent call will then return ErrNotConfigured.
func NewStripeClient(secretKey string) *StripeClient {
	if secretKey == "" {
		return &StripeClient{}
	}
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeClient{api: api}
}

// Configured reports whether a secret key was provided.
func (c *StripeClient) Configured() bool {
	return c.api != nil
}

// CreateIntent creates a PaymentIntent with automatic payment methods,
// mirroring the original integration shape.
func (c *StripeClient) CreateIntent(ctx context.Context, amountCents int64, currency string) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}

	params := &stripe.PaymentIntentParams{
		Params:   stripe.Params{Context: ctx},
		Amount:   stripe.Int64(amountCents),
		Currency: stripe.String(currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.AddMetadata("integration_check", "accept_a_payment")

	intent, err := c.api.PaymentIntents.New(params)
	if err != nil {
		return "", fmt.Errorf("create payment intent: %w", err)
	}
	return intent.ClientSecret, nil
}
