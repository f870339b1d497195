// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/AleutianAI/swiftcart/services/payments"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockPaymentClient is a configurable mock for testing.
type mockPaymentClient struct {
	secret      string
	err         error
	gotAmount   int64
	gotCurrency string
}

func (m *mockPaymentClient) CreateIntent(_ context.Context, amountCents int64, currency string) (string, error) {
	m.gotAmount = amountCents
	m.gotCurrency = currency
	if m.err != nil {
		return "", m.err
	}
	return m.secret, nil
}

func newPaymentsRouter(pc payments.Client) *gin.Engine {
	router := gin.New()
	router.POST("/api/payments/create-payment-intent", HandleCreatePaymentIntent(pc))
	return router
}

// =============================================================================
// CreatePaymentIntent Tests
// =============================================================================

func TestCreatePaymentIntent_ReturnsClientSecret(t *testing.T) {
	mock := &mockPaymentClient{secret: "pi_123_secret_abc"}
	router := newPaymentsRouter(mock)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/payments/create-payment-intent", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "pi_123_secret_abc")
	assert.Equal(t, int64(payments.DefaultAmountCents), mock.gotAmount)
	assert.Equal(t, payments.DefaultCurrency, mock.gotCurrency)
}

func TestCreatePaymentIntent_CustomAmount(t *testing.T) {
	mock := &mockPaymentClient{secret: "pi_456_secret_def"}
	router := newPaymentsRouter(mock)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/payments/create-payment-intent",
		strings.NewReader(`{"amount_cents": 2500}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(2500), mock.gotAmount)
}

func TestCreatePaymentIntent_UnconfiguredIs503(t *testing.T) {
	// A real client without a key fails fast with ErrNotConfigured.
	router := newPaymentsRouter(payments.NewStripeClient(""))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/payments/create-payment-intent", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "Stripe not configured")
}

func TestCreatePaymentIntent_ProviderFailureIs502(t *testing.T) {
	mock := &mockPaymentClient{err: errors.New("stripe is down")}
	router := newPaymentsRouter(mock)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/payments/create-payment-intent", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	// Provider error details must not leak to the client.
	assert.NotContains(t, w.Body.String(), "stripe is down")
}

func TestCreatePaymentIntent_RejectsBadAmount(t *testing.T) {
	mock := &mockPaymentClient{secret: "pi_789"}
	router := newPaymentsRouter(mock)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/payments/create-payment-intent",
		strings.NewReader(`{"amount_cents": -5}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
