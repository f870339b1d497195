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
	"errors"
	"log/slog"
	"net/http"

	"github.com/AleutianAI/swiftcart/services/payments"
	"github.com/AleutianAI/swiftcart/services/pulse/datatypes"
	"github.com/gin-gonic/gin"
)

// HandleCreatePaymentIntent opens a payment intent and returns its
// client secret.
//
// # Description
//
// The request body is optional; without one the fixed demo amount is
// used. When the payment provider is not configured the endpoint fails
// fast with 503 so the client can fall back to a disabled checkout UI
// instead of timing out mid-purchase.
//
// # Inputs
//
//   - pc: Payment client. Must not be nil (use an unconfigured client
//     rather than nil).
//
// # Outputs
//
//   - gin.HandlerFunc responding 200 {"clientSecret": ...},
//     400 on a malformed body, 503 when unconfigured,
//     502 on a provider failure.
func HandleCreatePaymentIntent(pc payments.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.PaymentIntentRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
				return
			}
			if err := req.Validate(); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
		}

		amount := int64(payments.DefaultAmountCents)
		if req.AmountCents != nil {
			amount = *req.AmountCents
		}

		secret, err := pc.CreateIntent(c.Request.Context(), amount, payments.DefaultCurrency)
		if err != nil {
			if errors.Is(err, payments.ErrNotConfigured) {
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Stripe not configured"})
				return
			}
			slog.Error("Failed to create payment intent", "error", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "payment provider error"})
			return
		}

		c.JSON(http.StatusOK, datatypes.PaymentIntentResponse{ClientSecret: secret})
	}
}
