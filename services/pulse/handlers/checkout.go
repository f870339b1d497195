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
	"log/slog"
	"net/http"

	"github.com/AleutianAI/swiftcart/services/physics/checkout"
	"github.com/AleutianAI/swiftcart/services/pulse/datatypes"
	"github.com/AleutianAI/swiftcart/services/pulse/observability"
	"github.com/gin-gonic/gin"
)

// HandleHyperdriveCapture executes one atomic checkout attempt.
//
// # Description
//
// Binds the capture request and runs it through the checkout handler's
// transaction. Every abort maps to 409 with the reason code in the body,
// so the client can distinguish a sold-out product from a price that
// moved underneath it.
//
// # Abort Reasons
//
//   - OUT_OF_STOCK: stock was zero at capture time
//   - PRICE_DRIFT: live price moved beyond epsilon from the client price
//   - FORCED: client requested a simulated paradox
//   - CONFLICT: a concurrent writer touched the product mid-transaction
//
// # Inputs
//
//   - h: Checkout handler. Must not be nil.
//
// # Outputs
//
//   - gin.HandlerFunc responding 200 with the receipt on commit,
//     400 on a malformed request, 409 {"error": reason} on abort,
//     500 on a store failure.
func HandleHyperdriveCapture(h *checkout.Handler) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.HyperdriveCaptureRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		receipt, err := h.Do(c.Request.Context(), checkout.Attempt{
			ProductID:       req.ProductID,
			ClientPrice:     req.ClientPrice,
			ClientTimestamp: req.ClientTimestamp,
			PaymentHandle:   req.PaymentHandle,
			ForceAbort:      req.ForceAbort,
		})
		if err != nil {
			if ab, ok := checkout.AsAbort(err); ok {
				recordCheckout(ab.Reason)
				slog.Info("Checkout aborted",
					"product_id", req.ProductID,
					"reason", ab.Reason,
					"client_price", req.ClientPrice,
					"payment_handle", req.PaymentHandle)
				c.JSON(http.StatusConflict, gin.H{"error": ab.Reason})
				return
			}
			slog.Error("Checkout failed", "product_id", req.ProductID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "checkout failed"})
			return
		}

		recordCheckout(observability.OutcomeCommitted)
		slog.Info("Checkout committed",
			"product_id", req.ProductID,
			"final_price", receipt.FinalPrice,
			"remaining_stock", receipt.RemainingStock)
		c.JSON(http.StatusOK, datatypes.HyperdriveCaptureResponse{
			Status:         datatypes.CaptureStatusCaptured,
			ProductID:      req.ProductID,
			FinalPrice:     receipt.FinalPrice,
			RemainingStock: receipt.RemainingStock,
		})
	}
}

// recordCheckout records an outcome metric when metrics are initialized.
func recordCheckout(outcome string) {
	if m := observability.DefaultMetrics; m != nil {
		m.RecordCheckout(outcome)
	}
}
