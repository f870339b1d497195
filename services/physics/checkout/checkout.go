// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package checkout implements the optimistic checkout transaction.
//
// A checkout must commit against the price the client observed moments
// earlier even though the decay engine may have moved it since. The
// attempt runs as one watch/commit transaction over the product's price
// and stock keys: read both, validate, decrement stock, commit. If any
// watched key was modified concurrently the commit aborts instead of
// double-selling the last unit.
//
// The watch/commit window is a single read plus a single conditional
// write; no lock is held across the HTTP request. There is no automatic
// retry: every abort is surfaced to the caller, who must re-request with
// a fresh observed price.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/AleutianAI/swiftcart/services/physics/state"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// DefaultPriceEpsilon is the fixed tolerance between the client-observed
// price and the live price. Deliberately not scaled to price magnitude;
// the prototype value is preserved as a parameter, not an invariant.
const DefaultPriceEpsilon = 0.01

// driftSlack absorbs float64 representation noise at the epsilon
// boundary, so a drift of exactly 0.01 commits even when the subtraction
// carries rounding error (100.0 - 99.99 != 0.01 in binary).
const driftSlack = 1e-9

// Abort reasons, surfaced verbatim in conflict responses.
const (
	ReasonOutOfStock = "OUT_OF_STOCK"
	ReasonPriceDrift = "PRICE_DRIFT"
	ReasonForced     = "FORCED"
	ReasonConflict   = "CONFLICT"
)

// AbortError is a checkout abort. All aborts are conflict-class failures:
// the request was well-formed but the commit could not happen against
// live state.
type AbortError struct {
	Reason string
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("checkout aborted: %s", e.Reason)
}

// Sentinel aborts, comparable with errors.Is.
var (
	ErrOutOfStock = &AbortError{Reason: ReasonOutOfStock}
	ErrPriceDrift = &AbortError{Reason: ReasonPriceDrift}
	ErrForced     = &AbortError{Reason: ReasonForced}
	ErrConflict   = &AbortError{Reason: ReasonConflict}
)

// AsAbort unwraps err into an AbortError if it is one.
func AsAbort(err error) (*AbortError, bool) {
	var abort *AbortError
	if errors.As(err, &abort) {
		return abort, true
	}
	return nil, false
}

// Attempt is one request-scoped checkout. It has no persistent identity:
// it either resolves to a committed stock decrement or is discarded.
type Attempt struct {
	ProductID       string
	ClientPrice     float64
	ClientTimestamp float64

	// PaymentHandle is the opaque client secret correlating this attempt
	// with a previously created payment intent.
	PaymentHandle string

	// ForceAbort simulates a paradox for testing; aborts with FORCED
	// after validation passes.
	ForceAbort bool
}

// Receipt is the successful outcome.
type Receipt struct {
	FinalPrice     float64
	RemainingStock int
}

// Handler executes checkout attempts against the state store.
type Handler struct {
	store   *state.Store
	epsilon float64
}

// NewHandler creates a checkout handler. epsilon <= 0 uses
// DefaultPriceEpsilon.
func NewHandler(store *state.Store, epsilon float64) *Handler {
	if epsilon <= 0 {
		epsilon = DefaultPriceEpsilon
	}
	return &Handler{store: store, epsilon: epsilon}
}

// Do executes a single checkout attempt.
//
// # Description
//
// Runs the optimistic transaction: watch price and stock, abort on
// OUT_OF_STOCK / PRICE_DRIFT / FORCED, otherwise commit a stock
// decrement. A concurrent commit to a watched key between read and
// commit aborts with CONFLICT; at most one attempt can consume a given
// unit of stock.
//
// # Inputs
//
//   - ctx: Request context; used for tracing only. Once the commit is
//     issued there is no cancellation path (all-or-nothing).
//   - a: The attempt. ProductID must be non-empty.
//
// # Outputs
//
//   - Receipt: Final price and remaining stock on commit.
//   - error: *AbortError for the four abort reasons; other errors are
//     storage failures.
func (h *Handler) Do(ctx context.Context, a Attempt) (Receipt, error) {
	_, span := otel.Tracer("swiftcart/checkout").Start(ctx, "checkout.attempt")
	defer span.End()
	span.SetAttributes(attribute.String("product_id", a.ProductID))

	if a.ProductID == "" {
		return Receipt{}, errors.New("checkout: product id is required")
	}

	tx := h.store.Begin(true)
	defer tx.Discard()

	price, err := tx.Price(a.ProductID)
	if err != nil {
		return Receipt{}, err
	}
	stock, err := tx.Stock(a.ProductID)
	if err != nil {
		return Receipt{}, err
	}

	if stock <= 0 {
		span.SetAttributes(attribute.String("abort_reason", ReasonOutOfStock))
		return Receipt{}, ErrOutOfStock
	}
	if math.Abs(price-a.ClientPrice) > h.epsilon+driftSlack {
		span.SetAttributes(attribute.String("abort_reason", ReasonPriceDrift))
		return Receipt{}, ErrPriceDrift
	}
	if a.ForceAbort {
		span.SetAttributes(attribute.String("abort_reason", ReasonForced))
		return Receipt{}, ErrForced
	}

	if err := tx.SetStock(a.ProductID, stock-1); err != nil {
		return Receipt{}, err
	}
	if err := tx.Commit(); err != nil {
		if errors.Is(err, state.ErrConflict) {
			span.SetAttributes(attribute.String("abort_reason", ReasonConflict))
			return Receipt{}, ErrConflict
		}
		return Receipt{}, err
	}

	return Receipt{FinalPrice: price, RemainingStock: stock - 1}, nil
}
