// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/AleutianAI/swiftcart/services/physics/state"
	"github.com/stretchr/testify/require"
)

func newTestHandler(t *testing.T) (*Handler, *state.Store) {
	t.Helper()
	s, err := state.OpenInMemory(state.DefaultParams())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return NewHandler(s, 0), s
}

func TestDo_CommitsAndDecrementsStock(t *testing.T) {
	h, s := newTestHandler(t)
	require.NoError(t, s.EnsureProduct("orb-1"))

	r, err := h.Do(context.Background(), Attempt{
		ProductID:   "orb-1",
		ClientPrice: 100.0,
	})
	require.NoError(t, err)
	require.Equal(t, 100.0, r.FinalPrice)
	require.Equal(t, 99, r.RemainingStock)

	ps, err := s.Product("orb-1")
	require.NoError(t, err)
	require.Equal(t, 99, ps.Stock)
}

func TestDo_OutOfStock(t *testing.T) {
	h, s := newTestHandler(t)
	require.NoError(t, s.SetStock("orb-1", 0))

	_, err := h.Do(context.Background(), Attempt{ProductID: "orb-1", ClientPrice: 100.0})
	require.ErrorIs(t, err, ErrOutOfStock)

	// Stock stays at zero; no negative inventory.
	ps, err := s.Product("orb-1")
	require.NoError(t, err)
	require.Equal(t, 0, ps.Stock)
}

// TestDo_PriceDriftBoundary pins the exact boundary: drift of 0.01
// commits, drift of 0.011 aborts.
func TestDo_PriceDriftBoundary(t *testing.T) {
	h, s := newTestHandler(t)
	require.NoError(t, s.EnsureProduct("orb-1")) // price = 100.0

	_, err := h.Do(context.Background(), Attempt{ProductID: "orb-1", ClientPrice: 99.99})
	require.NoError(t, err, "drift of exactly 0.01 must commit")

	_, err = h.Do(context.Background(), Attempt{ProductID: "orb-1", ClientPrice: 99.989})
	require.ErrorIs(t, err, ErrPriceDrift, "drift of 0.011 must abort")

	_, err = h.Do(context.Background(), Attempt{ProductID: "orb-1", ClientPrice: 95.0})
	require.ErrorIs(t, err, ErrPriceDrift)
}

func TestDo_ForcedAbort(t *testing.T) {
	h, s := newTestHandler(t)
	require.NoError(t, s.EnsureProduct("orb-1"))

	_, err := h.Do(context.Background(), Attempt{
		ProductID:   "orb-1",
		ClientPrice: 100.0,
		ForceAbort:  true,
	})
	require.ErrorIs(t, err, ErrForced)

	// Forced abort leaves stock untouched.
	ps, err := s.Product("orb-1")
	require.NoError(t, err)
	require.Equal(t, 100, ps.Stock)
}

// TestDo_ConcurrentAttemptsOnLastUnit runs two simultaneous checkouts
// against stock=1: exactly one commits, the other aborts with CONFLICT
// or OUT_OF_STOCK, and stock never goes negative.
func TestDo_ConcurrentAttemptsOnLastUnit(t *testing.T) {
	h, s := newTestHandler(t)
	require.NoError(t, s.EnsureProduct("orb-1"))
	require.NoError(t, s.SetStock("orb-1", 1))

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, results[n] = h.Do(context.Background(), Attempt{
				ProductID:   "orb-1",
				ClientPrice: 100.0,
			})
		}(i)
	}
	wg.Wait()

	var committed, aborted int
	for _, err := range results {
		if err == nil {
			committed++
			continue
		}
		abort, ok := AsAbort(err)
		require.True(t, ok, "unexpected non-abort error: %v", err)
		require.Contains(t, []string{ReasonConflict, ReasonOutOfStock}, abort.Reason)
		aborted++
	}
	require.Equal(t, 1, committed, "exactly one attempt may consume the last unit")
	require.Equal(t, 1, aborted)

	ps, err := s.Product("orb-1")
	require.NoError(t, err)
	require.Equal(t, 0, ps.Stock)
}

// TestDo_ConflictWhenWatchedKeyMoves deterministically provokes the
// CONFLICT path with an explicit interleaved transaction.
func TestDo_ConflictWhenWatchedKeyMoves(t *testing.T) {
	h, s := newTestHandler(t)
	require.NoError(t, s.EnsureProduct("orb-1"))

	// Open the checkout's view of the world first, then move stock
	// underneath it.
	tx := s.Begin(true)
	defer tx.Discard()
	stock, err := tx.Stock("orb-1")
	require.NoError(t, err)

	_, err = h.Do(context.Background(), Attempt{ProductID: "orb-1", ClientPrice: 100.0})
	require.NoError(t, err)

	require.NoError(t, tx.SetStock("orb-1", stock-1))
	require.True(t, errors.Is(tx.Commit(), state.ErrConflict))
}

func TestDo_RequiresProductID(t *testing.T) {
	h, _ := newTestHandler(t)
	_, err := h.Do(context.Background(), Attempt{ClientPrice: 1})
	require.Error(t, err)
	_, isAbort := AsAbort(err)
	require.False(t, isAbort)
}
