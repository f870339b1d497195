// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package celestial

import (
	"testing"

	"github.com/AleutianAI/swiftcart/services/physics/state"
	"github.com/stretchr/testify/require"
)

func TestKeeper_Load_Defaults(t *testing.T) {
	s, err := state.OpenInMemory(state.DefaultParams())
	require.NoError(t, err)
	defer s.Close()

	k := NewKeeper(s)
	c, err := k.Load()
	require.NoError(t, err)
	require.Equal(t, Defaults(), c)
}

func TestKeeper_Apply_PartialUpdate(t *testing.T) {
	s, err := state.OpenInMemory(state.DefaultParams())
	require.NoError(t, err)
	defer s.Close()

	k := NewKeeper(s)
	g := 0.9
	c, err := k.Apply(Update{Gravity: &g})
	require.NoError(t, err)
	require.Equal(t, 0.9, c.Gravity)
	require.Equal(t, 1.0, c.BaseMass) // untouched

	// Persisted, not just returned.
	c, err = k.Load()
	require.NoError(t, err)
	require.Equal(t, 0.9, c.Gravity)

	bm := 2.5
	c, err = k.Apply(Update{BaseMass: &bm})
	require.NoError(t, err)
	require.Equal(t, 0.9, c.Gravity)
	require.Equal(t, 2.5, c.BaseMass)
}
