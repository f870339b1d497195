// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pulsewire

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestPulseRoundTrip tests decode(encode(ev)) == ev across representative
// events, including boundary floats and the pos/vel schema variant.
func TestPulseRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		ev   PulseEvent
	}{
		{
			name: "plain price pulse",
			ev: PulseEvent{
				ProductID:   "pro_001_nebula",
				Price:       99.99,
				Mass:        1.2,
				Instability: 0.8,
				Stock:       5,
				Hits:        3,
				Timestamp:   1767225600.25,
			},
		},
		{
			name: "floor price, zero hits",
			ev: PulseEvent{
				ProductID: "test-orb-1",
				Price:     70.0,
				Mass:      1.0,
				Stock:     100,
				Timestamp: 0,
			},
		},
		{
			name: "boundary floats",
			ev: PulseEvent{
				ProductID:   "edge",
				Price:       math.MaxFloat64,
				Mass:        math.SmallestNonzeroFloat64,
				Instability: 1.0,
				Stock:       1,
				Hits:        math.MaxInt32,
				Timestamp:   -1.5,
			},
		},
		{
			name: "position velocity variant",
			ev: PulseEvent{
				ProductID:   "orb-2",
				Price:       88.4,
				Mass:        2.6,
				Instability: 0.2,
				Stock:       20,
				Hits:        12,
				Timestamp:   1767225601.05,
				Pos:         &Vec2{X: 120.5, Y: -44.25},
				Vel:         &Vec2{X: -0.001, Y: 9.75},
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b, err := Encode(tc.ev)
			require.NoError(t, err)

			got, err := Decode(b)
			require.NoError(t, err)
			require.Equal(t, tc.ev, got)
		})
	}
}

// TestDecode_Malformed tests that garbage bytes fail cleanly instead of
// producing a zero-value event.
func TestDecode_Malformed(t *testing.T) {
	_, err := Decode([]byte{0xc1}) // 0xc1 is never valid msgpack
	require.Error(t, err)
}

// TestCelestialRoundTrip tests the administrative frame variant,
// including the forced type discriminator.
func TestCelestialRoundTrip(t *testing.T) {
	f := CelestialFrame{
		Gravity:   0.9,
		BaseMass:  2.0,
		Pulse:     true,
		ProductID: "pro_001_nebula",
		Timestamp: 1767225600.5,
	}

	b, err := EncodeCelestial(f)
	require.NoError(t, err)

	got, err := DecodeCelestial(b)
	require.NoError(t, err)
	require.Equal(t, CelestialFrameType, got.Type)
	f.Type = CelestialFrameType
	require.Equal(t, f, got)
}

// TestDecodeCelestial_WrongType tests that a plain pulse is rejected by
// the celestial decoder.
func TestDecodeCelestial_WrongType(t *testing.T) {
	b, err := Encode(PulseEvent{ProductID: "orb-1", Price: 70})
	require.NoError(t, err)

	_, err = DecodeCelestial(b)
	require.Error(t, err)
}
