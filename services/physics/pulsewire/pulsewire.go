// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package pulsewire defines the binary wire format for price pulses.
//
// Frames are MessagePack maps with short keys to keep per-message size
// small at pulse frequency (5Hz decay ticks, up to 60Hz in mock mode):
//
//	{id, p, m, ins, stk, hits, t}
//
// plus optional pos/vel {x,y} pairs for position-based observers, and a
// separate CELESTIAL frame for administrative broadcasts:
//
//	{type: "CELESTIAL", g, m, pulse, pid, t}
//
// Every pulse carries absolute state, never deltas, so a dropped frame is
// superseded by the next one and the feed self-heals on loss.
package pulsewire

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// CelestialFrameType is the discriminator value of administrative frames.
const CelestialFrameType = "CELESTIAL"

// Vec2 is a 2D float pair used by the position/velocity schema variant.
type Vec2 struct {
	X float64 `msgpack:"x"`
	Y float64 `msgpack:"y"`
}

// PulseEvent is one product-state broadcast. Produced once per decay tick
// (or on an administrative force-pulse), encoded once, then discarded.
type PulseEvent struct {
	// ProductID identifies the product this pulse describes.
	ProductID string `msgpack:"id"`

	// Price is the current price after this tick's decay.
	Price float64 `msgpack:"p"`

	// Mass is the communal interaction mass.
	Mass float64 `msgpack:"m"`

	// Instability is the 0-1 low-stock urgency score.
	Instability float64 `msgpack:"ins"`

	// Stock is the remaining stock level.
	Stock int `msgpack:"stk"`

	// Hits is the interaction count consumed by this tick.
	Hits int `msgpack:"hits"`

	// Timestamp is the server time of the tick in Unix seconds.
	Timestamp float64 `msgpack:"t"`

	// Pos and Vel carry the position/velocity schema variant.
	// Nil for plain price pulses.
	Pos *Vec2 `msgpack:"pos,omitempty"`
	Vel *Vec2 `msgpack:"vel,omitempty"`
}

// CelestialFrame is the administrative broadcast sent when constants
// change, so observers can re-tune their local physics immediately.
type CelestialFrame struct {
	Type      string  `msgpack:"type"`
	Gravity   float64 `msgpack:"g"`
	BaseMass  float64 `msgpack:"m"`
	Pulse     bool    `msgpack:"pulse"`
	ProductID string  `msgpack:"pid"`
	Timestamp float64 `msgpack:"t"`
}

// Encode serializes a pulse event into its compact binary form.
func Encode(ev PulseEvent) ([]byte, error) {
	b, err := msgpack.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode pulse: %w", err)
	}
	return b, nil
}

// Decode parses a binary pulse frame.
//
// A malformed frame is a DECODE_ERROR-class failure: callers log it, drop
// the frame, and keep the connection open.
func Decode(data []byte) (PulseEvent, error) {
	var ev PulseEvent
	if err := msgpack.Unmarshal(data, &ev); err != nil {
		return PulseEvent{}, fmt.Errorf("decode pulse: %w", err)
	}
	return ev, nil
}

// EncodeCelestial serializes an administrative frame. The Type field is
// forced so receivers can always discriminate on it.
func EncodeCelestial(f CelestialFrame) ([]byte, error) {
	f.Type = CelestialFrameType
	b, err := msgpack.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("encode celestial frame: %w", err)
	}
	return b, nil
}

// DecodeCelestial parses an administrative frame.
func DecodeCelestial(data []byte) (CelestialFrame, error) {
	var f CelestialFrame
	if err := msgpack.Unmarshal(data, &f); err != nil {
		return CelestialFrame{}, fmt.Errorf("decode celestial frame: %w", err)
	}
	if f.Type != CelestialFrameType {
		return CelestialFrame{}, fmt.Errorf("decode celestial frame: unexpected type %q", f.Type)
	}
	return f, nil
}
