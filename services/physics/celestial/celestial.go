// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package celestial manages the process-wide administrative physics
// constants (gravity coefficient, base mass).
//
// Constants are persisted in the state store so the decay engine and the
// standalone decay command observe the same values. The engine re-reads
// them at every tick boundary; an admin update therefore takes effect on
// the next tick without any coordination.
package celestial

import (
	"github.com/AleutianAI/swiftcart/services/physics/state"
)

// Constants are the tunable physics constants.
type Constants struct {
	Gravity  float64
	BaseMass float64
}

// Defaults returns the prototype defaults (0.5 G, base mass 1.0).
func Defaults() Constants {
	return Constants{Gravity: 0.5, BaseMass: 1.0}
}

// Update carries an admin change. Nil fields are left as-is.
type Update struct {
	Gravity  *float64
	BaseMass *float64
}

// Keeper loads and applies celestial constants against the state store.
type Keeper struct {
	store *state.Store
}

// NewKeeper returns a Keeper backed by the given store.
func NewKeeper(store *state.Store) *Keeper {
	return &Keeper{store: store}
}

// Load reads the current constants, falling back to defaults for keys
// that were never set.
func (k *Keeper) Load() (Constants, error) {
	def := Defaults()
	g, err := k.store.LookupFloat(state.KeyCelestialGravity, def.Gravity)
	if err != nil {
		return Constants{}, err
	}
	bm, err := k.store.LookupFloat(state.KeyCelestialBaseMass, def.BaseMass)
	if err != nil {
		return Constants{}, err
	}
	return Constants{Gravity: g, BaseMass: bm}, nil
}

// Apply persists the non-nil fields of the update atomically and returns
// the resulting constants. Both writes land in one transaction so a
// concurrent Load never observes a half-applied update.
func (k *Keeper) Apply(u Update) (Constants, error) {
	def := Defaults()
	tx := k.store.Begin(true)
	defer tx.Discard()

	c := Constants{}
	var err error
	if c.Gravity, err = tx.Float(state.KeyCelestialGravity, def.Gravity); err != nil {
		return Constants{}, err
	}
	if c.BaseMass, err = tx.Float(state.KeyCelestialBaseMass, def.BaseMass); err != nil {
		return Constants{}, err
	}

	if u.Gravity != nil {
		c.Gravity = *u.Gravity
		if err := tx.SetFloat(state.KeyCelestialGravity, c.Gravity); err != nil {
			return Constants{}, err
		}
	}
	if u.BaseMass != nil {
		c.BaseMass = *u.BaseMass
		if err := tx.SetFloat(state.KeyCelestialBaseMass, c.BaseMass); err != nil {
			return Constants{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return Constants{}, err
	}
	return c, nil
}
