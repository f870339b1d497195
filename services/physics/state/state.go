// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package state provides the shared product state store for the physics
// pipeline.
//
// All mutable state (price, stock, communal mass, interaction counters,
// celestial constants) lives in a single embedded BadgerDB instance. Keys
// follow the original SwiftCart Redis layout:
//
//	sc:prod:price:{id}     current price (float)
//	sc:prod:mass:{id}      communal mass (float)
//	sc:prod:stock:{id}     remaining stock (int)
//	sc:prod:hits:{id}      interaction counter since last tick (int)
//	sc:celestial:g         gravity coefficient (float)
//	sc:celestial:base_mass base mass (float)
//
// # Concurrency
//
// Two access modes are supported:
//
//   - Single-key atomic operations (TakeHits, AddHit, SetPrice, ...) which
//     each run in their own serializable transaction.
//   - Multi-key optimistic transactions via Begin/Commit. Every key read
//     inside the transaction is watched; if a concurrent transaction
//     commits a write to a watched key first, Commit returns ErrConflict.
//     This is the WATCH/MULTI shape the checkout path depends on.
//
// Unguarded read-modify-write across separate transactions is not part of
// the API on purpose.
package state

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/dgraph-io/badger/v4"
)

// ErrConflict is returned by Tx.Commit when a watched key was modified by
// a concurrent transaction between Begin and Commit.
var ErrConflict = errors.New("state: watched key modified by concurrent transaction")

// =============================================================================
// Parameters
// =============================================================================

// Params holds the per-product pricing parameters.
//
// # Description
//
// Params seeds lazily created products and bounds the decay computation.
// The floor price is derived, never stored: FloorPct of MSRP (0.70 in the
// original prototype).
//
// # Fields
//
//   - MSRP: Initial and maximum price.
//   - FloorPct: Floor price as a fraction of MSRP.
//   - BaseMass: Resting communal mass.
//   - MaxStock: Initial stock level; also the denominator for instability.
type Params struct {
	MSRP     float64
	FloorPct float64
	BaseMass float64
	MaxStock int
}

// DefaultParams returns the prototype defaults (MSRP 100, floor 70%).
func DefaultParams() Params {
	return Params{
		MSRP:     100.0,
		FloorPct: 0.70,
		BaseMass: 1.0,
		MaxStock: 100,
	}
}

// FloorPrice returns the minimum price decay may reach.
func (p Params) FloorPrice() float64 {
	return p.MSRP * p.FloorPct
}

// ProductState is a point-in-time snapshot of one product's stored fields.
// Instability is derived per tick by the engine and is not persisted.
type ProductState struct {
	ProductID string
	Price     float64
	Mass      float64
	Stock     int
	Hits      int
}

// =============================================================================
// Key Scheme
// =============================================================================

// Celestial constant keys. Exposed so the celestial package can address
// them through the generic float accessors.
const (
	KeyCelestialGravity  = "sc:celestial:g"
	KeyCelestialBaseMass = "sc:celestial:base_mass"
)

func priceKey(id string) []byte { return []byte("sc:prod:price:" + id) }
func massKey(id string) []byte  { return []byte("sc:prod:mass:" + id) }
func stockKey(id string) []byte { return []byte("sc:prod:stock:" + id) }
func hitsKey(id string) []byte  { return []byte("sc:prod:hits:" + id) }

// =============================================================================
// Store
// =============================================================================

// Config holds configuration for opening the state store.
type Config struct {
	// Path is the directory for BadgerDB files.
	// Required unless InMemory is true.
	Path string

	// InMemory enables in-memory mode (no disk persistence).
	// Useful for testing.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool

	// Logger receives BadgerDB's internal log output.
	// If nil, BadgerDB's internal logging is disabled.
	Logger *slog.Logger
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Store is the shared product state store.
//
// # Thread Safety
//
// Safe for concurrent use. All operations run inside BadgerDB
// transactions; multi-key consistency is provided by Begin/Commit.
type Store struct {
	db     *badger.DB
	params Params
}

// Open creates and opens the state store with the given configuration.
//
// # Description
//
// Opens a BadgerDB database at the configured path, or in memory if
// InMemory is true. Creates the directory if it doesn't exist. Conflict
// detection is left enabled; the optimistic checkout path depends on it.
//
// # Inputs
//
//   - cfg: Database configuration. Path is required unless InMemory is true.
//   - params: Product seeding parameters. Zero-value fields fall back to
//     DefaultParams().
//
// # Outputs
//
//   - *Store: The opened store. Caller must call Close() when done.
//   - error: Non-nil if the path is invalid or the database cannot open.
func Open(cfg Config, params Params) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}
	if params.MSRP == 0 {
		params = DefaultParams()
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create state directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites)
	opts = opts.WithNumVersionsToKeep(1)

	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open state database: %w", err)
	}
	return &Store{db: db, params: params}, nil
}

// OpenInMemory opens an in-memory store for testing. Data is lost on Close.
func OpenInMemory(params Params) (*Store, error) {
	return Open(Config{InMemory: true}, params)
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Params returns the product seeding parameters the store was opened with.
func (s *Store) Params() Params {
	return s.params
}

// DB exposes the underlying BadgerDB instance so sibling stores (session
// snapshots) can share one database file.
func (s *Store) DB() *badger.DB {
	return s.db
}

// =============================================================================
// Raw value helpers (shared by Store and Tx)
// =============================================================================

// Values are stored as ASCII decimal strings, mirroring the Redis layout
// the key scheme came from. Floats round-trip via strconv with full
// precision.

func txGetFloat(txn *badger.Txn, key []byte, def float64) (float64, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return def, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get %s: %w", key, err)
	}
	var v float64
	err = item.Value(func(val []byte) error {
		var perr error
		v, perr = strconv.ParseFloat(string(val), 64)
		return perr
	})
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return v, nil
}

func txGetInt(txn *badger.Txn, key []byte, def int) (int, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return def, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get %s: %w", key, err)
	}
	var v int
	err = item.Value(func(val []byte) error {
		var perr error
		v, perr = strconv.Atoi(string(val))
		return perr
	})
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return v, nil
}

func txSetFloat(txn *badger.Txn, key []byte, v float64) error {
	return txn.Set(key, []byte(strconv.FormatFloat(v, 'f', -1, 64)))
}

func txSetInt(txn *badger.Txn, key []byte, v int) error {
	return txn.Set(key, []byte(strconv.Itoa(v)))
}

// =============================================================================
// Single-key atomic operations
// =============================================================================

// Product reads a consistent snapshot of one product.
//
// Absent keys read as seeded defaults (price=MSRP, stock=MaxStock,
// mass=BaseMass, hits=0); nothing is written. This is the lazy-creation
// behavior of the original engine: a missing key never fails a tick.
func (s *Store) Product(id string) (ProductState, error) {
	ps := ProductState{ProductID: id}
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		if ps.Price, err = txGetFloat(txn, priceKey(id), s.params.MSRP); err != nil {
			return err
		}
		if ps.Mass, err = txGetFloat(txn, massKey(id), s.params.BaseMass); err != nil {
			return err
		}
		if ps.Stock, err = txGetInt(txn, stockKey(id), s.params.MaxStock); err != nil {
			return err
		}
		ps.Hits, err = txGetInt(txn, hitsKey(id), 0)
		return err
	})
	if err != nil {
		return ProductState{}, err
	}
	return ps, nil
}

// EnsureProduct seeds default values for any absent keys of the product.
// Existing values are left untouched.
func (s *Store) EnsureProduct(id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		seedFloat := func(key []byte, def float64) error {
			if _, err := txn.Get(key); errors.Is(err, badger.ErrKeyNotFound) {
				return txSetFloat(txn, key, def)
			} else if err != nil {
				return err
			}
			return nil
		}
		seedInt := func(key []byte, def int) error {
			if _, err := txn.Get(key); errors.Is(err, badger.ErrKeyNotFound) {
				return txSetInt(txn, key, def)
			} else if err != nil {
				return err
			}
			return nil
		}
		if err := seedFloat(priceKey(id), s.params.MSRP); err != nil {
			return err
		}
		if err := seedFloat(massKey(id), s.params.BaseMass); err != nil {
			return err
		}
		if err := seedInt(stockKey(id), s.params.MaxStock); err != nil {
			return err
		}
		return seedInt(hitsKey(id), 0)
	})
}

// SetPrice persists the product price as an independent scalar write.
func (s *Store) SetPrice(id string, price float64) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txSetFloat(txn, priceKey(id), price)
	})
}

// SetMass persists the communal mass as an independent scalar write.
func (s *Store) SetMass(id string, mass float64) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txSetFloat(txn, massKey(id), mass)
	})
}

// SetStock persists the stock level as an independent scalar write.
func (s *Store) SetStock(id string, stock int) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txSetInt(txn, stockKey(id), stock)
	})
}

// TakeHits atomically reads the interaction counter and resets it to zero,
// returning the previous value. This is the GETSET-0 the decay tick uses
// so no interaction is counted twice or lost between ticks.
func (s *Store) TakeHits(id string) (int, error) {
	var hits int
	err := s.db.Update(func(txn *badger.Txn) error {
		var err error
		hits, err = txGetInt(txn, hitsKey(id), 0)
		if err != nil {
			return err
		}
		if hits == 0 {
			return nil
		}
		return txSetInt(txn, hitsKey(id), 0)
	})
	if err != nil {
		return 0, err
	}
	return hits, nil
}

// AddHit increments the interaction counter and returns the new value.
// Called from the realtime channel for every client interaction event.
func (s *Store) AddHit(id string) (int, error) {
	var hits int
	err := s.db.Update(func(txn *badger.Txn) error {
		var err error
		hits, err = txGetInt(txn, hitsKey(id), 0)
		if err != nil {
			return err
		}
		hits++
		return txSetInt(txn, hitsKey(id), hits)
	})
	if err != nil {
		return 0, err
	}
	return hits, nil
}

// LookupFloat reads a float value stored under an arbitrary key,
// returning def when the key is absent. Used for celestial constants.
func (s *Store) LookupFloat(key string, def float64) (float64, error) {
	var v float64
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		v, err = txGetFloat(txn, []byte(key), def)
		return err
	})
	if err != nil {
		return 0, err
	}
	return v, nil
}

// StoreFloat writes a float value under an arbitrary key.
func (s *Store) StoreFloat(key string, v float64) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txSetFloat(txn, []byte(key), v)
	})
}

// =============================================================================
// Optimistic multi-key transactions
// =============================================================================

// Tx is an optimistic multi-key transaction over the store.
//
// # Description
//
// Every read inside the transaction registers the key in the
// transaction's read set ("watch"). Commit fails with ErrConflict if a
// concurrent transaction committed a write to any watched key first.
// There is no partial commit: either all writes land or none do.
//
// # Limitations
//
//   - No automatic retry. Callers surface the conflict to their own
//     caller (the checkout contract) rather than looping.
//   - A Tx must be finished with exactly one of Commit or Discard.
type Tx struct {
	txn    *badger.Txn
	params Params
}

// Begin starts an optimistic transaction. Pass update=false for read-only
// snapshots (no conflict tracking needed).
func (s *Store) Begin(update bool) *Tx {
	return &Tx{txn: s.db.NewTransaction(update), params: s.params}
}

// Price reads the product price inside the transaction, watching the key.
func (t *Tx) Price(id string) (float64, error) {
	return txGetFloat(t.txn, priceKey(id), t.params.MSRP)
}

// Stock reads the stock level inside the transaction, watching the key.
func (t *Tx) Stock(id string) (int, error) {
	return txGetInt(t.txn, stockKey(id), t.params.MaxStock)
}

// SetStock stages a stock write. Visible to other transactions only after
// Commit succeeds.
func (t *Tx) SetStock(id string, stock int) error {
	return txSetInt(t.txn, stockKey(id), stock)
}

// Float reads an arbitrary float key inside the transaction.
func (t *Tx) Float(key string, def float64) (float64, error) {
	return txGetFloat(t.txn, []byte(key), def)
}

// SetFloat stages a write to an arbitrary float key.
func (t *Tx) SetFloat(key string, v float64) error {
	return txSetFloat(t.txn, []byte(key), v)
}

// Commit attempts to atomically apply all staged writes.
//
// Returns ErrConflict if any watched key was modified by a concurrent
// transaction since Begin. The transaction is finished either way.
func (t *Tx) Commit() error {
	err := t.txn.Commit()
	if errors.Is(err, badger.ErrConflict) {
		return ErrConflict
	}
	return err
}

// Discard abandons the transaction. Safe to call after Commit.
func (t *Tx) Discard() {
	t.txn.Discard()
}
