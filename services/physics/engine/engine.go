// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package engine implements the price decay engine.
//
// The engine is a single perpetual loop: one tick per interval (default
// 200ms), strictly sequential, ticks never overlap even when a tick runs
// long. Per tick it consumes the accumulated interaction count, decays
// the price toward the floor, relaxes the communal mass toward base mass,
// erodes stock, derives instability, persists the new state, and emits a
// pulse event for fan-out.
//
// # Failure Semantics
//
// A tick error is logged and the loop continues to the next interval; a
// single bad tick never terminates the engine and never propagates to
// checkout or broadcast callers. Absent keys read as seeded defaults, so
// a brand-new product's first tick works. Price and mass are independent
// scalar sets (only the engine writes them); stock is shared with
// checkout, so the tick decrements it inside a watched transaction and
// never overwrites a concurrent checkout's write. Only the external stop
// signal (Stop or context cancellation) ends the loop, and only at an
// iteration boundary, never mid-tick.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/AleutianAI/swiftcart/services/physics/celestial"
	"github.com/AleutianAI/swiftcart/services/physics/pulsewire"
	"github.com/AleutianAI/swiftcart/services/physics/state"
)

// Clock abstracts time.Now so tick timestamps are testable.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// RealClock returns the wall clock.
func RealClock() Clock { return realClock{} }

// Publisher receives the pulse event produced by each tick. The pulse
// service implements this by encoding the event and fanning it out to the
// observer hub; tests implement it with a slice.
type Publisher interface {
	PublishPulse(ev pulsewire.PulseEvent)
}

// Config holds the decay tuning knobs. The prototype values are kept as
// parameters rather than hard invariants.
type Config struct {
	// Interval between ticks. Default: 200ms.
	Interval time.Duration

	// TemporalDecay is the constant per-tick price drop. Default: 0.01.
	TemporalDecay float64

	// InteractionDecay is the additional price drop per hit. Default: 0.05.
	InteractionDecay float64

	// MassMultiplier is the mass gained per hit. Default: 0.2.
	MassMultiplier float64

	// MassRelaxation is the per-tick fraction of excess mass shed back
	// toward base mass. Default: 0.05.
	MassRelaxation float64

	// ErosionChance is the per-tick probability of losing one unit of
	// stock independent of interactions. Default: 0.05.
	ErosionChance float64

	// Products are the product ids ticked each interval.
	Products []string

	// Clock supplies tick timestamps. Default: RealClock().
	Clock Clock

	// Rand drives the stochastic stock erosion. Default: a time-seeded
	// source. Inject a fixed seed for reproducible tests.
	Rand *rand.Rand

	// TickObserver, when set, receives the wall-clock duration of each
	// full tick pass. Used to feed latency metrics.
	TickObserver func(d time.Duration)
}

// DefaultConfig returns the prototype decay constants for the given
// products.
func DefaultConfig(products ...string) Config {
	return Config{
		Interval:         200 * time.Millisecond,
		TemporalDecay:    0.01,
		InteractionDecay: 0.05,
		MassMultiplier:   0.2,
		MassRelaxation:   0.05,
		ErosionChance:    0.05,
		Products:         products,
	}
}

func applyConfigDefaults(cfg Config) Config {
	if cfg.Interval <= 0 {
		cfg.Interval = 200 * time.Millisecond
	}
	if cfg.TemporalDecay == 0 {
		cfg.TemporalDecay = 0.01
	}
	if cfg.InteractionDecay == 0 {
		cfg.InteractionDecay = 0.05
	}
	if cfg.MassMultiplier == 0 {
		cfg.MassMultiplier = 0.2
	}
	if cfg.MassRelaxation == 0 {
		cfg.MassRelaxation = 0.05
	}
	if cfg.Clock == nil {
		cfg.Clock = RealClock()
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return cfg
}

// Instability derives the 0-1 low-stock urgency score from the stock
// fraction. Thresholds are checked from most to least severe, stopping at
// the first match.
func Instability(stock, maxStock int) float64 {
	if stock == 1 {
		return 1.0
	}
	if maxStock <= 0 {
		return 0.0
	}
	frac := float64(stock) / float64(maxStock)
	switch {
	case frac <= 0.05:
		return 0.8
	case frac <= 0.10:
		return 0.5
	case frac <= 0.20:
		return 0.2
	default:
		return 0.0
	}
}

// Engine is the price decay engine.
//
// # Thread Safety
//
// Start/Stop are safe for concurrent use. Tick itself must only run on
// the engine goroutine (or directly from tests); the loop guarantees
// one tick at a time.
type Engine struct {
	cfg       Config
	store     *state.Store
	constants *celestial.Keeper
	pub       Publisher

	mu      sync.Mutex
	running bool
	done    chan struct{}
}

// New creates a decay engine over the given store and publisher. A nil
// publisher runs the physics without fan-out (headless mode).
func New(cfg Config, store *state.Store, constants *celestial.Keeper, pub Publisher) *Engine {
	return &Engine{
		cfg:       applyConfigDefaults(cfg),
		store:     store,
		constants: constants,
		pub:       pub,
		done:      make(chan struct{}),
	}
}

// Start launches the tick loop goroutine.
//
// Returns an error if the engine is already running. The loop stops when
// Stop is called or ctx is cancelled, always at an iteration boundary.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return fmt.Errorf("decay engine is already running")
	}
	e.running = true
	e.done = make(chan struct{})
	done := e.done
	e.mu.Unlock()

	slog.Info("Starting decay engine",
		"interval", e.cfg.Interval.String(),
		"products", e.cfg.Products,
		"temporal_decay", e.cfg.TemporalDecay,
		"interaction_decay", e.cfg.InteractionDecay,
	)

	go e.runLoop(ctx, done)
	return nil
}

// Products returns the product ids this engine ticks.
func (e *Engine) Products() []string {
	out := make([]string, len(e.cfg.Products))
	copy(out, e.cfg.Products)
	return out
}

// Stop signals the loop to exit after the current tick. Safe to call more
// than once.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return
	}
	slog.Info("Decay engine stopping")
	close(e.done)
	e.running = false
}

// runLoop receives its stop channel as a parameter: a later Start/Stop
// cycle reassigns e.done, and this goroutine must keep watching the
// channel it was started with.
func (e *Engine) runLoop(ctx context.Context, done <-chan struct{}) {
	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Decay engine context cancelled")
			return
		case <-done:
			return
		case <-ticker.C:
			e.tickAll()
		}
	}
}

// tickAll runs one tick for every tracked product, isolating per-product
// errors.
func (e *Engine) tickAll() {
	start := time.Now()
	for _, id := range e.cfg.Products {
		if _, err := e.Tick(id); err != nil {
			slog.Error("decay tick failed", "product_id", id, "error", err)
		}
	}
	if e.cfg.TickObserver != nil {
		e.cfg.TickObserver(time.Since(start))
	}
}

// Tick executes one decay iteration for one product and publishes the
// resulting pulse.
//
// # Description
//
// Consumes the interaction counter, then computes:
//
//	new_price = clamp(price - (temporal + hits*interaction), floor)
//	grown     = mass + hits*mass_multiplier
//	new_mass  = max(base_mass, grown - relaxation*(grown-base_mass))
//
// Stock drops by one when hits > 0, and independently by one with
// ErosionChance probability. The decrement runs inside a watched
// transaction against the live stock value: checkout writes the same
// key, so a plain set here could resurrect a sold unit. When the tick
// sheds no stock, the key is not written at all. Instability is derived
// from the stock fraction. Price and mass are persisted as independent
// scalar writes (the engine is their only writer) and the pulse event
// carries the absolute new state plus the consumed hit count and the
// tick timestamp.
//
// # Outputs
//
//   - pulsewire.PulseEvent: The event as published.
//   - error: Non-nil on storage failure; the loop logs and continues.
func (e *Engine) Tick(id string) (pulsewire.PulseEvent, error) {
	consts, err := e.constants.Load()
	if err != nil {
		return pulsewire.PulseEvent{}, fmt.Errorf("load celestial constants: %w", err)
	}

	ps, err := e.store.Product(id)
	if err != nil {
		return pulsewire.PulseEvent{}, fmt.Errorf("read product state: %w", err)
	}
	hits, err := e.store.TakeHits(id)
	if err != nil {
		return pulsewire.PulseEvent{}, fmt.Errorf("consume hits: %w", err)
	}

	params := e.store.Params()
	floor := params.FloorPrice()

	newPrice := ps.Price - (e.cfg.TemporalDecay + float64(hits)*e.cfg.InteractionDecay)
	if newPrice < floor {
		newPrice = floor
	}

	baseMass := consts.BaseMass
	grown := ps.Mass + float64(hits)*e.cfg.MassMultiplier
	newMass := grown - e.cfg.MassRelaxation*(grown-baseMass)
	if newMass < baseMass {
		newMass = baseMass
	}

	shed := 0
	if hits > 0 {
		shed++
	}
	if e.cfg.ErosionChance > 0 && e.cfg.Rand.Float64() < e.cfg.ErosionChance {
		shed++
	}

	if err := e.store.SetPrice(id, newPrice); err != nil {
		return pulsewire.PulseEvent{}, fmt.Errorf("persist price: %w", err)
	}
	if err := e.store.SetMass(id, newMass); err != nil {
		return pulsewire.PulseEvent{}, fmt.Errorf("persist mass: %w", err)
	}
	newStock := ps.Stock
	if shed > 0 {
		if newStock, err = e.shedStock(id, shed); err != nil {
			return pulsewire.PulseEvent{}, fmt.Errorf("persist stock: %w", err)
		}
	}

	ev := pulsewire.PulseEvent{
		ProductID:   id,
		Price:       newPrice,
		Mass:        newMass,
		Instability: Instability(newStock, params.MaxStock),
		Stock:       newStock,
		Hits:        hits,
		Timestamp:   unixSeconds(e.cfg.Clock.Now()),
	}
	if e.pub != nil {
		e.pub.PublishPulse(ev)
	}
	return ev, nil
}

// stockShedRetries bounds conflict retries when a checkout commits between
// the shed transaction's read and commit.
const stockShedRetries = 3

// shedStock decrements stock by shed inside a watched transaction, clamped
// at zero, and returns the committed value. Checkout mutates the same key,
// so the read and write must land in one transaction; on ErrConflict the
// decrement recomputes from the winner's value and retries.
func (e *Engine) shedStock(id string, shed int) (int, error) {
	for attempt := 0; ; attempt++ {
		tx := e.store.Begin(true)
		cur, err := tx.Stock(id)
		if err != nil {
			tx.Discard()
			return 0, err
		}
		next := cur - shed
		if next < 0 {
			next = 0
		}
		if next == cur {
			tx.Discard()
			return cur, nil
		}
		if err := tx.SetStock(id, next); err != nil {
			tx.Discard()
			return 0, err
		}
		err = tx.Commit()
		if err == nil {
			return next, nil
		}
		if !errors.Is(err, state.ErrConflict) || attempt >= stockShedRetries {
			return 0, err
		}
	}
}

// Snapshot builds a pulse event from the current stored state without
// mutating anything. Used for administrative force-pulse broadcasts.
func (e *Engine) Snapshot(id string) (pulsewire.PulseEvent, error) {
	ps, err := e.store.Product(id)
	if err != nil {
		return pulsewire.PulseEvent{}, fmt.Errorf("read product state: %w", err)
	}
	params := e.store.Params()
	return pulsewire.PulseEvent{
		ProductID:   id,
		Price:       ps.Price,
		Mass:        ps.Mass,
		Instability: Instability(ps.Stock, params.MaxStock),
		Stock:       ps.Stock,
		Hits:        0,
		Timestamp:   unixSeconds(e.cfg.Clock.Now()),
	}, nil
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
