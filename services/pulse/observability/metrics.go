// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides metrics and instrumentation for the pulse service.
//
// # Description
//
// This package implements Prometheus metrics for monitoring the pulse
// fan-out and checkout paths. Metrics include:
//   - Pulse broadcast counters and dropped-frame counters (by group)
//   - Active observer gauges
//   - Checkout attempt counters (by outcome and abort reason)
//   - Decay tick latency histograms
//
// # Integration
//
// Metrics are exposed via the /metrics endpoint. Use with Prometheus +
// Grafana for dashboards and alerting.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

// Namespace for all metrics
const metricsNamespace = "swiftcart"

// Subsystem for pulse fan-out metrics
const pulseSubsystem = "pulse"

// PulseMetrics holds all Prometheus metrics for the pulse service.
//
// # Description
//
// Provides counters, histograms, and gauges for monitoring the decay
// engine, pulse broadcast path, and checkout outcomes. Initialize once
// at startup via InitMetrics().
//
// # Fields
//
//   - PulsesBroadcastTotal: Counter of pulse frames broadcast by group
//   - FramesDroppedTotal: Counter of frames dropped on slow observers
//   - ActiveObservers: Gauge of connected observers by group
//   - CheckoutAttemptsTotal: Counter of checkout attempts by outcome
//   - TickDurationSeconds: Histogram of decay tick duration
//   - InteractionsTotal: Counter of observer interaction hits
//   - SnapshotOpsTotal: Counter of session snapshot saves/loads
//
// # Thread Safety
//
// All operations are thread-safe.
type PulseMetrics struct {
	// PulsesBroadcastTotal counts pulse frames broadcast to observer groups.
	// Labels: group (global_pulse)
	PulsesBroadcastTotal *prometheus.CounterVec

	// FramesDroppedTotal counts frames dropped because an observer's
	// buffer was full. Labels: group
	FramesDroppedTotal *prometheus.CounterVec

	// ActiveObservers tracks currently connected pulse observers.
	// Labels: group
	ActiveObservers *prometheus.GaugeVec

	// CheckoutAttemptsTotal counts checkout attempts by outcome.
	// Labels: outcome (committed, OUT_OF_STOCK, PRICE_DRIFT, FORCED, CONFLICT)
	CheckoutAttemptsTotal *prometheus.CounterVec

	// TickDurationSeconds measures how long a full decay tick takes.
	TickDurationSeconds prometheus.Histogram

	// InteractionsTotal counts interaction hits received over WebSocket.
	// Labels: product_id
	InteractionsTotal *prometheus.CounterVec

	// SnapshotOpsTotal counts session snapshot operations.
	// Labels: op (save, load), status (ok, miss, error)
	SnapshotOpsTotal *prometheus.CounterVec
}

// DefaultMetrics is the singleton instance of PulseMetrics.
// Initialized by InitMetrics().
var DefaultMetrics *PulseMetrics

// InitMetrics initializes the default metrics instance.
//
// # Description
//
// Creates and registers all Prometheus metrics. Should be called once
// at application startup, after the Prometheus registry is available.
//
// # Outputs
//
//   - *PulseMetrics: The initialized metrics instance.
//
// # Examples
//
//	func main() {
//	    observability.InitMetrics()
//	    // ... start server ...
//	}
//
// # Limitations
//
//   - Panics if called twice (duplicate registration).
//
// # Assumptions
//
//   - Prometheus default registry is available.
func InitMetrics() *PulseMetrics {
	DefaultMetrics = &PulseMetrics{
		PulsesBroadcastTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: pulseSubsystem,
				Name:      "pulses_broadcast_total",
				Help:      "Total pulse frames broadcast to observer groups",
			},
			[]string{"group"},
		),

		FramesDroppedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: pulseSubsystem,
				Name:      "frames_dropped_total",
				Help:      "Total frames dropped on observers with full buffers",
			},
			[]string{"group"},
		),

		ActiveObservers: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: pulseSubsystem,
				Name:      "active_observers",
				Help:      "Number of currently connected pulse observers",
			},
			[]string{"group"},
		),

		CheckoutAttemptsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: pulseSubsystem,
				Name:      "checkout_attempts_total",
				Help:      "Total checkout attempts by outcome",
			},
			[]string{"outcome"},
		),

		TickDurationSeconds: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: pulseSubsystem,
				Name:      "tick_duration_seconds",
				Help:      "Duration of a full decay tick in seconds",
				Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.2},
			},
		),

		InteractionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: pulseSubsystem,
				Name:      "interactions_total",
				Help:      "Total interaction hits received from observers",
			},
			[]string{"product_id"},
		),

		SnapshotOpsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: pulseSubsystem,
				Name:      "snapshot_ops_total",
				Help:      "Total session snapshot operations by kind and status",
			},
			[]string{"op", "status"},
		),
	}

	return DefaultMetrics
}

// =============================================================================
// Checkout Outcomes
// =============================================================================

// OutcomeCommitted labels a checkout attempt that decremented stock.
const OutcomeCommitted = "committed"

// =============================================================================
// Helper Methods
// =============================================================================

// RecordBroadcast records one broadcast fan-out.
//
// # Inputs
//
//   - group: The observer group the frame was sent to.
//   - dropped: Number of observers whose buffers were full.
func (m *PulseMetrics) RecordBroadcast(group string, dropped int) {
	m.PulsesBroadcastTotal.WithLabelValues(group).Inc()
	if dropped > 0 {
		m.FramesDroppedTotal.WithLabelValues(group).Add(float64(dropped))
	}
}

// ObserverJoined increments the active observers gauge.
//
// # Inputs
//
//   - group: The group the observer joined.
func (m *PulseMetrics) ObserverJoined(group string) {
	m.ActiveObservers.WithLabelValues(group).Inc()
}

// ObserverLeft decrements the active observers gauge.
//
// # Inputs
//
//   - group: The group the observer left.
func (m *PulseMetrics) ObserverLeft(group string) {
	m.ActiveObservers.WithLabelValues(group).Dec()
}

// RecordCheckout records a checkout attempt outcome.
//
// # Inputs
//
//   - outcome: OutcomeCommitted or an abort reason code.
func (m *PulseMetrics) RecordCheckout(outcome string) {
	m.CheckoutAttemptsTotal.WithLabelValues(outcome).Inc()
}

// RecordTickDuration records how long one decay tick took.
//
// # Inputs
//
//   - seconds: Tick duration in seconds.
func (m *PulseMetrics) RecordTickDuration(seconds float64) {
	m.TickDurationSeconds.Observe(seconds)
}

// RecordInteraction records one interaction hit for a product.
//
// # Inputs
//
//   - productID: The product the hit applies to.
func (m *PulseMetrics) RecordInteraction(productID string) {
	m.InteractionsTotal.WithLabelValues(productID).Inc()
}

// RecordSnapshotOp records one session snapshot operation.
//
// # Inputs
//
//   - op: "save" or "load".
//   - status: "ok", "miss", or "error".
func (m *PulseMetrics) RecordSnapshotOp(op, status string) {
	m.SnapshotOpsTotal.WithLabelValues(op, status).Inc()
}
