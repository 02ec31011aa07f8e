// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the orchestrator.
//
// # Description
//
// Metrics cover the chat pipeline: turn counts and durations by outcome,
// in-flight turns, history summarizations, cache evictions, and
// cancellations. Exposed on /metrics for Prometheus scraping.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all metrics.
const metricsNamespace = "daagent"

// Subsystem for pipeline metrics.
const pipelineSubsystem = "pipeline"

// Outcome labels a completed turn for metrics.
type Outcome string

const (
	// OutcomeDone is a fully completed turn.
	OutcomeDone Outcome = "done"

	// OutcomeClarifying is a turn that ended with a follow-up question.
	OutcomeClarifying Outcome = "clarifying"

	// OutcomeCancelled is a turn stopped by a cancel request.
	OutcomeCancelled Outcome = "cancelled"

	// OutcomeError is a turn that failed.
	OutcomeError Outcome = "error"
)

// TurnMetrics holds all Prometheus metrics for chat pipeline operations.
type TurnMetrics struct {
	// TurnsTotal counts completed turns by outcome.
	// Labels: outcome (done, clarifying, cancelled, error)
	TurnsTotal *prometheus.CounterVec

	// TurnDurationSeconds measures end-to-end turn duration.
	// Labels: outcome
	TurnDurationSeconds *prometheus.HistogramVec

	// ActiveTurns tracks currently in-flight turns.
	ActiveTurns prometheus.Gauge

	// SummarizationsTotal counts history summarization runs.
	SummarizationsTotal prometheus.Counter

	// CacheEvictionsTotal counts query results evicted from session caches.
	CacheEvictionsTotal prometheus.Counter

	// CancellationsTotal counts accepted cancel requests.
	CancellationsTotal prometheus.Counter
}

// DefaultMetrics is the singleton instance of TurnMetrics.
// Initialized by InitMetrics().
var DefaultMetrics *TurnMetrics

// InitMetrics initializes the default metrics instance against the
// default Prometheus registry. Call once at application startup; a second
// call panics on duplicate registration.
func InitMetrics() *TurnMetrics {
	DefaultMetrics = NewTurnMetrics(prometheus.DefaultRegisterer)
	return DefaultMetrics
}

// NewTurnMetrics creates and registers the metric set on the given
// registerer. Tests pass their own registry to avoid collisions.
func NewTurnMetrics(reg prometheus.Registerer) *TurnMetrics {
	factory := promauto.With(reg)
	return &TurnMetrics{
		TurnsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: pipelineSubsystem,
				Name:      "turns_total",
				Help:      "Total completed chat turns by outcome",
			},
			[]string{"outcome"},
		),

		TurnDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: pipelineSubsystem,
				Name:      "turn_duration_seconds",
				Help:      "End-to-end chat turn duration in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"outcome"},
		),

		ActiveTurns: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: pipelineSubsystem,
				Name:      "active_turns",
				Help:      "Number of currently in-flight chat turns",
			},
		),

		SummarizationsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: pipelineSubsystem,
				Name:      "summarizations_total",
				Help:      "Total history summarization runs",
			},
		),

		CacheEvictionsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: pipelineSubsystem,
				Name:      "cache_evictions_total",
				Help:      "Total query results evicted from session caches",
			},
		),

		CancellationsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: pipelineSubsystem,
				Name:      "cancellations_total",
				Help:      "Total accepted cancel requests",
			},
		),
	}
}

// RecordTurn records a completed turn and its duration.
func (m *TurnMetrics) RecordTurn(outcome Outcome, seconds float64) {
	m.TurnsTotal.WithLabelValues(string(outcome)).Inc()
	m.TurnDurationSeconds.WithLabelValues(string(outcome)).Observe(seconds)
}

// TurnStarted increments the in-flight gauge.
func (m *TurnMetrics) TurnStarted() {
	m.ActiveTurns.Inc()
}

// TurnEnded decrements the in-flight gauge.
func (m *TurnMetrics) TurnEnded() {
	m.ActiveTurns.Dec()
}
