// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// newTestMetrics creates a TurnMetrics instance on an isolated registry so
// tests do not collide with the global one.
func newTestMetrics(t *testing.T) (*TurnMetrics, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewTurnMetrics(reg), reg
}

func TestRecordTurn_CountsByOutcome(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.RecordTurn(OutcomeDone, 1.2)
	m.RecordTurn(OutcomeDone, 0.4)
	m.RecordTurn(OutcomeError, 2.0)

	if got := testutil.ToFloat64(m.TurnsTotal.WithLabelValues(string(OutcomeDone))); got != 2 {
		t.Errorf("done turns = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.TurnsTotal.WithLabelValues(string(OutcomeError))); got != 1 {
		t.Errorf("error turns = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.TurnsTotal.WithLabelValues(string(OutcomeCancelled))); got != 0 {
		t.Errorf("cancelled turns = %v, want 0", got)
	}
}

func TestActiveTurns_Gauge(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.TurnStarted()
	m.TurnStarted()
	if got := testutil.ToFloat64(m.ActiveTurns); got != 2 {
		t.Errorf("active turns = %v, want 2", got)
	}

	m.TurnEnded()
	if got := testutil.ToFloat64(m.ActiveTurns); got != 1 {
		t.Errorf("active turns = %v, want 1", got)
	}
}

func TestCounters_Increment(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.SummarizationsTotal.Inc()
	m.CacheEvictionsTotal.Add(3)
	m.CancellationsTotal.Inc()

	if got := testutil.ToFloat64(m.SummarizationsTotal); got != 1 {
		t.Errorf("summarizations = %v", got)
	}
	if got := testutil.ToFloat64(m.CacheEvictionsTotal); got != 3 {
		t.Errorf("cache evictions = %v", got)
	}
	if got := testutil.ToFloat64(m.CancellationsTotal); got != 1 {
		t.Errorf("cancellations = %v", got)
	}
}

func TestTurnDuration_Observed(t *testing.T) {
	m, reg := newTestMetrics(t)

	m.RecordTurn(OutcomeDone, 0.5)

	count, err := testutil.GatherAndCount(reg, "daagent_pipeline_turn_duration_seconds")
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	if count == 0 {
		t.Error("expected the turn duration histogram to be registered and observed")
	}
}
