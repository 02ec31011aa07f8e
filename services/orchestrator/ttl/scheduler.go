// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ttl

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// SchedulerConfig holds configuration for the cleanup scheduler.
type SchedulerConfig struct {
	// Interval is how often a sweep runs. Default: 1 hour.
	Interval time.Duration

	// Retention is how long an idle session survives. Default: 7 days.
	Retention time.Duration
}

// DefaultSchedulerConfig returns production defaults.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Interval:  1 * time.Hour,
		Retention: 7 * 24 * time.Hour,
	}
}

// Scheduler runs the session cleaner on a fixed interval.
//
// # Description
//
// Start launches a goroutine that sweeps immediately and then on every
// tick until Stop is called or the context is cancelled. Sweep errors
// are logged, never fatal to the loop.
//
// # Thread Safety
//
// All public methods are thread-safe.
type Scheduler struct {
	cleaner *SessionCleaner
	config  SchedulerConfig
	done    chan struct{}
	mu      sync.Mutex
	running bool
}

// NewScheduler creates a scheduler over the given cleaner.
func NewScheduler(cleaner *SessionCleaner, config SchedulerConfig) *Scheduler {
	return &Scheduler{
		cleaner: cleaner,
		config:  config,
		done:    make(chan struct{}),
	}
}

// Start begins the background sweep loop. Fails if already running.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler is already running")
	}
	s.running = true
	s.done = make(chan struct{}) // reset for restart
	s.mu.Unlock()

	slog.Info("session TTL scheduler starting",
		"interval", s.config.Interval.String(),
		"retention", s.config.Retention.String(),
	)

	go s.runLoop(ctx)
	return nil
}

// Stop signals the loop to exit. Safe to call multiple times.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	slog.Info("session TTL scheduler stopping")
	close(s.done)
	s.running = false
}

// RunNow triggers an immediate sweep outside the schedule.
func (s *Scheduler) RunNow(ctx context.Context) (CleanupResult, error) {
	return s.cleaner.Sweep(ctx)
}

func (s *Scheduler) runLoop(ctx context.Context) {
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	// Sweep once on start so restarts don't wait a full interval.
	s.executeSweep(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("session TTL scheduler stopped (context cancelled)")
			return
		case <-s.done:
			slog.Info("session TTL scheduler stopped (stop requested)")
			return
		case <-ticker.C:
			s.executeSweep(ctx)
		}
	}
}

func (s *Scheduler) executeSweep(ctx context.Context) {
	result, err := s.cleaner.Sweep(ctx)
	if err != nil {
		slog.Error("session TTL sweep failed", "error", err)
		return
	}
	if result.SessionsDeleted > 0 || len(result.Errors) > 0 {
		slog.Info("session TTL sweep completed",
			"scanned", result.SessionsScanned,
			"deleted", result.SessionsDeleted,
			"messages_deleted", result.MessagesDeleted,
			"errors", len(result.Errors),
			"duration_ms", result.DurationMs(),
		)
	} else {
		slog.Debug("session TTL sweep completed (nothing expired)")
	}
}
