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
	"time"

	"github.com/johmakinen/DAAgent/services/orchestrator/session"
	"github.com/johmakinen/DAAgent/services/orchestrator/storage"
	"go.opentelemetry.io/otel"
)

var ttlTracer = otel.Tracer("daagent.orchestrator.ttl")

// CleanupError records one session that failed to clean.
type CleanupError struct {
	SessionID string
	Reason    string
}

// CleanupResult summarizes one sweep.
type CleanupResult struct {
	SessionsScanned int
	SessionsDeleted int
	MessagesDeleted int
	Errors          []CleanupError
	StartTime       time.Time
	EndTime         time.Time
}

// DurationMs returns the sweep duration in milliseconds.
func (r CleanupResult) DurationMs() int64 {
	return r.EndTime.Sub(r.StartTime).Milliseconds()
}

// SessionCleaner deletes sessions whose last activity is older than the
// retention window.
//
// # Description
//
// A sweep walks the in-memory store, skips sessions with a turn in
// flight, and for each expired session removes the in-memory state, the
// persisted history, and the session registry entry. Per-session
// failures are accumulated, not fatal: the session stays and is retried
// on the next sweep.
//
// # Thread Safety
//
// Safe for concurrent use; all shared state lives in the injected
// collaborators.
type SessionCleaner struct {
	sessions  *session.Store
	cancels   *session.CancelRegistry
	messages  storage.MessageStore
	clock     Clock
	retention time.Duration
}

// NewSessionCleaner creates a cleaner with the given retention window.
// A nil clock defaults to the system clock.
func NewSessionCleaner(
	sessions *session.Store,
	cancels *session.CancelRegistry,
	messages storage.MessageStore,
	retention time.Duration,
	clock Clock,
) *SessionCleaner {
	if clock == nil {
		clock = SystemClock{}
	}
	return &SessionCleaner{
		sessions:  sessions,
		cancels:   cancels,
		messages:  messages,
		clock:     clock,
		retention: retention,
	}
}

// Sweep deletes all expired sessions and reports what it did.
func (c *SessionCleaner) Sweep(ctx context.Context) (CleanupResult, error) {
	ctx, span := ttlTracer.Start(ctx, "SessionCleaner.Sweep")
	defer span.End()

	result := CleanupResult{
		StartTime: c.clock.Now(),
		Errors:    make([]CleanupError, 0),
	}
	cutoff := result.StartTime.Add(-c.retention)

	for _, s := range c.sessions.List() {
		if err := ctx.Err(); err != nil {
			result.EndTime = c.clock.Now()
			return result, fmt.Errorf("sweep interrupted: %w", err)
		}
		result.SessionsScanned++

		if !s.UpdatedAt().Before(cutoff) {
			continue
		}
		if c.cancels.InFlight(s.ID) {
			slog.Debug("ttl: skipping expired session with a turn in flight",
				"session_id", s.ID)
			continue
		}

		c.deleteSession(ctx, s.ID, &result)
	}

	result.EndTime = c.clock.Now()
	return result, nil
}

func (c *SessionCleaner) deleteSession(ctx context.Context, id string, result *CleanupResult) {
	deleted, err := c.messages.DeleteHistory(ctx, id)
	if err != nil {
		slog.Warn("ttl: failed to delete persisted history",
			"session_id", id, "error", err)
		result.Errors = append(result.Errors, CleanupError{
			SessionID: id,
			Reason:    fmt.Sprintf("delete history failed: %v", err),
		})
		return
	}
	result.MessagesDeleted += deleted

	if _, _, err := c.messages.DeleteSession(ctx, id); err != nil {
		slog.Warn("ttl: failed to delete session registry entry",
			"session_id", id, "error", err)
		result.Errors = append(result.Errors, CleanupError{
			SessionID: id,
			Reason:    fmt.Sprintf("delete session failed: %v", err),
		})
		return
	}

	c.sessions.Delete(id)
	result.SessionsDeleted++
	slog.Info("ttl: expired session deleted",
		"session_id", id, "persisted_messages", deleted)
}
