// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package session owns per-conversation runtime state: message history,
// the bounded query-result cache, the pending-clarification slot, and the
// per-session cancellation registry.
//
// All state is reached through Store; sessions are never mutated from
// outside this package. Within one session at most one request is in
// flight at a time (enforced by CancelRegistry), so the locks here exist
// for concurrent readers (history endpoint, session listing), not for
// concurrent writers.
package session

import (
	"sync"
	"time"

	"github.com/johmakinen/DAAgent/services/orchestrator/datatypes"
)

// PendingClarification is the single unresolved follow-up question for a
// session. A new clarification request overwrites it; they never stack.
type PendingClarification struct {
	// OriginalQuestion is the user question that triggered the follow-up.
	OriginalQuestion string

	// Question is the follow-up the assistant asked.
	Question string

	// AskedAt records when the follow-up was asked.
	AskedAt time.Time
}

// Session is one conversation thread with its own history and cache.
//
// Identity fields are immutable after creation. Mutable state is guarded
// by mu and only touched through methods on this type.
type Session struct {
	ID        string
	Title     string
	CreatedAt time.Time

	mu        sync.RWMutex
	updatedAt time.Time
	history   []datatypes.Message
	cache     []datatypes.CachedResult
	pending   *PendingClarification
}

func newSession(id, title string) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:        id,
		Title:     title,
		CreatedAt: now,
		updatedAt: now,
	}
}

// UpdatedAt returns the time of the last mutation.
func (s *Session) UpdatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updatedAt
}

// touchLocked bumps updatedAt. Callers must hold mu.
func (s *Session) touchLocked() {
	s.updatedAt = time.Now().UTC()
}

// History returns a copy of the session's message history in order.
func (s *Session) History() []datatypes.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]datatypes.Message, len(s.history))
	copy(out, s.history)
	return out
}

// HistoryLen returns the number of messages in the history.
func (s *Session) HistoryLen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.history)
}

// appendMessage adds a message at the end of the history.
func (s *Session) appendMessage(msg datatypes.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, msg)
	s.touchLocked()
}

// replaceHistory swaps the whole history in one step. Used only by
// summarization, which collapses the oldest prefix into a single message.
func (s *Session) replaceHistory(history []datatypes.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = history
	s.touchLocked()
}

// CachedResults returns a copy of the cache, oldest first.
func (s *Session) CachedResults() []datatypes.CachedResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]datatypes.CachedResult, len(s.cache))
	copy(out, s.cache)
	return out
}

// CacheLen returns the number of cached results.
func (s *Session) CacheLen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cache)
}

// =============================================================================
// Clarification state machine
// =============================================================================

// The clarification state machine has exactly two states: no pending
// follow-up (pending == nil) and awaiting the user's response
// (pending != nil). SetPendingClarification moves to awaiting, overwriting
// any unresolved follow-up; TakePendingClarification consumes the slot and
// moves back to none.

// SetPendingClarification records that the assistant asked a follow-up
// question and is awaiting the user's response.
func (s *Session) SetPendingClarification(original, question string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = &PendingClarification{
		OriginalQuestion: original,
		Question:         question,
		AskedAt:          time.Now().UTC(),
	}
	s.touchLocked()
}

// TakePendingClarification consumes and clears the pending follow-up.
// Returns nil when no clarification is outstanding.
func (s *Session) TakePendingClarification() *PendingClarification {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.pending
	s.pending = nil
	return p
}

// RestorePendingClarification puts back a follow-up that was taken but
// never answered, keeping its original AskedAt. A nil argument is a no-op.
func (s *Session) RestorePendingClarification(p *PendingClarification) {
	if p == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = p
}

// AwaitingClarification reports whether a follow-up question is unresolved.
func (s *Session) AwaitingClarification() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pending != nil
}

// reset clears history, cache, and clarification state but keeps identity.
// Returns the number of messages and cached results dropped.
func (s *Session) reset() (messages, cached int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	messages, cached = len(s.history), len(s.cache)
	s.history = nil
	s.cache = nil
	s.pending = nil
	s.touchLocked()
	return messages, cached
}
