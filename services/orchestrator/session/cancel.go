// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package session

import (
	"errors"
	"sync"
)

// ErrAlreadyInFlight is returned by Begin when a request is already being
// processed for the session. Concurrent requests per session are rejected,
// never queued.
var ErrAlreadyInFlight = errors.New("a request is already in flight for this session")

// CancelToken is the per-session cooperative cancellation flag for one
// in-flight request.
//
// Cancellation is cooperative, not preemptive: an external call already in
// progress is not interrupted, but the pipeline checks the token at every
// suspension point and stops before the next side effect once it observes
// cancellation.
type CancelToken struct {
	// SessionID names the session this token belongs to.
	SessionID string

	once sync.Once
	done chan struct{}
}

func newCancelToken(sessionID string) *CancelToken {
	return &CancelToken{SessionID: sessionID, done: make(chan struct{})}
}

// Cancel marks the token cancelled. Safe to call more than once.
func (t *CancelToken) Cancel() {
	t.once.Do(func() { close(t.done) })
}

// Cancelled reports whether Cancel has been called.
func (t *CancelToken) Cancelled() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Done returns a channel closed when the token is cancelled. Usable in
// select statements alongside context cancellation.
func (t *CancelToken) Done() <-chan struct{} {
	return t.done
}

// CancelRegistry issues and revokes per-session cancellation tokens.
//
// # Description
//
// At most one token is active per session at any instant. Begin rejects a
// second request for a session whose token is still active; End releases
// the token on completion, failure, or cancellation. The registry carries
// no session data — only the in-flight flag — so it is a single small map
// behind one mutex.
type CancelRegistry struct {
	mu     sync.Mutex
	active map[string]*CancelToken
}

// NewCancelRegistry creates an empty registry.
func NewCancelRegistry() *CancelRegistry {
	return &CancelRegistry{active: make(map[string]*CancelToken)}
}

// Begin issues a token for a new request on the session.
//
// Fails with ErrAlreadyInFlight when a token is already active for the
// session: within one session at most one request runs at a time.
func (r *CancelRegistry) Begin(sessionID string) (*CancelToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.active[sessionID]; ok {
		return nil, ErrAlreadyInFlight
	}
	t := newCancelToken(sessionID)
	r.active[sessionID] = t
	return t, nil
}

// Cancel marks the session's active token cancelled, if one exists.
// Returns whether cancellation took effect; a session with no in-flight
// request reports false.
func (r *CancelRegistry) Cancel(sessionID string) bool {
	r.mu.Lock()
	t, ok := r.active[sessionID]
	r.mu.Unlock()
	if !ok {
		return false
	}
	t.Cancel()
	return true
}

// End releases the session's token. Called on every request exit path.
func (r *CancelRegistry) End(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, sessionID)
}

// InFlight reports whether a request is currently active for the session.
func (r *CancelRegistry) InFlight(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.active[sessionID]
	return ok
}
