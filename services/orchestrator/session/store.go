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
	"hash/fnv"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// shardCount is the number of lock shards in the store. Sixteen keeps
// contention negligible for the session counts a single instance sees.
const shardCount = 16

// Store holds all live sessions, sharded by session ID so unrelated
// sessions never contend on the same lock.
//
// # Thread Safety
//
// All methods are safe for concurrent use. Operations on different
// sessions proceed independently; operations on the same session are
// serialized by the owning shard only for map access — per-session
// exclusivity of the request pipeline is enforced by CancelRegistry,
// not here.
type Store struct {
	shards [shardCount]storeShard
}

type storeShard struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewStore creates an empty session store.
func NewStore() *Store {
	st := &Store{}
	for i := range st.shards {
		st.shards[i].sessions = make(map[string]*Session)
	}
	return st
}

func (st *Store) shard(id string) *storeShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return &st.shards[h.Sum32()%shardCount]
}

// GetOrCreate returns the session for id, creating an empty one on first
// access. Idempotent: concurrent callers observe the same session.
func (st *Store) GetOrCreate(id string) *Session {
	sh := st.shard(id)

	sh.mu.RLock()
	s, ok := sh.sessions[id]
	sh.mu.RUnlock()
	if ok {
		return s
	}

	sh.mu.Lock()
	defer sh.mu.Unlock()
	if s, ok := sh.sessions[id]; ok {
		return s
	}
	s = newSession(id, "")
	sh.sessions[id] = s
	return s
}

// Get returns the session for id if it exists.
func (st *Store) Get(id string) (*Session, bool) {
	sh := st.shard(id)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	s, ok := sh.sessions[id]
	return s, ok
}

// Create registers a new session with a generated ID and the given title.
func (st *Store) Create(title string) *Session {
	id := uuid.NewString()
	s := newSession(id, title)
	sh := st.shard(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sh.sessions[id] = s
	return s
}

// Reset clears a session's history, cache, and clarification state while
// keeping its identity and title. Returns the number of messages and
// cached results dropped; zeros when the session does not exist.
func (st *Store) Reset(id string) (messages, cached int) {
	s, ok := st.Get(id)
	if !ok {
		return 0, 0
	}
	return s.reset()
}

// Delete removes all state for a session. Reports whether it existed.
func (st *Store) Delete(id string) bool {
	sh := st.shard(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if _, ok := sh.sessions[id]; !ok {
		return false
	}
	delete(sh.sessions, id)
	return true
}

// List returns all live sessions, most recently updated first.
func (st *Store) List() []*Session {
	var out []*Session
	for i := range st.shards {
		sh := &st.shards[i]
		sh.mu.RLock()
		for _, s := range sh.sessions {
			out = append(out, s)
		}
		sh.mu.RUnlock()
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt().After(out[j].UpdatedAt())
	})
	return out
}
