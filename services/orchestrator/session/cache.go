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
	"log/slog"
	"time"

	"github.com/johmakinen/DAAgent/services/orchestrator/datatypes"
)

// DefaultCacheCapacity is the per-session result cache bound.
const DefaultCacheCapacity = 5

// Cache manages the bounded per-session query-result cache.
//
// The cache is keyed by recency only: Latest returns the most recently
// stored result, and storing past capacity evicts from the front (FIFO).
// This is a deliberate simplification — "use cached data" means "reuse the
// most recent successful result", not a semantic lookup — and must not be
// upgraded to a key-value cache.
type Cache struct {
	capacity int
	evicted  func(n int) // optional eviction hook for metrics
}

// NewCache creates a cache manager with the given per-session capacity.
// Zero or negative capacity falls back to DefaultCacheCapacity.
func NewCache(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	return &Cache{capacity: capacity}
}

// OnEvict registers a hook invoked with the number of entries evicted by
// a Store call. Used to feed metrics.
func (c *Cache) OnEvict(fn func(n int)) {
	c.evicted = fn
}

// Store appends a result to the session cache, then evicts the oldest
// entries until the cache is back within capacity.
func (c *Cache) Store(s *Session, result *datatypes.QueryResult) {
	now := time.Now().UTC()
	entry := datatypes.CachedResult{
		Fingerprint: datatypes.Fingerprint(result.SQL, now),
		Result:      result,
		CreatedAt:   now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = append(s.cache, entry)
	evicted := 0
	for len(s.cache) > c.capacity {
		s.cache = s.cache[1:]
		evicted++
	}
	s.touchLocked()

	if evicted > 0 {
		slog.Debug("evicted cached query results",
			"session_id", s.ID,
			"evicted", evicted,
			"size", len(s.cache),
		)
		if c.evicted != nil {
			c.evicted(evicted)
		}
	}
}

// Latest returns the most recently stored result, or nil when the session
// has no cached results.
func (c *Cache) Latest(s *Session) *datatypes.CachedResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.cache) == 0 {
		return nil
	}
	entry := s.cache[len(s.cache)-1]
	return &entry
}
