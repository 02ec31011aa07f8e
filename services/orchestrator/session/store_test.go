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
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/johmakinen/DAAgent/services/orchestrator/datatypes"
)

func TestStore_GetOrCreate(t *testing.T) {
	st := NewStore()

	s1 := st.GetOrCreate("alpha")
	s2 := st.GetOrCreate("alpha")
	if s1 != s2 {
		t.Fatal("GetOrCreate should return the same session for the same id")
	}
	if s1.ID != "alpha" {
		t.Errorf("session ID = %q, want alpha", s1.ID)
	}

	if _, ok := st.Get("missing"); ok {
		t.Error("Get should not create sessions")
	}
}

func TestStore_GetOrCreateConcurrent(t *testing.T) {
	st := NewStore()

	const goroutines = 32
	results := make([]*Session, goroutines)
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = st.GetOrCreate("shared")
		}(i)
	}
	wg.Wait()

	for i := 1; i < goroutines; i++ {
		if results[i] != results[0] {
			t.Fatal("concurrent GetOrCreate returned distinct sessions")
		}
	}
}

func TestStore_Create(t *testing.T) {
	st := NewStore()

	s := st.Create("Quarterly revenue")
	if s.ID == "" {
		t.Fatal("Create should assign an ID")
	}
	if s.Title != "Quarterly revenue" {
		t.Errorf("title = %q", s.Title)
	}
	got, ok := st.Get(s.ID)
	if !ok || got != s {
		t.Error("created session should be retrievable")
	}
}

func TestStore_ResetKeepsIdentity(t *testing.T) {
	st := NewStore()
	s := st.GetOrCreate("alpha")

	s.appendMessage(datatypes.NewMessage("q1", "a1"))
	s.appendMessage(datatypes.NewMessage("q2", "a2"))
	NewCache(5).Store(s, queryResult("SELECT 1"))
	s.SetPendingClarification("q2", "which year?")

	messages, cached := st.Reset("alpha")
	if messages != 2 || cached != 1 {
		t.Errorf("Reset counts = (%d, %d), want (2, 1)", messages, cached)
	}

	again, ok := st.Get("alpha")
	if !ok {
		t.Fatal("session must survive a reset")
	}
	if again != s {
		t.Error("reset must keep the same session instance")
	}
	if again.HistoryLen() != 0 || again.CacheLen() != 0 {
		t.Error("reset must clear history and cache")
	}
	if again.AwaitingClarification() {
		t.Error("reset must clear pending clarification")
	}
}

func TestStore_ResetMissingSession(t *testing.T) {
	st := NewStore()
	messages, cached := st.Reset("nope")
	if messages != 0 || cached != 0 {
		t.Errorf("Reset on missing session = (%d, %d), want zeros", messages, cached)
	}
}

func TestStore_Delete(t *testing.T) {
	st := NewStore()
	st.GetOrCreate("alpha")

	if !st.Delete("alpha") {
		t.Error("Delete should report true for an existing session")
	}
	if st.Delete("alpha") {
		t.Error("Delete should report false for a missing session")
	}
	if _, ok := st.Get("alpha"); ok {
		t.Error("deleted session should be gone")
	}
}

func TestStore_ListOrder(t *testing.T) {
	st := NewStore()

	for i := 0; i < 3; i++ {
		s := st.GetOrCreate(fmt.Sprintf("s%d", i))
		s.appendMessage(datatypes.NewMessage("q", "a"))
		time.Sleep(2 * time.Millisecond)
	}
	// Touch s0 last so it sorts first.
	st.GetOrCreate("s0").appendMessage(datatypes.NewMessage("q2", "a2"))

	list := st.List()
	if len(list) != 3 {
		t.Fatalf("List returned %d sessions, want 3", len(list))
	}
	if list[0].ID != "s0" {
		t.Errorf("most recently updated session = %q, want s0", list[0].ID)
	}
}

func TestSession_ClarificationRoundTrip(t *testing.T) {
	s := newSession("alpha", "")

	if s.AwaitingClarification() {
		t.Fatal("new session should have no pending clarification")
	}
	if s.TakePendingClarification() != nil {
		t.Fatal("take on empty slot should return nil")
	}

	s.SetPendingClarification("show revenue", "for which year?")
	if !s.AwaitingClarification() {
		t.Fatal("expected awaiting state")
	}

	// A second follow-up overwrites; clarifications never stack.
	s.SetPendingClarification("show revenue", "which region?")

	p := s.TakePendingClarification()
	if p == nil {
		t.Fatal("expected a pending clarification")
	}
	if p.Question != "which region?" {
		t.Errorf("question = %q, want the overwriting follow-up", p.Question)
	}
	if p.OriginalQuestion != "show revenue" {
		t.Errorf("original = %q", p.OriginalQuestion)
	}
	if s.AwaitingClarification() {
		t.Error("take must clear the slot")
	}
}

func TestSession_HistoryCopyIsolation(t *testing.T) {
	s := newSession("alpha", "")
	s.appendMessage(datatypes.NewMessage("q", "a"))

	history := s.History()
	history[0].User = "mutated"

	if s.History()[0].User != "q" {
		t.Error("History must return a copy, not the backing slice")
	}
}
