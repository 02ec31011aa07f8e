// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/johmakinen/DAAgent/services/orchestrator/datatypes"
)

func newTestStore(t *testing.T) *BadgerStore {
	t.Helper()
	db, err := OpenDB(InMemoryConfig())
	if err != nil {
		t.Fatalf("open in-memory badger: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewBadgerStore(db)
}

func record(sessionID, message string) *datatypes.ChatRecord {
	return &datatypes.ChatRecord{
		ID:         uuid.NewString(),
		SessionID:  sessionID,
		Message:    message,
		Response:   "answer to " + message,
		IntentType: "database_query",
		CreatedAt:  time.Now().UTC(),
	}
}

func TestBadgerStore_SaveAndHistory(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := store.SaveMessage(ctx, record("alpha", fmt.Sprintf("q%d", i))); err != nil {
			t.Fatalf("SaveMessage: %v", err)
		}
	}
	// A second session must not bleed into alpha's history.
	if err := store.SaveMessage(ctx, record("beta", "other")); err != nil {
		t.Fatalf("SaveMessage: %v", err)
	}

	history, err := store.History(ctx, "alpha")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("history length = %d, want 3", len(history))
	}
	for i, rec := range history {
		if want := fmt.Sprintf("q%d", i); rec.Message != want {
			t.Errorf("record %d message = %q, want %q (insertion order)", i, rec.Message, want)
		}
		if rec.SessionID != "alpha" {
			t.Errorf("record %d session = %q", i, rec.SessionID)
		}
	}
}

func TestBadgerStore_HistoryEmptySession(t *testing.T) {
	store := newTestStore(t)
	history, err := store.History(context.Background(), "missing")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 0 {
		t.Errorf("history length = %d, want 0", len(history))
	}
}

func TestBadgerStore_DeleteHistory(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		if err := store.SaveMessage(ctx, record("alpha", fmt.Sprintf("q%d", i))); err != nil {
			t.Fatalf("SaveMessage: %v", err)
		}
	}

	deleted, err := store.DeleteHistory(ctx, "alpha")
	if err != nil {
		t.Fatalf("DeleteHistory: %v", err)
	}
	if deleted != 4 {
		t.Errorf("deleted = %d, want 4", deleted)
	}

	history, err := store.History(ctx, "alpha")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 0 {
		t.Errorf("history length after delete = %d, want 0", len(history))
	}
}

func TestBadgerStore_SessionRegistry(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC()
	for i := 0; i < 3; i++ {
		info := &datatypes.SessionInfo{
			ID:        fmt.Sprintf("s%d", i),
			Title:     fmt.Sprintf("session %d", i),
			CreatedAt: base,
			UpdatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := store.SaveSession(ctx, info); err != nil {
			t.Fatalf("SaveSession: %v", err)
		}
	}

	sessions, err := store.ListSessions(ctx)
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(sessions) != 3 {
		t.Fatalf("sessions = %d, want 3", len(sessions))
	}
	if sessions[0].ID != "s2" {
		t.Errorf("first session = %q, want most recently updated (s2)", sessions[0].ID)
	}
}

func TestBadgerStore_DeleteSession(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	info := &datatypes.SessionInfo{ID: "alpha", CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC()}
	if err := store.SaveSession(ctx, info); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	if err := store.SaveMessage(ctx, record("alpha", "q")); err != nil {
		t.Fatalf("SaveMessage: %v", err)
	}
	if err := store.SaveMessage(ctx, record("alpha", "q2")); err != nil {
		t.Fatalf("SaveMessage: %v", err)
	}

	existed, removed, err := store.DeleteSession(ctx, "alpha")
	if err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if !existed {
		t.Error("session should have existed")
	}
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}

	history, err := store.History(ctx, "alpha")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 0 {
		t.Error("deleting a session must remove its messages")
	}

	existed, removed, err = store.DeleteSession(ctx, "alpha")
	if err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if existed || removed != 0 {
		t.Errorf("second delete = (%v, %d), want the session gone", existed, removed)
	}
}
