// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Message is one completed exchange in a session's conversation history.
//
// # Description
//
// A message pairs the user's text with the assistant's reply for a single
// turn. Messages are immutable once created: they are only ever appended,
// or replaced in bulk when summarization collapses an old range into a
// single synthetic summary message.
//
// # Fields
//
//   - ID: Unique message identifier (UUID v4).
//   - User: The user's text. Empty for synthetic summary messages.
//   - Assistant: The assistant's reply, or the summary text.
//   - Summary: True for the synthetic message produced by summarization.
//   - Intent: Optional intent tag for the turn.
//   - Metadata: Optional additional fields attached to the turn.
//   - PlotSpec: Optional plot specification produced for the turn.
//   - CreatedAt: Creation time (UTC).
type Message struct {
	ID        string          `json:"id"`
	User      string          `json:"user,omitempty"`
	Assistant string          `json:"assistant,omitempty"`
	Summary   bool            `json:"summary,omitempty"`
	Intent    Intent          `json:"intent_type,omitempty"`
	Metadata  map[string]any  `json:"metadata,omitempty"`
	PlotSpec  json.RawMessage `json:"plot_spec,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// NewMessage creates an immutable exchange message with a fresh ID.
func NewMessage(user, assistant string) Message {
	return Message{
		ID:        uuid.NewString(),
		User:      user,
		Assistant: assistant,
		CreatedAt: time.Now().UTC(),
	}
}

// NewSummaryMessage creates the synthetic message that replaces a collapsed
// history prefix.
func NewSummaryMessage(summary string) Message {
	return Message{
		ID:        uuid.NewString(),
		Assistant: "[Previous conversation summary]: " + summary,
		Summary:   true,
		CreatedAt: time.Now().UTC(),
	}
}

// ChatRecord is the persisted shape of one completed turn.
//
// This is the contract with the message store: the orchestrator produces
// exactly this record on each successful, non-cancelled turn.
type ChatRecord struct {
	ID         string          `json:"id"`
	SessionID  string          `json:"session_id"`
	Message    string          `json:"message"`
	Response   string          `json:"response"`
	IntentType string          `json:"intent_type,omitempty"`
	Metadata   map[string]any  `json:"metadata,omitempty"`
	PlotSpec   json.RawMessage `json:"plot_spec,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// SessionInfo is the persisted registry entry for a conversation session.
type SessionInfo struct {
	ID        string    `json:"id"`
	Title     string    `json:"title,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
