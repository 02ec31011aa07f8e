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
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/johmakinen/DAAgent/services/orchestrator/datatypes"
)

// Summarizer condenses a conversation transcript into a short summary.
// Implemented by the LLM summarizer in the agents package; tests inject
// fakes.
type Summarizer interface {
	Summarize(ctx context.Context, transcript string) (string, error)
}

// HistoryConfig holds the tunable thresholds for history management.
type HistoryConfig struct {
	// MaxMessages is the history length above which summarization fires.
	MaxMessages int

	// KeepRecent is the number of most recent messages summarization must
	// leave untouched.
	KeepRecent int
}

// DefaultHistoryConfig returns the production thresholds.
func DefaultHistoryConfig() HistoryConfig {
	return HistoryConfig{MaxMessages: 20, KeepRecent: 10}
}

// History manages a session's conversation history: appends and
// threshold-triggered summarization.
type History struct {
	cfg        HistoryConfig
	summarizer Summarizer
}

// NewHistory creates a history manager. Zero or negative config values
// fall back to the defaults.
func NewHistory(cfg HistoryConfig, summarizer Summarizer) *History {
	def := DefaultHistoryConfig()
	if cfg.MaxMessages <= 0 {
		cfg.MaxMessages = def.MaxMessages
	}
	if cfg.KeepRecent <= 0 {
		cfg.KeepRecent = def.KeepRecent
	}
	return &History{cfg: cfg, summarizer: summarizer}
}

// Append adds one completed exchange to the end of the session history.
func (h *History) Append(s *Session, msg datatypes.Message) {
	s.appendMessage(msg)
}

// MaybeSummarize collapses the oldest messages into one synthetic summary
// when the history has grown past MaxMessages.
//
// # Description
//
// When len(history) > MaxMessages, the oldest len-KeepRecent messages are
// rendered to a transcript, summarized, and replaced by a single summary
// message; the most recent KeepRecent messages are preserved unchanged.
// A summarizer failure is recovered: the history is left untouched and the
// turn proceeds with the full history.
func (h *History) MaybeSummarize(ctx context.Context, s *Session) error {
	history := s.History()
	if len(history) <= h.cfg.MaxMessages {
		return nil
	}

	split := len(history) - h.cfg.KeepRecent
	old, recent := history[:split], history[split:]

	summary, err := h.summarizer.Summarize(ctx, renderTranscript(old))
	if err != nil {
		slog.Warn("history summarization failed, keeping full history",
			"session_id", s.ID,
			"messages", len(history),
			"error", err,
		)
		return nil
	}

	collapsed := make([]datatypes.Message, 0, 1+len(recent))
	collapsed = append(collapsed, datatypes.NewSummaryMessage(summary))
	collapsed = append(collapsed, recent...)
	s.replaceHistory(collapsed)

	slog.Info("collapsed history prefix into summary",
		"session_id", s.ID,
		"collapsed", len(old),
		"kept", len(recent),
	)
	return nil
}

// renderTranscript flattens messages into the "User: / Assistant:" text
// form the summarizer prompt expects.
func renderTranscript(messages []datatypes.Message) string {
	var b strings.Builder
	for _, m := range messages {
		if m.User != "" {
			fmt.Fprintf(&b, "User: %s\n", m.User)
		}
		if m.Assistant != "" {
			fmt.Fprintf(&b, "Assistant: %s\n", m.Assistant)
		}
	}
	return b.String()
}
