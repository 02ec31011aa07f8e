// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// This file contains request and response types for the chat endpoints.
package datatypes

import (
	"encoding/json"

	"github.com/go-playground/validator/v10"
)

// MaxMessageContentBytes is the maximum size of a single chat message.
// Checked as byte length, not rune count, to bound memory per request.
const MaxMessageContentBytes = 32 * 1024 // 32KB

// chatValidate is the shared validator instance for chat datatypes.
var chatValidate *validator.Validate

func init() {
	chatValidate = validator.New()
	_ = chatValidate.RegisterValidation("maxbytes", validateMaxBytes)
}

// validateMaxBytes enforces MaxMessageContentBytes on a string field.
func validateMaxBytes(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= MaxMessageContentBytes
}

// ChatRequest is the body of POST /v1/chat.
//
// # Fields
//
//   - Message: Required. The user's natural-language message, at most 32KB.
//   - SessionID: Optional. Omitted or empty selects the default session.
type ChatRequest struct {
	Message   string `json:"message" validate:"required,maxbytes"`
	SessionID string `json:"session_id,omitempty"`
}

// Validate validates the ChatRequest fields after JSON binding.
func (r *ChatRequest) Validate() error {
	return chatValidate.Struct(r)
}

// ChatResponse is the body returned by POST /v1/chat.
//
// Cancelled turns are reported with Cancelled set so the frontend can
// distinguish "user stopped this" from a failure.
type ChatResponse struct {
	Response   string          `json:"response"`
	IntentType string          `json:"intent_type,omitempty"`
	Metadata   map[string]any  `json:"metadata,omitempty"`
	PlotSpec   json.RawMessage `json:"plot_spec,omitempty"`
	SessionID  string          `json:"session_id,omitempty"`
	Cancelled  bool            `json:"cancelled,omitempty"`
}

// ChatHistoryResponse is the body returned by GET /v1/chat/history.
type ChatHistoryResponse struct {
	SessionID string       `json:"session_id"`
	Messages  []ChatRecord `json:"messages"`
}

// CreateSessionRequest is the body of POST /v1/chat/sessions.
type CreateSessionRequest struct {
	Title string `json:"title,omitempty" validate:"max=256"`
}

// Validate validates the CreateSessionRequest fields after JSON binding.
func (r *CreateSessionRequest) Validate() error {
	return chatValidate.Struct(r)
}

// SessionListResponse is the body returned by GET /v1/chat/sessions.
type SessionListResponse struct {
	Sessions []SessionInfo `json:"sessions"`
}

// DeleteResponse reports the outcome of a reset or session delete.
type DeleteResponse struct {
	Message      string `json:"message"`
	DeletedCount int    `json:"deleted_count"`
}

// CancelResponse reports whether a cancel request took effect.
type CancelResponse struct {
	Message   string `json:"message"`
	Cancelled bool   `json:"cancelled"`
}
