// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers contains the gin HTTP handlers for the orchestrator.
//
// Handlers stay thin: bind and validate the request, call the pipeline,
// map typed errors onto HTTP status codes. Business logic lives in the
// pipeline and session packages.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/johmakinen/DAAgent/services/orchestrator/datatypes"
	"github.com/johmakinen/DAAgent/services/orchestrator/pipeline"
	"github.com/johmakinen/DAAgent/services/orchestrator/session"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var handlersTracer = otel.Tracer("daagent.orchestrator.handlers")

// HandleChat processes one chat message through the pipeline.
//
// # Description
//
// POST /v1/chat. Error mapping:
//
//   - malformed body or validation failure → 400
//   - a request already in flight for the session → 409
//   - downstream (planner, data service, synthesizer, storage) failure → 500
//
// A cancelled turn is not an error: it returns 200 with "cancelled": true.
func HandleChat(orch *pipeline.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := handlersTracer.Start(c.Request.Context(), "HandleChat")
		defer span.End()

		var req datatypes.ChatRequest
		if err := c.BindJSON(&req); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Error("Failed to parse the chat request", "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "validation failed")
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		result, err := orch.Handle(ctx, req.SessionID, req.Message)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			switch {
			case pipeline.IsValidationError(err):
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			case errors.Is(err, session.ErrAlreadyInFlight):
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			default:
				slog.Error("Chat turn failed", "session_id", req.SessionID, "error", err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			}
			return
		}

		c.JSON(http.StatusOK, datatypes.ChatResponse{
			Response:   result.Response,
			IntentType: string(result.Intent),
			Metadata:   result.Metadata,
			PlotSpec:   result.PlotSpec,
			SessionID:  result.SessionID,
			Cancelled:  result.Cancelled,
		})
	}
}

// HandleChatHistory returns the persisted history for a session.
//
// GET /v1/chat/history?session_id=... — an unknown session returns an
// empty list, not a 404.
func HandleChatHistory(orch *pipeline.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := handlersTracer.Start(c.Request.Context(), "HandleChatHistory")
		defer span.End()

		sessionID := c.DefaultQuery("session_id", pipeline.DefaultSessionID)

		records, err := orch.Messages().History(ctx, sessionID)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Error("Failed to load chat history", "session_id", sessionID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, datatypes.ChatHistoryResponse{
			SessionID: sessionID,
			Messages:  records,
		})
	}
}

// resetRequest is the body of POST /v1/chat/reset.
type resetRequest struct {
	SessionID string `json:"session_id,omitempty"`
}

// HandleChatReset clears a session's conversation state: in-memory
// history, cache, pending clarification, and persisted messages. The
// session itself survives with its identity.
func HandleChatReset(orch *pipeline.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := handlersTracer.Start(c.Request.Context(), "HandleChatReset")
		defer span.End()

		var req resetRequest
		if err := c.BindJSON(&req); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		sessionID := req.SessionID
		if sessionID == "" {
			sessionID = pipeline.DefaultSessionID
		}

		messages, cached := orch.Sessions().Reset(sessionID)
		persisted, err := orch.Messages().DeleteHistory(ctx, sessionID)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Error("Failed to delete persisted history", "session_id", sessionID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		slog.Info("session reset",
			"session_id", sessionID,
			"messages", messages,
			"cached_results", cached,
			"persisted", persisted,
		)
		c.JSON(http.StatusOK, datatypes.DeleteResponse{
			Message:      "session reset",
			DeletedCount: persisted,
		})
	}
}
