// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/johmakinen/DAAgent/services/orchestrator/datatypes"
	"github.com/johmakinen/DAAgent/services/orchestrator/pipeline"
	"go.opentelemetry.io/otel/codes"
)

// HandleCreateSession registers a new conversation session.
//
// POST /v1/chat/sessions — the session gets a generated ID; the optional
// title is caller-supplied display text.
func HandleCreateSession(orch *pipeline.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := handlersTracer.Start(c.Request.Context(), "HandleCreateSession")
		defer span.End()

		var req datatypes.CreateSessionRequest
		if err := c.BindJSON(&req); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "validation failed")
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		s := orch.Sessions().Create(req.Title)
		info := &datatypes.SessionInfo{
			ID:        s.ID,
			Title:     s.Title,
			CreatedAt: s.CreatedAt,
			UpdatedAt: s.UpdatedAt(),
		}
		if err := orch.Messages().SaveSession(ctx, info); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Error("Failed to persist session", "session_id", s.ID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		slog.Info("session created", "session_id", s.ID, "title", s.Title)
		c.JSON(http.StatusCreated, info)
	}
}

// HandleListSessions returns all registered sessions, most recently
// updated first.
func HandleListSessions(orch *pipeline.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := handlersTracer.Start(c.Request.Context(), "HandleListSessions")
		defer span.End()

		sessions, err := orch.Messages().ListSessions(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Error("Failed to list sessions", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if sessions == nil {
			sessions = []datatypes.SessionInfo{}
		}
		c.JSON(http.StatusOK, datatypes.SessionListResponse{Sessions: sessions})
	}
}

// HandleDeleteSession removes a session and everything stored for it:
// registry entry, persisted messages, and in-memory state.
//
// DELETE /v1/chat/sessions/:id — deleting an unknown session is a 404.
func HandleDeleteSession(orch *pipeline.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := handlersTracer.Start(c.Request.Context(), "HandleDeleteSession")
		defer span.End()

		sessionID := c.Param("id")
		if sessionID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "session id is required"})
			return
		}

		inMemory := orch.Sessions().Delete(sessionID)
		persisted, removed, err := orch.Messages().DeleteSession(ctx, sessionID)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Error("Failed to delete session", "session_id", sessionID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if !inMemory && !persisted && removed == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}

		slog.Info("session deleted", "session_id", sessionID, "messages_deleted", removed)
		c.JSON(http.StatusOK, datatypes.DeleteResponse{Message: "session deleted", DeletedCount: removed})
	}
}
