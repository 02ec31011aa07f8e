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

// cancelRequest is the body of POST /v1/chat/cancel.
type cancelRequest struct {
	SessionID string `json:"session_id,omitempty"`
}

// HandleCancelChat requests cancellation of the session's in-flight turn.
//
// Cancelling an idle session is a no-op, reported with "cancelled": false
// rather than an error — the race between a finishing turn and the cancel
// request is inherent.
func HandleCancelChat(orch *pipeline.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, span := handlersTracer.Start(c.Request.Context(), "HandleCancelChat")
		defer span.End()

		var req cancelRequest
		if err := c.BindJSON(&req); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		cancelled := orch.Cancel(req.SessionID)
		message := "cancellation requested"
		if !cancelled {
			message = "no request in flight"
		}
		slog.Info("cancel handled", "session_id", req.SessionID, "cancelled", cancelled)
		c.JSON(http.StatusOK, datatypes.CancelResponse{
			Message:   message,
			Cancelled: cancelled,
		})
	}
}
