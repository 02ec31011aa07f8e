// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/johmakinen/DAAgent/pkg/extensions"
	"github.com/johmakinen/DAAgent/services/orchestrator/handlers"
	"github.com/johmakinen/DAAgent/services/orchestrator/middleware"
	"github.com/johmakinen/DAAgent/services/orchestrator/pipeline"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes registers the HTTP surface of the orchestrator.
//
// /health and /metrics are unauthenticated so probes and scrapers work
// without credentials; everything under /v1 goes through the auth
// middleware.
func SetupRoutes(router *gin.Engine, orch *pipeline.Orchestrator,
	authProvider extensions.AuthProvider) {

	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API version 1 group
	v1 := router.Group("/v1")
	v1.Use(middleware.AuthMiddleware(authProvider))
	{
		v1.POST("/chat", handlers.HandleChat(orch))
		v1.GET("/chat/history", handlers.HandleChatHistory(orch))
		v1.POST("/chat/reset", handlers.HandleChatReset(orch))
		v1.POST("/chat/cancel", handlers.HandleCancelChat(orch))
		// Session administration routes
		sessions := v1.Group("/chat/sessions")
		{
			sessions.POST("", handlers.HandleCreateSession(orch))
			sessions.GET("", handlers.HandleListSessions(orch))
			sessions.DELETE("/:id", handlers.HandleDeleteSession(orch))
		}
	}
}
