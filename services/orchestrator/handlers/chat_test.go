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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/johmakinen/DAAgent/services/orchestrator/datatypes"
	"github.com/johmakinen/DAAgent/services/orchestrator/pipeline"
	"github.com/johmakinen/DAAgent/services/orchestrator/session"
	"github.com/johmakinen/DAAgent/services/orchestrator/storage"
)

// =============================================================================
// Test doubles
// =============================================================================

type stubPlanner struct {
	plan *datatypes.ExecutionPlan
}

func (s *stubPlanner) Plan(_ context.Context, _ string, _ []datatypes.Message) (*datatypes.ExecutionPlan, error) {
	return s.plan, nil
}

type stubQueryAgent struct{}

func (stubQueryAgent) Query(_ context.Context, _ string, _ []datatypes.Message) (*datatypes.QueryResult, error) {
	return &datatypes.QueryResult{
		SQL:      "SELECT 1",
		Rows:     []map[string]any{{"n": 1}},
		RowCount: 1,
		Success:  true,
	}, nil
}

type stubExecutor struct{}

func (stubExecutor) Execute(_ context.Context, sql string) (*datatypes.QueryResult, error) {
	return &datatypes.QueryResult{SQL: sql, Success: true}, nil
}

type stubSynthesizer struct{}

func (stubSynthesizer) Synthesize(_ context.Context, _, _ string, _ []datatypes.Message) (string, error) {
	return "synthesized answer", nil
}

type stubPlotPlanner struct{}

func (stubPlotPlanner) PlanPlot(_ context.Context, _ string, _ *datatypes.QueryResult, _ *datatypes.PlotHint) (json.RawMessage, error) {
	return json.RawMessage(`{"type":"line"}`), nil
}

type stubSummarizer struct{}

func (stubSummarizer) Summarize(_ context.Context, _ string) (string, error) {
	return "summary", nil
}

func newTestOrchestrator(t *testing.T, plan *datatypes.ExecutionPlan) *pipeline.Orchestrator {
	t.Helper()
	db, err := storage.OpenDB(storage.InMemoryConfig())
	if err != nil {
		t.Fatalf("open in-memory badger: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	cache := session.NewCache(session.DefaultCacheCapacity)
	return pipeline.NewOrchestrator(pipeline.Config{
		Sessions:    session.NewStore(),
		History:     session.NewHistory(session.DefaultHistoryConfig(), stubSummarizer{}),
		Cache:       cache,
		Cancels:     session.NewCancelRegistry(),
		Planner:     &stubPlanner{plan: plan},
		Router:      pipeline.NewRouter(cache, stubExecutor{}, stubQueryAgent{}),
		Synthesizer: stubSynthesizer{},
		PlotPlanner: stubPlotPlanner{},
		Messages:    storage.NewBadgerStore(db),
	})
}

func newTestRouter(t *testing.T, plan *datatypes.ExecutionPlan) (*gin.Engine, *pipeline.Orchestrator) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	orch := newTestOrchestrator(t, plan)

	r := gin.New()
	r.POST("/v1/chat", HandleChat(orch))
	r.GET("/v1/chat/history", HandleChatHistory(orch))
	r.POST("/v1/chat/reset", HandleChatReset(orch))
	r.POST("/v1/chat/cancel", HandleCancelChat(orch))
	r.POST("/v1/chat/sessions", HandleCreateSession(orch))
	r.GET("/v1/chat/sessions", HandleListSessions(orch))
	r.DELETE("/v1/chat/sessions/:id", HandleDeleteSession(orch))
	return r, orch
}

func doJSON(r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func dbQueryPlan() *datatypes.ExecutionPlan {
	return &datatypes.ExecutionPlan{Intent: datatypes.IntentDatabaseQuery}
}

// =============================================================================
// Tests
// =============================================================================

func TestHandleChat_Success(t *testing.T) {
	r, _ := newTestRouter(t, dbQueryPlan())

	w := doJSON(r, http.MethodPost, "/v1/chat", datatypes.ChatRequest{
		Message:   "total sales by region",
		SessionID: "alpha",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp datatypes.ChatResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Response != "synthesized answer" {
		t.Errorf("response = %q", resp.Response)
	}
	if resp.IntentType != "database_query" {
		t.Errorf("intent = %q", resp.IntentType)
	}
	if resp.SessionID != "alpha" {
		t.Errorf("session = %q", resp.SessionID)
	}
	if resp.Cancelled {
		t.Error("turn should not be cancelled")
	}
}

func TestHandleChat_InvalidBody(t *testing.T) {
	r, _ := newTestRouter(t, dbQueryPlan())

	req := httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestHandleChat_MissingMessage(t *testing.T) {
	r, _ := newTestRouter(t, dbQueryPlan())

	w := doJSON(r, http.MethodPost, "/v1/chat", map[string]string{"session_id": "alpha"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestHandleChat_OversizedMessage(t *testing.T) {
	r, _ := newTestRouter(t, dbQueryPlan())

	w := doJSON(r, http.MethodPost, "/v1/chat", datatypes.ChatRequest{
		Message: strings.Repeat("x", datatypes.MaxMessageContentBytes+1),
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestHandleChatHistory(t *testing.T) {
	r, _ := newTestRouter(t, dbQueryPlan())

	for i := 0; i < 2; i++ {
		w := doJSON(r, http.MethodPost, "/v1/chat", datatypes.ChatRequest{
			Message:   fmt.Sprintf("question %d", i),
			SessionID: "alpha",
		})
		if w.Code != http.StatusOK {
			t.Fatalf("chat status = %d", w.Code)
		}
	}

	w := doJSON(r, http.MethodGet, "/v1/chat/history?session_id=alpha", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp datatypes.ChatHistoryResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Messages) != 2 {
		t.Errorf("messages = %d, want 2", len(resp.Messages))
	}
	if resp.Messages[0].Message != "question 0" {
		t.Errorf("first message = %q, want insertion order", resp.Messages[0].Message)
	}
}

func TestHandleChatHistory_UnknownSession(t *testing.T) {
	r, _ := newTestRouter(t, dbQueryPlan())

	w := doJSON(r, http.MethodGet, "/v1/chat/history?session_id=ghost", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 with empty list", w.Code)
	}
	var resp datatypes.ChatHistoryResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Messages) != 0 {
		t.Errorf("messages = %d, want 0", len(resp.Messages))
	}
}

func TestHandleChatReset(t *testing.T) {
	r, orch := newTestRouter(t, dbQueryPlan())

	w := doJSON(r, http.MethodPost, "/v1/chat", datatypes.ChatRequest{
		Message:   "hello",
		SessionID: "alpha",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("chat status = %d", w.Code)
	}

	w = doJSON(r, http.MethodPost, "/v1/chat/reset", map[string]string{"session_id": "alpha"})
	if w.Code != http.StatusOK {
		t.Fatalf("reset status = %d", w.Code)
	}
	var resp datatypes.DeleteResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.DeletedCount != 1 {
		t.Errorf("deleted = %d, want 1", resp.DeletedCount)
	}

	s, ok := orch.Sessions().Get("alpha")
	if !ok {
		t.Fatal("reset must keep the session alive")
	}
	if s.HistoryLen() != 0 {
		t.Error("reset must clear in-memory history")
	}

	w = doJSON(r, http.MethodGet, "/v1/chat/history?session_id=alpha", nil)
	var history datatypes.ChatHistoryResponse
	_ = json.Unmarshal(w.Body.Bytes(), &history)
	if len(history.Messages) != 0 {
		t.Error("reset must clear persisted history")
	}
}

func TestHandleCancelChat_Idle(t *testing.T) {
	r, _ := newTestRouter(t, dbQueryPlan())

	w := doJSON(r, http.MethodPost, "/v1/chat/cancel", map[string]string{"session_id": "alpha"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp datatypes.CancelResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Cancelled {
		t.Error("cancel on an idle session should report false")
	}
}

func TestSessionLifecycle(t *testing.T) {
	r, _ := newTestRouter(t, dbQueryPlan())

	w := doJSON(r, http.MethodPost, "/v1/chat/sessions", datatypes.CreateSessionRequest{Title: "Sales analysis"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	var created datatypes.SessionInfo
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if created.ID == "" || created.Title != "Sales analysis" {
		t.Errorf("created = %+v", created)
	}

	w = doJSON(r, http.MethodGet, "/v1/chat/sessions", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	var list datatypes.SessionListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if len(list.Sessions) != 1 || list.Sessions[0].ID != created.ID {
		t.Errorf("list = %+v", list)
	}

	w = doJSON(r, http.MethodDelete, "/v1/chat/sessions/"+created.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete status = %d", w.Code)
	}

	w = doJSON(r, http.MethodDelete, "/v1/chat/sessions/"+created.ID, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", w.Code)
	}
}

func TestDeleteSession_ReportsMessageCount(t *testing.T) {
	r, _ := newTestRouter(t, dbQueryPlan())

	w := doJSON(r, http.MethodPost, "/v1/chat/sessions", datatypes.CreateSessionRequest{Title: "counted"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d", w.Code)
	}
	var created datatypes.SessionInfo
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	for i := 0; i < 2; i++ {
		w = doJSON(r, http.MethodPost, "/v1/chat", datatypes.ChatRequest{
			Message:   fmt.Sprintf("question %d", i),
			SessionID: created.ID,
		})
		if w.Code != http.StatusOK {
			t.Fatalf("chat status = %d", w.Code)
		}
	}

	w = doJSON(r, http.MethodDelete, "/v1/chat/sessions/"+created.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete status = %d", w.Code)
	}
	var resp datatypes.DeleteResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.DeletedCount != 2 {
		t.Errorf("deleted = %d, want the number of persisted messages (2)", resp.DeletedCount)
	}
}

func TestSessionCreate_TitleTooLong(t *testing.T) {
	r, _ := newTestRouter(t, dbQueryPlan())

	w := doJSON(r, http.MethodPost, "/v1/chat/sessions", datatypes.CreateSessionRequest{
		Title: strings.Repeat("t", 257),
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}
