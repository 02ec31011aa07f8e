// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/johmakinen/DAAgent/services/orchestrator/datatypes"
)

func TestAPIClient_Chat(t *testing.T) {
	var gotPath, gotAuth string
	var gotReq datatypes.ChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(datatypes.ChatResponse{
			Response:  "42 rows match",
			SessionID: "s1",
		})
	}))
	defer srv.Close()

	c := newAPIClient(srv.URL, "tok")
	resp, err := c.Chat(context.Background(), "s1", "how many rows?")
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}

	if gotPath != "/v1/chat" {
		t.Errorf("path = %q", gotPath)
	}
	if gotAuth != "Bearer tok" {
		t.Errorf("auth header = %q", gotAuth)
	}
	if gotReq.SessionID != "s1" || gotReq.Message != "how many rows?" {
		t.Errorf("request = %+v", gotReq)
	}
	if resp.Response != "42 rows match" {
		t.Errorf("response = %q", resp.Response)
	}
}

func TestAPIClient_HistoryQueryParam(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		json.NewEncoder(w).Encode(datatypes.ChatHistoryResponse{SessionID: "s7"})
	}))
	defer srv.Close()

	c := newAPIClient(srv.URL, "")
	if _, err := c.History(context.Background(), "s7"); err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if gotQuery != "session_id=s7" {
		t.Errorf("query = %q", gotQuery)
	}
}

func TestAPIClient_ErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{"error": "request already in flight"})
	}))
	defer srv.Close()

	c := newAPIClient(srv.URL, "")
	_, err := c.Chat(context.Background(), "", "q")
	if err == nil {
		t.Fatal("expected error")
	}

	var apiErr *apiError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error type = %T", err)
	}
	if apiErr.StatusCode != http.StatusConflict {
		t.Errorf("status = %d", apiErr.StatusCode)
	}
	if apiErr.Message != "request already in flight" {
		t.Errorf("message = %q", apiErr.Message)
	}
}

func TestAPIClient_DeleteSession(t *testing.T) {
	var gotMethod, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		json.NewEncoder(w).Encode(datatypes.DeleteResponse{Message: "session deleted"})
	}))
	defer srv.Close()

	c := newAPIClient(srv.URL, "")
	resp, err := c.DeleteSession(context.Background(), "abc")
	if err != nil {
		t.Fatalf("DeleteSession failed: %v", err)
	}
	if gotMethod != http.MethodDelete || gotPath != "/v1/chat/sessions/abc" {
		t.Errorf("request = %s %s", gotMethod, gotPath)
	}
	if resp.Message != "session deleted" {
		t.Errorf("message = %q", resp.Message)
	}
}
