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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/johmakinen/DAAgent/services/orchestrator/datatypes"
)

// apiClient talks to the orchestrator's /v1 API.
type apiClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func newAPIClient(baseURL, token string) *apiClient {
	return &apiClient{
		baseURL: baseURL,
		token:   token,
		// Chat turns can take a while: planning plus SQL plus synthesis.
		http: &http.Client{Timeout: 5 * time.Minute},
	}
}

func (c *apiClient) Chat(ctx context.Context, sessionID, message string) (*datatypes.ChatResponse, error) {
	var resp datatypes.ChatResponse
	err := c.do(ctx, http.MethodPost, "/v1/chat",
		datatypes.ChatRequest{SessionID: sessionID, Message: message}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *apiClient) History(ctx context.Context, sessionID string) (*datatypes.ChatHistoryResponse, error) {
	var resp datatypes.ChatHistoryResponse
	path := "/v1/chat/history"
	if sessionID != "" {
		path += "?session_id=" + sessionID
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *apiClient) Reset(ctx context.Context, sessionID string) (*datatypes.DeleteResponse, error) {
	var resp datatypes.DeleteResponse
	err := c.do(ctx, http.MethodPost, "/v1/chat/reset",
		map[string]string{"session_id": sessionID}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *apiClient) Cancel(ctx context.Context, sessionID string) (*datatypes.CancelResponse, error) {
	var resp datatypes.CancelResponse
	err := c.do(ctx, http.MethodPost, "/v1/chat/cancel",
		map[string]string{"session_id": sessionID}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *apiClient) CreateSession(ctx context.Context, title string) (*datatypes.SessionInfo, error) {
	var resp datatypes.SessionInfo
	err := c.do(ctx, http.MethodPost, "/v1/chat/sessions",
		datatypes.CreateSessionRequest{Title: title}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *apiClient) ListSessions(ctx context.Context) (*datatypes.SessionListResponse, error) {
	var resp datatypes.SessionListResponse
	if err := c.do(ctx, http.MethodGet, "/v1/chat/sessions", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *apiClient) DeleteSession(ctx context.Context, sessionID string) (*datatypes.DeleteResponse, error) {
	var resp datatypes.DeleteResponse
	err := c.do(ctx, http.MethodDelete, "/v1/chat/sessions/"+sessionID, nil, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// apiError carries the orchestrator's error body alongside the status.
type apiError struct {
	StatusCode int
	Message    string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("orchestrator returned %d: %s", e.StatusCode, e.Message)
}

func (c *apiClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode the request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach the orchestrator at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read the response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var errBody struct {
			Error string `json:"error"`
		}
		message := string(data)
		if json.Unmarshal(data, &errBody) == nil && errBody.Error != "" {
			message = errBody.Error
		}
		return &apiError{StatusCode: resp.StatusCode, Message: message}
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to decode the response: %w", err)
		}
	}
	return nil
}
