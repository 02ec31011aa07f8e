// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package agents

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/johmakinen/DAAgent/services/orchestrator/datatypes"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Retry configuration for data service calls.
const (
	// maxQueryRetries is the maximum number of retry attempts. Retries use
	// exponential backoff.
	maxQueryRetries = 3

	// initialRetryDelay is the delay before the first retry attempt.
	// Subsequent retries double this delay (1s, 2s, 4s).
	initialRetryDelay = 1 * time.Second
)

// DataServiceClient calls the SQL data service over HTTP. It implements
// both QueryAgent (natural-language endpoint, the service generates the
// SQL itself) and SQLExecutor (direct statement execution).
//
// # Thread Safety
//
// Safe for concurrent use; all state is read-only after construction.
type DataServiceClient struct {
	baseURL    string
	httpClient *http.Client
}

var (
	_ QueryAgent  = (*DataServiceClient)(nil)
	_ SQLExecutor = (*DataServiceClient)(nil)
)

// NewDataServiceClient creates a client for the data service.
//
// The base URL is read from the DATA_SERVICE_URL environment variable,
// defaulting to "http://daagent-data-service:8200" if not set.
func NewDataServiceClient() *DataServiceClient {
	baseURL := os.Getenv("DATA_SERVICE_URL")
	if baseURL == "" {
		baseURL = "http://daagent-data-service:8200"
		slog.Warn("DATA_SERVICE_URL not set, using default", "url", baseURL)
	}
	return NewDataServiceClientWithURL(baseURL)
}

// NewDataServiceClientWithURL creates a client against an explicit base
// URL. Used by tests with httptest servers.
func NewDataServiceClientWithURL(baseURL string) *DataServiceClient {
	return &DataServiceClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{},
	}
}

// Query implements the QueryAgent interface.
//
// # Description
//
// Sends the question and conversation history to the data service's agent
// endpoint. The service generates and executes SQL and returns the result;
// it may instead return a clarifying question, surfaced on the result's
// NeedsClarification fields. Transient failures (502, 503, 504) are
// retried with exponential backoff.
func (c *DataServiceClient) Query(
	ctx context.Context,
	question string,
	history []datatypes.Message,
) (*datatypes.QueryResult, error) {
	ctx, span := agentsTracer.Start(ctx, "DataServiceClient.Query")
	defer span.End()
	span.SetAttributes(attribute.Int("query.history_turns", len(history)))

	payload := map[string]any{"question": question}
	if len(history) > 0 {
		payload["history"] = renderAgentHistory(history)
	}
	return c.postWithRetry(ctx, span, "/query/agent", payload)
}

// Execute implements the SQLExecutor interface. The statement was produced
// by the planner; the data service validates it before running.
func (c *DataServiceClient) Execute(ctx context.Context, sql string) (*datatypes.QueryResult, error) {
	ctx, span := agentsTracer.Start(ctx, "DataServiceClient.Execute")
	defer span.End()

	return c.postWithRetry(ctx, span, "/query/sql", map[string]any{"sql": sql})
}

// postWithRetry posts the payload, retrying transient failures with
// exponential backoff (1s, 2s, 4s).
func (c *DataServiceClient) postWithRetry(
	ctx context.Context,
	span trace.Span,
	path string,
	payload map[string]any,
) (*datatypes.QueryResult, error) {
	var lastErr error
	retryDelay := initialRetryDelay

	for attempt := 0; attempt <= maxQueryRetries; attempt++ {
		if attempt > 0 {
			span.AddEvent("retry_attempt", trace.WithAttributes(
				attribute.Int("attempt", attempt),
				attribute.String("delay", retryDelay.String()),
			))
			slog.Info("Retrying data service call",
				"path", path,
				"attempt", attempt,
				"delay", retryDelay,
				"lastError", lastErr,
			)

			select {
			case <-ctx.Done():
				span.RecordError(ctx.Err())
				span.SetStatus(codes.Error, "context canceled during retry")
				return nil, ctx.Err()
			case <-time.After(retryDelay):
			}
			retryDelay *= 2
		}

		result, err := c.post(ctx, path, payload)
		if err == nil {
			span.SetAttributes(
				attribute.Int("query.row_count", result.RowCount),
				attribute.Bool("query.success", result.Success),
				attribute.Int("attempts", attempt+1),
			)
			return result, nil
		}
		lastErr = err

		if !isRetryableError(err) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "non-retryable error")
			return nil, err
		}
	}

	span.RecordError(lastErr)
	span.SetStatus(codes.Error, "all retries exhausted")
	return nil, fmt.Errorf("data service call failed after %d attempts: %w", maxQueryRetries+1, lastErr)
}

// post makes a single HTTP call to the data service.
func (c *DataServiceClient) post(ctx context.Context, path string, payload map[string]any) (*datatypes.QueryResult, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewBuffer(payloadBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &DataServiceError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
			Retryable:  isRetryableStatusCode(resp.StatusCode),
		}
	}

	var result datatypes.QueryResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse data service response: %w", err)
	}
	return &result, nil
}

// renderAgentHistory converts messages into the role/content pairs the
// data service expects.
func renderAgentHistory(history []datatypes.Message) []map[string]string {
	out := make([]map[string]string, 0, len(history)*2)
	for _, m := range history {
		if m.User != "" {
			out = append(out, map[string]string{"role": "user", "content": m.User})
		}
		if m.Assistant != "" {
			out = append(out, map[string]string{"role": "assistant", "content": m.Assistant})
		}
	}
	return out
}

// isRetryableStatusCode reports whether a status code indicates a
// transient failure worth retrying: 502, 503, 504.
func isRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// isRetryableError reports whether the error should trigger a retry.
// Context errors never retry, even wrapped by the transport; plain
// network errors do.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	var de *DataServiceError
	if errors.As(err, &de) {
		return de.Retryable
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}

// =============================================================================
// Error Types
// =============================================================================

// DataServiceError wraps HTTP-level failures from the data service,
// carrying the status code and whether a retry is worthwhile.
type DataServiceError struct {
	StatusCode int
	Message    string
	Retryable  bool
}

// Error implements the error interface.
func (e *DataServiceError) Error() string {
	return fmt.Sprintf("data service error (status %d): %s", e.StatusCode, e.Message)
}

// IsDataServiceError checks if an error is a DataServiceError.
func IsDataServiceError(err error) bool {
	_, ok := err.(*DataServiceError)
	return ok
}
