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
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// LLM is the minimal completion surface the agents need from a model
// backend. JSON completions are a separate method because the planner and
// plot planner require structured output mode.
type LLM interface {
	Complete(ctx context.Context, system, user string) (string, error)
	CompleteJSON(ctx context.Context, system, user string) (string, error)
}

// OpenAILLM backs the agents with the OpenAI chat completion API.
type OpenAILLM struct {
	client *openai.Client
	model  string
}

var _ LLM = (*OpenAILLM)(nil)

// NewOpenAILLM creates a client from the environment.
//
// The API key comes from OPENAI_API_KEY, falling back to the container
// secret at /run/secrets/openai_api_key. The model comes from
// OPENAI_MODEL, defaulting to gpt-4o-mini.
func NewOpenAILLM() (*OpenAILLM, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	model := os.Getenv("OPENAI_MODEL")
	if apiKey == "" {
		secretPath := "/run/secrets/openai_api_key"
		apiKeyBytes, err := os.ReadFile(secretPath)
		if err == nil {
			apiKey = strings.TrimSpace(string(apiKeyBytes))
			slog.Info("Read the OpenAI API key from container secrets")
		} else {
			slog.Error("OPENAI_API_KEY environment variable not set and secret not found", "path", secretPath)
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
		}
	}
	if model == "" {
		model = "gpt-4o-mini"
		slog.Warn("OPENAI_MODEL not set, defaulting to gpt-4o-mini")
	}
	slog.Info("Initializing OpenAI client", "model", model)
	return &OpenAILLM{client: openai.NewClient(apiKey), model: model}, nil
}

// Complete implements the LLM interface.
func (o *OpenAILLM) Complete(ctx context.Context, system, user string) (string, error) {
	return o.complete(ctx, system, user, nil)
}

// CompleteJSON implements the LLM interface with JSON response mode so the
// model cannot wrap its output in prose.
func (o *OpenAILLM) CompleteJSON(ctx context.Context, system, user string) (string, error) {
	return o.complete(ctx, system, user, &openai.ChatCompletionResponseFormat{
		Type: openai.ChatCompletionResponseFormatTypeJSONObject,
	})
}

func (o *OpenAILLM) complete(
	ctx context.Context,
	system, user string,
	format *openai.ChatCompletionResponseFormat,
) (string, error) {
	slog.Debug("Generating text via OpenAI", "model", o.model, "json", format != nil)
	req := openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		ResponseFormat: format,
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		slog.Error("OpenAI API call failed", "error", err)
		return "", fmt.Errorf("OpenAI API call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		slog.Warn("OpenAI returned no choices or empty content")
		return "", fmt.Errorf("OpenAI returned no choices")
	}
	slog.Debug("Received response from OpenAI", "finish_reason", resp.Choices[0].FinishReason)
	return resp.Choices[0].Message.Content, nil
}

// stripCodeFence removes a surrounding markdown code fence if the model
// ignored JSON mode and wrapped its output anyway.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
