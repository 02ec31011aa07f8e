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
	"strings"

	"github.com/johmakinen/DAAgent/services/orchestrator/datatypes"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const synthesizerSystemPrompt = `You are a data analysis assistant. Answer the user's question in clear,
concise natural language. When query results are provided, base the answer
on them: mention concrete numbers, name the columns you used, and note when
results were truncated. When the query failed, explain the failure plainly
and suggest how to rephrase. Never invent data.`

// LLMSynthesizer produces the final natural-language answer for a turn.
type LLMSynthesizer struct {
	llm LLM
}

var _ Synthesizer = (*LLMSynthesizer)(nil)

// NewLLMSynthesizer creates a synthesizer backed by the given model client.
func NewLLMSynthesizer(llm LLM) *LLMSynthesizer {
	return &LLMSynthesizer{llm: llm}
}

// Synthesize implements the Synthesizer interface. dataContext carries the
// formatted pipeline output (SQL, row sample, errors); it is empty for
// turns that needed no data.
func (s *LLMSynthesizer) Synthesize(
	ctx context.Context,
	dataContext string,
	question string,
	history []datatypes.Message,
) (string, error) {
	ctx, span := agentsTracer.Start(ctx, "LLMSynthesizer.Synthesize")
	defer span.End()
	span.SetAttributes(attribute.Bool("synthesize.has_data", dataContext != ""))

	user := renderPrompt(question, history)
	if dataContext != "" {
		user = dataContext + "\n\n" + user
	}

	answer, err := s.llm.Complete(ctx, synthesizerSystemPrompt, user)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "synthesis failed")
		return "", fmt.Errorf("synthesis failed: %w", err)
	}
	return strings.TrimSpace(answer), nil
}

const summarizerSystemPrompt = `Summarize the following conversation between a user and a data analysis
assistant in a few sentences. Preserve concrete facts: table names, filter
values, numbers the assistant reported, and decisions made. Omit pleasantries.`

// LLMSummarizer condenses old conversation history for the session store.
type LLMSummarizer struct {
	llm LLM
}

var _ Summarizer = (*LLMSummarizer)(nil)

// NewLLMSummarizer creates a summarizer backed by the given model client.
func NewLLMSummarizer(llm LLM) *LLMSummarizer {
	return &LLMSummarizer{llm: llm}
}

// Summarize implements the Summarizer interface.
func (s *LLMSummarizer) Summarize(ctx context.Context, transcript string) (string, error) {
	ctx, span := agentsTracer.Start(ctx, "LLMSummarizer.Summarize")
	defer span.End()
	span.SetAttributes(attribute.Int("summarize.transcript_bytes", len(transcript)))

	summary, err := s.llm.Complete(ctx, summarizerSystemPrompt, transcript)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "summarization failed")
		return "", fmt.Errorf("summarization failed: %w", err)
	}
	return strings.TrimSpace(summary), nil
}
