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
	"encoding/json"
	"fmt"
	"strings"

	"github.com/johmakinen/DAAgent/services/orchestrator/datatypes"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// agentsTracer is the OpenTelemetry tracer for agent operations.
var agentsTracer = otel.Tracer("daagent.orchestrator.agents")

const plannerSystemPrompt = `You are a planning agent for a data analysis assistant.
Classify the user's question and produce a JSON execution plan with exactly these fields:

{
  "intent_type": "database_query" | "general_question",
  "needs_clarification": bool,
  "clarification_question": string,
  "use_cached_data": bool,
  "plot_required": bool,
  "plot_hint": {"plot_type": string, "x_column": string, "y_column": string, "title": string} | null,
  "sql": string
}

Rules:
- "database_query" when answering requires data from the database; otherwise "general_question".
- Set "use_cached_data" only when the user refers to data already retrieved in this conversation
  (e.g. "plot that", "now group it by month").
- Set "needs_clarification" only when the question cannot be answered without more information,
  and put the follow-up question in "clarification_question".
- Fill "sql" only when the question maps to one obvious, trivial SQL statement. Leave it empty otherwise.
- Respond with the JSON object only.`

// LLMPlanner implements Planner on top of an LLM in JSON mode.
type LLMPlanner struct {
	llm LLM
}

var _ Planner = (*LLMPlanner)(nil)

// NewLLMPlanner creates a planner backed by the given model client.
func NewLLMPlanner(llm LLM) *LLMPlanner {
	return &LLMPlanner{llm: llm}
}

// Plan implements the Planner interface.
//
// # Description
//
// Sends the question and recent conversation to the model and parses the
// returned JSON plan. A plan that fails validation is an error: the caller
// treats it like any other planner failure rather than guessing an intent.
func (p *LLMPlanner) Plan(
	ctx context.Context,
	question string,
	history []datatypes.Message,
) (*datatypes.ExecutionPlan, error) {
	ctx, span := agentsTracer.Start(ctx, "LLMPlanner.Plan")
	defer span.End()

	raw, err := p.llm.CompleteJSON(ctx, plannerSystemPrompt, renderPrompt(question, history))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "planner completion failed")
		return nil, fmt.Errorf("planner completion failed: %w", err)
	}

	var plan datatypes.ExecutionPlan
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &plan); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "unparseable plan")
		return nil, fmt.Errorf("failed to parse execution plan: %w", err)
	}
	if err := plan.Validate(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid plan")
		return nil, fmt.Errorf("planner produced an invalid plan: %w", err)
	}

	span.SetAttributes(
		attribute.String("plan.intent", string(plan.Intent)),
		attribute.Bool("plan.needs_clarification", plan.NeedsClarification),
		attribute.Bool("plan.use_cached_data", plan.UseCachedData),
		attribute.Bool("plan.plot_required", plan.PlotRequired),
		attribute.Bool("plan.has_sql", plan.SQL != ""),
	)
	return &plan, nil
}

// renderPrompt flattens the question plus recent history into the user
// message sent to the model.
func renderPrompt(question string, history []datatypes.Message) string {
	if len(history) == 0 {
		return question
	}
	var b strings.Builder
	b.WriteString("Conversation so far:\n")
	for _, m := range history {
		if m.User != "" {
			fmt.Fprintf(&b, "User: %s\n", m.User)
		}
		if m.Assistant != "" {
			fmt.Fprintf(&b, "Assistant: %s\n", m.Assistant)
		}
	}
	fmt.Fprintf(&b, "\nCurrent question: %s", question)
	return b.String()
}
