// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package agents holds the pipeline's downstream collaborators: the LLM
// planner, synthesizer, summarizer, and plot planner, plus the HTTP client
// for the SQL data service.
//
// Every collaborator is an interface here and a concrete client below it.
// The pipeline package depends only on the interfaces; tests inject fakes.
package agents

import (
	"context"
	"encoding/json"

	"github.com/johmakinen/DAAgent/services/orchestrator/datatypes"
)

// Planner classifies a user question and produces an execution plan.
//
// # Description
//
// The planner is the first LLM call of a turn. Given the question and the
// conversation history it decides the intent, whether a clarifying
// follow-up is needed, whether the most recent cached result can answer
// the question, and whether a plot was requested. It never executes SQL.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type Planner interface {
	Plan(ctx context.Context, question string, history []datatypes.Message) (*datatypes.ExecutionPlan, error)
}

// QueryAgent answers a question by generating and executing SQL against
// the data service. The agent may come back with a clarifying question of
// its own instead of a result; callers must check NeedsClarification.
type QueryAgent interface {
	Query(ctx context.Context, question string, history []datatypes.Message) (*datatypes.QueryResult, error)
}

// SQLExecutor runs one SQL statement the planner produced directly,
// bypassing the query agent.
type SQLExecutor interface {
	Execute(ctx context.Context, sql string) (*datatypes.QueryResult, error)
}

// Synthesizer turns the raw pipeline output into the natural-language
// answer returned to the user.
type Synthesizer interface {
	Synthesize(ctx context.Context, dataContext string, question string, history []datatypes.Message) (string, error)
}

// Summarizer condenses a conversation transcript into a short summary.
// Used by history management when a session grows past its threshold.
type Summarizer interface {
	Summarize(ctx context.Context, transcript string) (string, error)
}

// PlotPlanner produces a renderable plot specification for a query result.
//
// The returned document is opaque to the orchestrator: it is stored and
// forwarded verbatim, never interpreted. A plot planner failure is
// recoverable — the turn proceeds without a plot.
type PlotPlanner interface {
	PlanPlot(ctx context.Context, question string, result *datatypes.QueryResult, hint *datatypes.PlotHint) (json.RawMessage, error)
}
