// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes provides data structures for the orchestrator service.
//
// This file contains the execution plan produced by the planner for each
// user turn. The plan is the single routing decision for a turn: it names
// the intent, whether the user must be asked a follow-up question first,
// whether cached data should be reused, and whether a plot is wanted.
package datatypes

import (
	"fmt"
)

// Intent is the closed set of request intents the router dispatches on.
//
// New intents are added by extending this set and the router switch, never
// by matching on free-form strings.
type Intent string

const (
	// IntentDatabaseQuery means the turn needs data from the database.
	IntentDatabaseQuery Intent = "database_query"

	// IntentGeneralQuestion means the turn is answered without new data,
	// unless a plot over previously fetched data was requested.
	IntentGeneralQuestion Intent = "general_question"
)

// Valid reports whether the intent is a member of the closed set.
func (i Intent) Valid() bool {
	switch i {
	case IntentDatabaseQuery, IntentGeneralQuestion:
		return true
	default:
		return false
	}
}

// PlotHint carries the planner's suggestion for how a plot should look.
//
// All fields are optional; the plot planner fills in anything missing from
// the shape of the query result.
type PlotHint struct {
	PlotType string `json:"plot_type,omitempty"`
	XColumn  string `json:"x_column,omitempty"`
	YColumn  string `json:"y_column,omitempty"`
	Title    string `json:"title,omitempty"`
}

// ExecutionPlan is the routing decision produced once per user turn.
//
// # Description
//
// The planner produces exactly one ExecutionPlan per request; the router
// consumes it exactly once. Plans are never persisted directly, only their
// effects (cache entries, history messages, stored records) are.
//
// # Fields
//
//   - Intent: Required. One of the Intent constants.
//   - NeedsClarification: When true the orchestrator short-circuits and
//     returns ClarificationQuestion without routing.
//   - ClarificationQuestion: The follow-up question to ask. Required when
//     NeedsClarification is true.
//   - UseCachedData: Reuse the most recent successful query result instead
//     of executing a new query. A miss silently falls back to live execution.
//   - PlotRequired: The response should include a plot specification.
//   - PlotHint: Optional plot shape suggestion from the planner.
//   - SQL: Optional. When set, the router executes it directly instead of
//     delegating to the query agent.
type ExecutionPlan struct {
	Intent                Intent    `json:"intent_type"`
	NeedsClarification    bool      `json:"needs_clarification"`
	ClarificationQuestion string    `json:"clarification_question,omitempty"`
	UseCachedData         bool      `json:"use_cached_data"`
	PlotRequired          bool      `json:"plot_required"`
	PlotHint              *PlotHint `json:"plot_hint,omitempty"`
	SQL                   string    `json:"sql,omitempty"`
}

// Validate checks the plan's internal consistency.
//
// A plan with an intent outside the closed set, or one that requests
// clarification without providing a question, is malformed and must be
// rejected before any side effects occur.
func (p *ExecutionPlan) Validate() error {
	if !p.Intent.Valid() {
		return fmt.Errorf("unknown intent %q", p.Intent)
	}
	if p.NeedsClarification && p.ClarificationQuestion == "" {
		return fmt.Errorf("plan requests clarification without a question")
	}
	return nil
}

// NeedsData reports whether the plan requires query data.
//
// Database queries always need data. General questions need data only when
// a plot was requested, in which case the data path runs so the plot has
// rows to draw.
func (p *ExecutionPlan) NeedsData() bool {
	if p.Intent == IntentDatabaseQuery {
		return true
	}
	return p.Intent == IntentGeneralQuestion && p.PlotRequired
}
