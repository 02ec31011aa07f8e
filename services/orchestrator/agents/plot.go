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
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const plotSystemPrompt = `You design chart specifications for a data analysis assistant.
Given a user question, a sample of query result rows, and an optional hint,
produce a single JSON object describing the chart: chart type, axis column
names, series, and title. Use only columns that exist in the sample rows.
Respond with the JSON object only.`

// plotSampleRows caps how many result rows are shown to the model.
const plotSampleRows = 5

// LLMPlotPlanner implements PlotPlanner on top of an LLM in JSON mode.
//
// The produced document is passed through to the client for rendering; the
// orchestrator never interprets it beyond checking it is valid JSON.
type LLMPlotPlanner struct {
	llm LLM
}

var _ PlotPlanner = (*LLMPlotPlanner)(nil)

// NewLLMPlotPlanner creates a plot planner backed by the given model client.
func NewLLMPlotPlanner(llm LLM) *LLMPlotPlanner {
	return &LLMPlotPlanner{llm: llm}
}

// PlanPlot implements the PlotPlanner interface.
func (p *LLMPlotPlanner) PlanPlot(
	ctx context.Context,
	question string,
	result *datatypes.QueryResult,
	hint *datatypes.PlotHint,
) (json.RawMessage, error) {
	ctx, span := agentsTracer.Start(ctx, "LLMPlotPlanner.PlanPlot")
	defer span.End()

	if result == nil || len(result.Rows) == 0 {
		err := fmt.Errorf("no rows to plot")
		span.RecordError(err)
		span.SetStatus(codes.Error, "empty result")
		return nil, err
	}
	span.SetAttributes(attribute.Int("plot.rows", result.RowCount))

	raw, err := p.llm.CompleteJSON(ctx, plotSystemPrompt, renderPlotPrompt(question, result, hint))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "plot completion failed")
		return nil, fmt.Errorf("plot planning failed: %w", err)
	}

	spec := json.RawMessage(stripCodeFence(raw))
	if !json.Valid(spec) {
		err := fmt.Errorf("plot planner returned invalid JSON")
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid plot spec")
		return nil, err
	}
	return spec, nil
}

func renderPlotPrompt(question string, result *datatypes.QueryResult, hint *datatypes.PlotHint) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\n", question)

	sample := result.Rows
	if len(sample) > plotSampleRows {
		sample = sample[:plotSampleRows]
	}
	rows, _ := json.Marshal(sample)
	fmt.Fprintf(&b, "Result rows (%d total, showing %d):\n%s\n", result.RowCount, len(sample), rows)

	if hint != nil {
		hintJSON, _ := json.Marshal(hint)
		fmt.Fprintf(&b, "\nHint from the planner: %s\n", hintJSON)
	}
	return b.String()
}
