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
	"errors"
	"strings"
	"testing"

	"github.com/johmakinen/DAAgent/services/orchestrator/datatypes"
)

type fakeLLM struct {
	response string
	err      error
	lastUser string
}

func (f *fakeLLM) Complete(_ context.Context, _, user string) (string, error) {
	f.lastUser = user
	return f.response, f.err
}

func (f *fakeLLM) CompleteJSON(_ context.Context, _, user string) (string, error) {
	f.lastUser = user
	return f.response, f.err
}

func TestLLMPlanner_Plan(t *testing.T) {
	llm := &fakeLLM{response: `{
		"intent_type": "database_query",
		"needs_clarification": false,
		"use_cached_data": false,
		"plot_required": true,
		"plot_hint": {"plot_type": "bar", "x_column": "region", "y_column": "total"},
		"sql": ""
	}`}
	planner := NewLLMPlanner(llm)

	plan, err := planner.Plan(context.Background(), "plot sales by region", nil)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if plan.Intent != datatypes.IntentDatabaseQuery {
		t.Errorf("intent = %q", plan.Intent)
	}
	if !plan.PlotRequired || plan.PlotHint == nil || plan.PlotHint.PlotType != "bar" {
		t.Errorf("plot fields not parsed: %+v", plan)
	}
}

func TestLLMPlanner_StripsCodeFence(t *testing.T) {
	llm := &fakeLLM{response: "```json\n{\"intent_type\": \"general_question\"}\n```"}
	planner := NewLLMPlanner(llm)

	plan, err := planner.Plan(context.Background(), "what is a median?", nil)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if plan.Intent != datatypes.IntentGeneralQuestion {
		t.Errorf("intent = %q", plan.Intent)
	}
}

func TestLLMPlanner_RejectsInvalidPlan(t *testing.T) {
	cases := []struct {
		name     string
		response string
	}{
		{"unknown intent", `{"intent_type": "weather_report"}`},
		{"clarification without question", `{"intent_type": "database_query", "needs_clarification": true}`},
		{"not json", `the user wants a database query`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			planner := NewLLMPlanner(&fakeLLM{response: tc.response})
			if _, err := planner.Plan(context.Background(), "q", nil); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestLLMPlanner_PropagatesLLMFailure(t *testing.T) {
	planner := NewLLMPlanner(&fakeLLM{err: errors.New("model offline")})
	if _, err := planner.Plan(context.Background(), "q", nil); err == nil {
		t.Fatal("expected an error")
	}
}

func TestRenderPrompt(t *testing.T) {
	history := []datatypes.Message{datatypes.NewMessage("show sales", "42 rows")}
	prompt := renderPrompt("now plot it", history)

	for _, want := range []string{"User: show sales", "Assistant: 42 rows", "Current question: now plot it"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}

	if got := renderPrompt("hello", nil); got != "hello" {
		t.Errorf("empty-history prompt = %q, want bare question", got)
	}
}

func TestStripCodeFence(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"{\"a\":1}", `{"a":1}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}\n```", `{"a":1}`},
		{"  {\"a\":1}  ", `{"a":1}`},
	}
	for _, tc := range cases {
		if got := stripCodeFence(tc.in); got != tc.want {
			t.Errorf("stripCodeFence(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
