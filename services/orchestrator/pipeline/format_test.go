// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pipeline

import (
	"strings"
	"testing"

	"github.com/johmakinen/DAAgent/services/orchestrator/datatypes"
)

func TestFormatSynthesizerContext_NoData(t *testing.T) {
	got := formatSynthesizerContext("what is a median?", nil)
	if got != "User question: what is a median?" {
		t.Errorf("context = %q", got)
	}
}

func TestFormatSynthesizerContext_SuccessWithRows(t *testing.T) {
	result := &datatypes.QueryResult{
		SQL:         "SELECT region, total FROM sales",
		Explanation: "sums sales by region",
		Success:     true,
		RowCount:    7,
		Rows: []map[string]any{
			{"region": "west", "total": 10},
			{"region": "east", "total": 20},
			{"region": "north", "total": 30},
			{"region": "south", "total": 40},
			{"region": "mid", "total": 50},
			{"region": "nw", "total": 60},
			{"region": "se", "total": 70},
		},
	}
	got := formatSynthesizerContext("sales by region", result)

	for _, want := range []string{
		"User question: sales by region",
		"SQL Query executed: SELECT region, total FROM sales",
		"Query explanation: sums sales by region",
		"Query success: true",
		"Query returned 7 row(s):",
		"Row 1: region: west, total: 10",
		"Row 5: region: mid, total: 50",
		"... and 2 more rows",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("context missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "Row 6") {
		t.Error("context should stop at 5 sample rows")
	}
}

func TestFormatSynthesizerContext_ZeroRows(t *testing.T) {
	result := &datatypes.QueryResult{
		SQL:     "SELECT * FROM sales WHERE 1=0",
		Success: true,
	}
	got := formatSynthesizerContext("q", result)
	if !strings.Contains(got, "Query returned 0 rows.") {
		t.Errorf("context = %q", got)
	}
}

func TestFormatSynthesizerContext_Failure(t *testing.T) {
	result := &datatypes.QueryResult{
		SQL:     "SELECT nope FROM sales",
		Success: false,
		Error:   "no such column: nope",
	}
	got := formatSynthesizerContext("q", result)
	if !strings.Contains(got, "Query success: false") {
		t.Errorf("context = %q", got)
	}
	if !strings.Contains(got, "Query error: no such column: nope") {
		t.Errorf("context = %q", got)
	}
	if strings.Contains(got, "row(s)") {
		t.Error("failed query must not render rows")
	}
}

func TestFormatRow_SortsKeys(t *testing.T) {
	got := formatRow(map[string]any{"b": 2, "a": 1, "c": 3})
	if got != "a: 1, b: 2, c: 3" {
		t.Errorf("row = %q", got)
	}
}
