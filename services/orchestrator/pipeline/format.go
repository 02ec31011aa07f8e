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
	"fmt"
	"sort"
	"strings"

	"github.com/johmakinen/DAAgent/services/orchestrator/datatypes"
)

// contextSampleRows caps how many result rows are rendered into the
// synthesizer context.
const contextSampleRows = 5

// formatSynthesizerContext renders the turn's data into the context block
// the synthesizer prompt expects. result is nil for turns that needed no
// data; those get the bare user question.
func formatSynthesizerContext(userMessage string, result *datatypes.QueryResult) string {
	if result == nil {
		return fmt.Sprintf("User question: %s", userMessage)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "User question: %s\n\n", userMessage)
	fmt.Fprintf(&b, "SQL Query executed: %s\n", result.SQL)
	fmt.Fprintf(&b, "Query explanation: %s\n", result.Explanation)
	fmt.Fprintf(&b, "Query success: %t\n", result.Success)

	if !result.Success {
		fmt.Fprintf(&b, "Query error: %s", result.Error)
		return b.String()
	}
	if result.RowCount == 0 {
		b.WriteString("Query returned 0 rows.")
		return b.String()
	}

	sample := result.Rows
	if len(sample) > contextSampleRows {
		sample = sample[:contextSampleRows]
	}
	fmt.Fprintf(&b, "Query returned %d row(s):\n", result.RowCount)
	for i, row := range sample {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "Row %d: %s", i+1, formatRow(row))
	}
	if result.RowCount > contextSampleRows {
		fmt.Fprintf(&b, "\n... and %d more rows", result.RowCount-contextSampleRows)
	}
	return b.String()
}

// formatRow renders one result row as "col: value" pairs. Keys are sorted
// for deterministic output.
func formatRow(row map[string]any) string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, fmt.Sprintf("%s: %v", k, row[k]))
	}
	return strings.Join(pairs, ", ")
}
