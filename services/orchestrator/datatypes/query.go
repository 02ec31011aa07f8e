// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"time"
)

// QueryResult is the outcome of one database execution.
//
// # Description
//
// Produced either by the direct SQL executor or by the query agent (which
// generates the SQL itself before executing it). The orchestrator only
// depends on this result shape; how the SQL was produced or run is the
// data service's concern.
//
// # Fields
//
//   - SQL: The SQL statement that was executed.
//   - Rows: Result rows as column-name keyed maps.
//   - RowCount: Number of rows returned.
//   - Success: Whether execution succeeded.
//   - Error: Error message when Success is false.
//   - Explanation: Short description of what the query does (query agent).
//   - NeedsClarification: The query agent could not produce a runnable
//     query and wants to ask the user a follow-up instead.
//   - ClarificationQuestion: The follow-up question when NeedsClarification.
type QueryResult struct {
	SQL                   string           `json:"sql"`
	Rows                  []map[string]any `json:"rows,omitempty"`
	RowCount              int              `json:"row_count"`
	Success               bool             `json:"success"`
	Error                 string           `json:"error,omitempty"`
	Explanation           string           `json:"explanation,omitempty"`
	NeedsClarification    bool             `json:"needs_clarification,omitempty"`
	ClarificationQuestion string           `json:"clarification_question,omitempty"`
}

// CachedResult is one entry in a session's bounded result cache.
//
// Entries are keyed by recency only: "use cached data" means "reuse the
// most recent successful result", not a semantic lookup. The fingerprint
// exists for logging and debugging, not for retrieval.
type CachedResult struct {
	Fingerprint string       `json:"fingerprint"`
	Result      *QueryResult `json:"result"`
	CreatedAt   time.Time    `json:"created_at"`
}

// Fingerprint derives a short identifier for a query execution, combining
// a hash of the SQL text with the storage timestamp.
func Fingerprint(sql string, at time.Time) string {
	sum := md5.Sum([]byte(sql))
	return fmt.Sprintf("%s_%d", hex.EncodeToString(sum[:])[:8], at.Unix())
}
