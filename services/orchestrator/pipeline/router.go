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
	"context"
	"log/slog"

	"github.com/johmakinen/DAAgent/services/orchestrator/agents"
	"github.com/johmakinen/DAAgent/services/orchestrator/datatypes"
	"github.com/johmakinen/DAAgent/services/orchestrator/session"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Router executes the data-fetching part of an execution plan: cached
// result, direct SQL, or the query agent.
//
// # Description
//
// Dispatch is a closed decision tree over the plan:
//
//  1. Plans that need no data return nil.
//  2. use_cached_data reuses the most recent cached result; a cache miss
//     falls back silently to a fresh query.
//  3. A plan carrying SQL runs it directly on the executor.
//  4. Everything else goes to the query agent, which generates its own SQL.
//
// Fresh successful results are cached before Dispatch returns; clarifying
// responses from the query agent are passed through uncached.
type Router struct {
	cache      *session.Cache
	executor   agents.SQLExecutor
	queryAgent agents.QueryAgent
}

// NewRouter creates a router over the given collaborators.
func NewRouter(cache *session.Cache, executor agents.SQLExecutor, queryAgent agents.QueryAgent) *Router {
	return &Router{cache: cache, executor: executor, queryAgent: queryAgent}
}

// Dispatch fetches the data the plan calls for. Returns nil when the plan
// needs no data.
func (r *Router) Dispatch(
	ctx context.Context,
	s *session.Session,
	plan *datatypes.ExecutionPlan,
	question string,
	history []datatypes.Message,
) (*datatypes.QueryResult, error) {
	ctx, span := pipelineTracer.Start(ctx, "Router.Dispatch")
	defer span.End()

	if !plan.NeedsData() {
		span.SetAttributes(attribute.String("route", "none"))
		return nil, nil
	}

	if plan.UseCachedData {
		if cached := r.cache.Latest(s); cached != nil {
			span.SetAttributes(
				attribute.String("route", "cached"),
				attribute.String("cache.fingerprint", cached.Fingerprint),
			)
			slog.Debug("reusing cached query result",
				"session_id", s.ID,
				"fingerprint", cached.Fingerprint,
			)
			return cached.Result, nil
		}
		// Cache miss falls back silently to a fresh query.
		slog.Warn("no cached data found, falling back to new query", "session_id", s.ID)
		span.AddEvent("cache_miss_fallback")
	}

	if plan.SQL != "" {
		span.SetAttributes(attribute.String("route", "direct_sql"))
		result, err := r.executor.Execute(ctx, plan.SQL)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "sql executor failed")
			return nil, downstream("sql executor", err)
		}
		r.cacheIfSuccessful(s, result)
		return result, nil
	}

	span.SetAttributes(attribute.String("route", "query_agent"))
	result, err := r.queryAgent.Query(ctx, question, history)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query agent failed")
		return nil, downstream("query agent", err)
	}
	if result.NeedsClarification {
		span.SetAttributes(attribute.Bool("query.needs_clarification", true))
		return result, nil
	}
	r.cacheIfSuccessful(s, result)
	return result, nil
}

func (r *Router) cacheIfSuccessful(s *session.Session, result *datatypes.QueryResult) {
	if result != nil && result.Success {
		r.cache.Store(s, result)
	}
}
