// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package pipeline coordinates one chat turn end-to-end: history
// management, clarification resolution, planning, data fetching,
// synthesis, plotting, and persistence.
//
// The orchestrator owns no business logic of its own; it sequences the
// session managers and agent collaborators and enforces the turn's
// cancellation checkpoints.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/johmakinen/DAAgent/services/orchestrator/agents"
	"github.com/johmakinen/DAAgent/services/orchestrator/datatypes"
	"github.com/johmakinen/DAAgent/services/orchestrator/observability"
	"github.com/johmakinen/DAAgent/services/orchestrator/session"
	"github.com/johmakinen/DAAgent/services/orchestrator/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// pipelineTracer is the OpenTelemetry tracer for pipeline operations.
var pipelineTracer = otel.Tracer("daagent.orchestrator.pipeline")

// DefaultSessionID is used when a request names no session.
const DefaultSessionID = "default"

// fallbackClarificationQuestion covers a query agent that signals
// clarification without providing the question text.
const fallbackClarificationQuestion = "Could you please clarify which column you meant?"

// TurnResult is the outcome of one chat turn.
type TurnResult struct {
	Response  string
	Intent    datatypes.Intent
	Metadata  map[string]any
	PlotSpec  json.RawMessage
	SessionID string

	// Clarifying marks a turn that ended with a follow-up question
	// instead of an answer.
	Clarifying bool

	// Cancelled marks a turn stopped at a checkpoint by a cancel
	// request. Cancellation is an outcome, not an error.
	Cancelled bool
}

// Orchestrator runs the chat pipeline.
//
// # Description
//
// One Handle call processes one user message:
//
//	receive → summarize history → resolve clarification → plan →
//	route/fetch data → synthesize → plot → persist → done
//
// A cancel request is honored at the checkpoint boundaries between those
// stages: the in-progress external call finishes, then the turn stops
// before the next side effect. Within one session at most one turn runs
// at a time; a second concurrent request fails with
// session.ErrAlreadyInFlight.
type Orchestrator struct {
	sessions *session.Store
	history  *session.History
	cache    *session.Cache
	cancels  *session.CancelRegistry

	planner     agents.Planner
	router      *Router
	synthesizer agents.Synthesizer
	plotPlanner agents.PlotPlanner

	messages storage.MessageStore
	metrics  *observability.TurnMetrics
}

// Config bundles the orchestrator's collaborators.
type Config struct {
	Sessions *session.Store
	History  *session.History
	Cache    *session.Cache
	Cancels  *session.CancelRegistry

	Planner     agents.Planner
	Router      *Router
	Synthesizer agents.Synthesizer
	PlotPlanner agents.PlotPlanner

	Messages storage.MessageStore

	// Metrics is optional; nil disables recording.
	Metrics *observability.TurnMetrics
}

// NewOrchestrator creates an orchestrator from its collaborators.
func NewOrchestrator(cfg Config) *Orchestrator {
	return &Orchestrator{
		sessions:    cfg.Sessions,
		history:     cfg.History,
		cache:       cfg.Cache,
		cancels:     cfg.Cancels,
		planner:     cfg.Planner,
		router:      cfg.Router,
		synthesizer: cfg.Synthesizer,
		plotPlanner: cfg.PlotPlanner,
		messages:    cfg.Messages,
		metrics:     cfg.Metrics,
	}
}

// Sessions exposes the session store for handlers.
func (o *Orchestrator) Sessions() *session.Store {
	return o.sessions
}

// Messages exposes the message store for handlers.
func (o *Orchestrator) Messages() storage.MessageStore {
	return o.messages
}

// Cancel requests cancellation of the session's in-flight turn. Reports
// whether a turn was actually in flight; cancelling an idle session is a
// no-op that reports false.
func (o *Orchestrator) Cancel(sessionID string) bool {
	if sessionID == "" {
		sessionID = DefaultSessionID
	}
	ok := o.cancels.Cancel(sessionID)
	if ok {
		slog.Info("cancel requested", "session_id", sessionID)
		if o.metrics != nil {
			o.metrics.CancellationsTotal.Inc()
		}
	}
	return ok
}

// Handle processes one user message and returns the turn's outcome.
//
// Errors are typed: *ValidationError for bad input,
// session.ErrAlreadyInFlight when the session is busy, *DownstreamError
// when a collaborator fails. A cancelled turn returns a TurnResult with
// Cancelled set and a nil error.
func (o *Orchestrator) Handle(ctx context.Context, sessionID, message string) (*TurnResult, error) {
	ctx, span := pipelineTracer.Start(ctx, "Orchestrator.Handle")
	defer span.End()

	if message == "" {
		err := &ValidationError{Field: "message", Reason: "must not be empty"}
		span.RecordError(err)
		span.SetStatus(codes.Error, "empty message")
		return nil, err
	}
	if sessionID == "" {
		sessionID = DefaultSessionID
	}
	span.SetAttributes(attribute.String("session.id", sessionID))

	s := o.sessions.GetOrCreate(sessionID)

	token, err := o.cancels.Begin(sessionID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "session busy")
		return nil, err
	}
	defer o.cancels.End(sessionID)

	start := time.Now()
	if o.metrics != nil {
		o.metrics.TurnStarted()
	}
	result, err := o.handleTurn(ctx, s, token, message)
	if o.metrics != nil {
		o.metrics.TurnEnded()
		o.metrics.RecordTurn(turnOutcome(result, err), time.Since(start).Seconds())
	}
	return result, err
}

func turnOutcome(result *TurnResult, err error) observability.Outcome {
	switch {
	case err != nil:
		return observability.OutcomeError
	case result.Cancelled:
		return observability.OutcomeCancelled
	case result.Clarifying:
		return observability.OutcomeClarifying
	default:
		return observability.OutcomeDone
	}
}

func (o *Orchestrator) handleTurn(
	ctx context.Context,
	s *session.Session,
	token *session.CancelToken,
	message string,
) (*TurnResult, error) {
	ctx, span := pipelineTracer.Start(ctx, "Orchestrator.handleTurn")
	defer span.End()

	cancelled := func() bool {
		return token.Cancelled() || ctx.Err() != nil
	}

	// Summarization is a history-size concern, not part of answering; a
	// failure inside is recovered and the turn proceeds.
	before := s.HistoryLen()
	if err := o.history.MaybeSummarize(ctx, s); err == nil && s.HistoryLen() < before {
		if o.metrics != nil {
			o.metrics.SummarizationsTotal.Inc()
		}
	}

	// An outstanding follow-up question binds this message as its answer:
	// the planner sees the original question augmented with the reply.
	question := message
	pending := s.TakePendingClarification()
	if pending != nil {
		question = pending.OriginalQuestion + "\n" + message
		span.SetAttributes(attribute.Bool("turn.clarification_response", true))
		slog.Debug("resolving pending clarification",
			"session_id", s.ID,
			"asked_at", pending.AskedAt,
		)
	}

	// A turn that stops before answering did not resolve the follow-up it
	// consumed; put it back so the next message can still answer it.
	restorePending := func() {
		if pending != nil {
			s.RestorePendingClarification(pending)
		}
	}
	cancelledResult := func(stage string) *TurnResult {
		restorePending()
		slog.Info("turn cancelled", "session_id", s.ID, "stage", stage)
		span.AddEvent("turn_cancelled", trace.WithAttributes(attribute.String("stage", stage)))
		return &TurnResult{SessionID: s.ID, Cancelled: true}
	}

	if cancelled() {
		return cancelledResult("received"), nil
	}

	plan, err := o.planner.Plan(ctx, question, s.History())
	if err != nil {
		restorePending()
		span.RecordError(err)
		span.SetStatus(codes.Error, "planner failed")
		return nil, downstream("planner", err)
	}
	span.SetAttributes(attribute.String("plan.intent", string(plan.Intent)))

	// Cancellation is checked before the clarification branch: a cancelled
	// turn must end with no side effects, not record a follow-up.
	if cancelled() {
		return cancelledResult("planned"), nil
	}

	if plan.NeedsClarification {
		return o.clarify(ctx, s, plan.Intent, message, question, plan.ClarificationQuestion)
	}

	result, err := o.router.Dispatch(ctx, s, plan, question, s.History())
	if err != nil {
		restorePending()
		span.RecordError(err)
		span.SetStatus(codes.Error, "dispatch failed")
		return nil, err
	}

	if cancelled() {
		return cancelledResult("routed"), nil
	}

	// The query agent can itself run out of information mid-query.
	if result != nil && result.NeedsClarification {
		cq := result.ClarificationQuestion
		if cq == "" {
			cq = fallbackClarificationQuestion
		}
		return o.clarify(ctx, s, plan.Intent, message, question, cq)
	}

	answer, err := o.synthesizer.Synthesize(ctx, formatSynthesizerContext(question, result), question, s.History())
	if err != nil {
		restorePending()
		span.RecordError(err)
		span.SetStatus(codes.Error, "synthesis failed")
		return nil, downstream("synthesizer", err)
	}

	var plotSpec json.RawMessage
	if plan.PlotRequired && result != nil && result.Success {
		plotSpec, err = o.plotPlanner.PlanPlot(ctx, question, result, plan.PlotHint)
		if err != nil {
			// A failed plot degrades the turn, it does not fail it.
			slog.Warn("plot planning failed, continuing without plot",
				"session_id", s.ID,
				"error", err,
			)
			span.AddEvent("plot_failed")
			plotSpec = nil
		}
	}

	if cancelled() {
		return cancelledResult("synthesized"), nil
	}

	metadata := map[string]any{
		"intent_type":       string(plan.Intent),
		"requires_database": plan.Intent == datatypes.IntentDatabaseQuery,
		"session_id":        s.ID,
	}
	if result != nil {
		metadata["sql"] = result.SQL
		metadata["row_count"] = result.RowCount
	}

	// Persist before touching in-memory history: a storage failure must
	// not leave a turn visible in the session but absent from disk.
	if err := o.persistTurn(ctx, s.ID, message, answer, string(plan.Intent), metadata, plotSpec); err != nil {
		restorePending()
		span.RecordError(err)
		span.SetStatus(codes.Error, "persistence failed")
		return nil, err
	}

	msg := datatypes.NewMessage(message, answer)
	msg.Intent = plan.Intent
	msg.Metadata = metadata
	msg.PlotSpec = plotSpec
	o.history.Append(s, msg)

	slog.Info("turn completed",
		"session_id", s.ID,
		"intent", plan.Intent,
		"plotted", len(plotSpec) > 0,
	)
	return &TurnResult{
		Response:  answer,
		Intent:    plan.Intent,
		Metadata:  metadata,
		PlotSpec:  plotSpec,
		SessionID: s.ID,
	}, nil
}

// clarify ends the turn with a follow-up question: the pending slot is
// set (overwriting any unresolved follow-up), and the exchange is
// recorded in history and storage like any other turn.
func (o *Orchestrator) clarify(
	ctx context.Context,
	s *session.Session,
	intent datatypes.Intent,
	message, question, clarificationQuestion string,
) (*TurnResult, error) {
	ctx, span := pipelineTracer.Start(ctx, "Orchestrator.clarify")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", s.ID))

	s.SetPendingClarification(question, clarificationQuestion)

	metadata := map[string]any{
		"intent_type":   string(intent),
		"clarification": true,
		"session_id":    s.ID,
	}
	if err := o.persistTurn(ctx, s.ID, message, clarificationQuestion, string(intent), metadata, nil); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persistence failed")
		return nil, err
	}

	msg := datatypes.NewMessage(message, clarificationQuestion)
	msg.Intent = intent
	msg.Metadata = metadata
	o.history.Append(s, msg)

	slog.Info("turn awaiting clarification", "session_id", s.ID)
	return &TurnResult{
		Response:   clarificationQuestion,
		Intent:     intent,
		Metadata:   metadata,
		SessionID:  s.ID,
		Clarifying: true,
	}, nil
}

func (o *Orchestrator) persistTurn(
	ctx context.Context,
	sessionID, message, response, intent string,
	metadata map[string]any,
	plotSpec json.RawMessage,
) error {
	rec := &datatypes.ChatRecord{
		ID:         uuid.NewString(),
		SessionID:  sessionID,
		Message:    message,
		Response:   response,
		IntentType: intent,
		Metadata:   metadata,
		PlotSpec:   plotSpec,
		CreatedAt:  time.Now().UTC(),
	}
	if err := o.messages.SaveMessage(ctx, rec); err != nil {
		return downstream("storage", fmt.Errorf("persist turn: %w", err))
	}
	return nil
}
