// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/johmakinen/DAAgent/pkg/extensions"
	"github.com/johmakinen/DAAgent/services/orchestrator/agents"
	"github.com/johmakinen/DAAgent/services/orchestrator/config"
	"github.com/johmakinen/DAAgent/services/orchestrator/observability"
	"github.com/johmakinen/DAAgent/services/orchestrator/pipeline"
	"github.com/johmakinen/DAAgent/services/orchestrator/routes"
	"github.com/johmakinen/DAAgent/services/orchestrator/session"
	"github.com/johmakinen/DAAgent/services/orchestrator/storage"
	"github.com/johmakinen/DAAgent/services/orchestrator/ttl"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/credentials/insecure"

	// --- OpenTelemetry imports ---
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
)

func initTracer(otelEndpoint string) (func(context.Context), error) {
	ctx := context.Background()

	conn, err := grpc.NewClient(otelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("daagent-orchestrator")))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.
		TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load(os.Getenv("DAAGENT_CONFIG"))
	if err != nil {
		log.Fatalf("failed to load the configuration: %v", err)
	}

	// --- Init the tracer ---
	cleanup, err := initTracer(cfg.Observability.OTLPEndpoint)
	if err != nil {
		log.Fatalf("failed to setup the OTLP tracer: %v", err)
	}
	defer cleanup(context.Background())

	metrics := observability.InitMetrics()

	// --- Storage ---
	storageCfg := storage.DefaultConfig()
	storageCfg.Path = cfg.Storage.Path
	storageCfg.InMemory = cfg.Storage.InMemory
	storageCfg.Logger = logger
	db, err := storage.OpenDB(storageCfg)
	if err != nil {
		log.Fatalf("failed to open the message store at %s: %v", cfg.Storage.Path, err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			slog.Error("failed to close the message store", "error", err)
		}
	}()
	messages := storage.NewBadgerStore(db)

	// --- Agents ---
	// The LLM client reads OPENAI_MODEL; propagate the resolved config
	// value so file-based settings reach it too.
	os.Setenv("OPENAI_MODEL", cfg.Agents.OpenAIModel)
	llm, err := agents.NewOpenAILLM()
	if err != nil {
		log.Fatalf("failed to initialize the LLM client: %v", err)
	}
	dataService := agents.NewDataServiceClientWithURL(cfg.Agents.DataServiceURL)

	// --- Session state and pipeline ---
	sessions := session.NewStore()
	cancels := session.NewCancelRegistry()
	cache := session.NewCache(cfg.Cache.Capacity)
	cache.OnEvict(func(n int) { metrics.CacheEvictionsTotal.Add(float64(n)) })
	history := session.NewHistory(session.HistoryConfig{
		MaxMessages: cfg.History.MaxMessages,
		KeepRecent:  cfg.History.KeepRecent,
	}, agents.NewLLMSummarizer(llm))

	orch := pipeline.NewOrchestrator(pipeline.Config{
		Sessions:    sessions,
		History:     history,
		Cache:       cache,
		Cancels:     cancels,
		Planner:     agents.NewLLMPlanner(llm),
		Router:      pipeline.NewRouter(cache, dataService, dataService),
		Synthesizer: agents.NewLLMSynthesizer(llm),
		PlotPlanner: agents.NewLLMPlotPlanner(llm),
		Messages:    messages,
		Metrics:     metrics,
	})

	if cfg.TTL.Enabled {
		cleaner := ttl.NewSessionCleaner(sessions, cancels, messages, time.Duration(cfg.TTL.Retention), nil)
		sweeper := ttl.NewScheduler(cleaner, ttl.SchedulerConfig{
			Interval:  time.Duration(cfg.TTL.Interval),
			Retention: time.Duration(cfg.TTL.Retention),
		})
		if err := sweeper.Start(context.Background()); err != nil {
			log.Fatalf("failed to start the session TTL scheduler: %v", err)
		}
		defer sweeper.Stop()
	}

	var authProvider extensions.AuthProvider = &extensions.NopAuthProvider{}
	if cfg.Auth.Token != "" {
		authProvider = &extensions.StaticTokenProvider{Token: cfg.Auth.Token}
		slog.Info("Static token authentication enabled")
	}

	router := gin.Default()
	router.Use(otelgin.Middleware("daagent-orchestrator"))
	routes.SetupRoutes(router, orch, authProvider)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Starting the orchestrator server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down the orchestrator server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("orchestrator server failed: %v", err)
	}
}
