// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package orchestrator assembles the chat orchestrator service.
//
// The Service owns every long-lived component: the session store, the
// generator client, the session manager, the turn orchestrator, the
// tracer provider, the metrics registry and the gin router.
//
// # Usage
//
//	cfg, err := config.Load("orchestrator.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	svc, err := orchestrator.New(cfg, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
//	defer stop()
//	err = svc.Run(ctx)
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/AleutianAI/AleutianChat/pkg/logging"
	"github.com/AleutianAI/AleutianChat/services/llm"
	"github.com/AleutianAI/AleutianChat/services/orchestrator/config"
	"github.com/AleutianAI/AleutianChat/services/orchestrator/middleware"
	"github.com/AleutianAI/AleutianChat/services/orchestrator/observability"
	"github.com/AleutianAI/AleutianChat/services/orchestrator/routes"
	"github.com/AleutianAI/AleutianChat/services/orchestrator/sessions"
	"github.com/AleutianAI/AleutianChat/services/orchestrator/store"
	"github.com/AleutianAI/AleutianChat/services/orchestrator/turn"
)

// shutdownTimeout bounds graceful HTTP shutdown and exporter flush.
const shutdownTimeout = 10 * time.Second

// =============================================================================
// Interface Definition
// =============================================================================

// Service is the orchestrator lifecycle.
//
// # Thread Safety
//
// Run must be called at most once. Router and Close are safe to call from
// any goroutine.
type Service interface {
	// Run serves HTTP on the configured port until ctx is canceled or the
	// listener fails, then shuts down gracefully and releases resources.
	Run(ctx context.Context) error

	// Router returns the configured gin engine, for tests.
	Router() *gin.Engine

	// Close releases the store, the tracer and sealed secrets. Run calls it
	// on exit; later calls return the first result.
	Close() error
}

// =============================================================================
// Implementation
// =============================================================================

type service struct {
	config        *config.Config
	logger        *logging.Logger
	router        *gin.Engine
	store         store.Store
	generator     llm.ChatClient
	manager       *sessions.Manager
	turns         *turn.Orchestrator
	registry      *prometheus.Registry
	metrics       *observability.ChatMetrics
	tracerCleanup func(context.Context)
	closeOnce     sync.Once
	closeErr      error
}

// New builds a Service from a validated configuration.
//
// # Description
//
// Components are created in dependency order. If any step fails, the
// ones already created are released before returning.
//
//  1. Tracer provider (skipped when telemetry.otel_endpoint is empty)
//  2. Metrics registry (skipped when telemetry.enable_metrics is false)
//  3. Session store
//  4. Generator client
//  5. Session manager and turn orchestrator
//  6. Router
//
// # Inputs
//
//   - cfg: Output of config.Load. Required.
//   - logger: Optional; logging.Default() when nil.
func New(cfg *config.Config, logger *logging.Logger) (Service, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &service{config: cfg, logger: logger}
	log := logger.Slog()

	cleanup, err := s.initTracer()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}
	s.tracerCleanup = cleanup

	if cfg.Telemetry.EnableMetrics {
		s.registry = prometheus.NewRegistry()
		s.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		s.metrics = observability.NewChatMetrics(s.registry)
	}

	s.store, err = store.Open(store.Options{
		Backend: store.Backend(cfg.Store.Backend),
		Path:    cfg.Store.Path,
		Logger:  log.With("component", "store"),
		Metrics: s.metrics,
	})
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}

	s.generator, err = llm.NewClient(llm.Config{
		Backend:     llm.Backend(cfg.LLM.Backend),
		Model:       cfg.LLM.Model,
		BaseURL:     cfg.LLM.BaseURL,
		HTTPTimeout: cfg.LLM.Timeout,
	})
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to initialize LLM client: %w", err)
	}
	log.Info("generator ready", "backend", cfg.LLM.Backend, "model", cfg.LLM.Model)

	s.manager = sessions.NewManager(s.store, log.With("component", "sessions"), s.metrics)
	s.turns = turn.New(s.manager, s.generator, turn.Config{
		Window:           cfg.Turn.Window,
		GeneratorTimeout: cfg.Turn.GeneratorTimeout,
		MaxRetries:       cfg.Turn.MaxRetries,
	}, log.With("component", "turn"), s.metrics)

	s.initRouter()
	return s, nil
}

// Run implements Service.
func (s *service) Run(ctx context.Context) error {
	defer s.Close()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("starting orchestrator server", "port", s.config.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("shutting down orchestrator server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// Router implements Service.
func (s *service) Router() *gin.Engine {
	return s.router
}

// Close implements Service.
func (s *service) Close() error {
	s.closeOnce.Do(func() {
		if s.store != nil {
			if err := s.store.Close(); err != nil {
				s.closeErr = fmt.Errorf("close store: %w", err)
			}
		}
		if s.tracerCleanup != nil {
			s.tracerCleanup(context.Background())
		}
		llm.Purge()
	})
	return s.closeErr
}

// =============================================================================
// Initialization Helpers
// =============================================================================

// initTracer installs the global tracer provider.
//
// telemetry.otel_endpoint selects the exporter: "" disables tracing,
// "stdout" pretty-prints spans, anything else is an OTLP gRPC collector
// address.
func (s *service) initTracer() (func(context.Context), error) {
	endpoint := s.config.Telemetry.OTelEndpoint
	if endpoint == "" {
		return nil, nil
	}
	ctx := context.Background()

	var (
		exporter sdktrace.SpanExporter
		err      error
	)
	if endpoint == "stdout" {
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout exporter: %w", err)
		}
	} else {
		conn, connErr := grpc.NewClient(endpoint,
			grpc.WithTransportCredentials(insecure.NewCredentials()))
		if connErr != nil {
			return nil, fmt.Errorf("failed to create gRPC connection: %w", connErr)
		}
		exporter, err = otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
		if err != nil {
			return nil, fmt.Errorf("failed to create trace exporter: %w", err)
		}
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String(s.config.Telemetry.ServiceName)))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter))

	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))
	s.logger.Info("tracing enabled", "endpoint", endpoint)

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
		defer cancel()
		if err := traceProvider.Shutdown(ctx); err != nil {
			s.logger.Error("failed to shutdown tracer provider", "error", err)
		}
	}, nil
}

func (s *service) initRouter() {
	gin.SetMode(s.config.GinMode)
	s.router = gin.New()
	s.router.Use(gin.Recovery())
	s.router.Use(middleware.RequestID())
	s.router.Use(otelgin.Middleware(s.config.Telemetry.ServiceName))
	s.router.Use(middleware.RequestMetrics(s.metrics))

	if s.registry != nil {
		s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))
	}
	routes.SetupRoutes(s.router, s.manager, s.turns)
}

// Compile-time interface check.
var _ Service = (*service)(nil)
