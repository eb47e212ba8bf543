// Copyright (C) 2025 AI-Impact UK (engineering@aiimpact.uk)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package analysis provides the compliance analysis service for Governor.
//
// This package contains the main Service type that coordinates all
// components: HTTP routing, the policy clause corpus, the deterministic
// rule engine, the generative flag client, and observability
// infrastructure.
//
// # Usage
//
//	cfg := analysis.Config{Port: 8000}
//	svc, err := analysis.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	svc.Run()
package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/aiimpact/governor/services/analysis/handlers"
	"github.com/aiimpact/governor/services/analysis/observability"
	"github.com/aiimpact/governor/services/analysis/routes"
	"github.com/aiimpact/governor/services/corpus"
	"github.com/aiimpact/governor/services/llm"
	"github.com/aiimpact/governor/services/rules"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Service defines the contract for the analysis service.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use. Run() blocks and should
// only be called once per instance.
type Service interface {
	// Run starts the HTTP server and blocks until shutdown or error.
	Run() error

	// Router returns the underlying Gin engine for testing.
	Router() *gin.Engine
}

// =============================================================================
// Configuration
// =============================================================================

// Config holds analysis service configuration options.
//
// All fields are optional; New() applies defaults and reads the documented
// environment variables for anything left zero-valued.
type Config struct {
	// Port is the HTTP server port. Default: 8000
	Port int

	// LLMBackend specifies the inference provider.
	// Valid values: "ollama", "openai". Default: "ollama"
	LLMBackend string

	// CorpusPath is the policy corpus JSON file. If empty, POLICY_CORPUS_PATH
	// is consulted, then the embedded default corpus.
	CorpusPath string

	// RulesPath is the legacy rules YAML file. If empty, POLICY_RULES_PATH
	// is consulted, then the embedded default ruleset.
	RulesPath string

	// UseLLM enables the generative half of the pipeline.
	// Default: true unless USE_LLM=false.
	UseLLM *bool

	// WatchCorpus enables hot reload of the corpus file on change.
	// Only meaningful when CorpusPath is set. Default: true
	WatchCorpus *bool

	// OTelEndpoint is the OpenTelemetry collector endpoint.
	// Default: "governor-otel-collector:4317"
	OTelEndpoint string

	// EnableMetrics enables Prometheus metrics endpoint.
	// Default: true
	EnableMetrics bool

	// GinMode sets the Gin framework mode ("debug", "release", "test").
	// Default: uses GIN_MODE env var or "debug".
	GinMode string
}

// =============================================================================
// Implementation
// =============================================================================

// service implements Service for production use.
//
// Thread-safe after construction: all fields are read-only after New()
// returns except the corpus store, which swaps snapshots atomically.
type service struct {
	config        Config
	router        *gin.Engine
	store         *corpus.Store
	watcher       *corpus.Watcher
	watcherCancel context.CancelFunc
	ruleEngine    *rules.Engine
	flagGen       *llm.FlagGenerator
	tracerCleanup func(context.Context)
}

// New creates a new analysis Service with the given configuration.
//
// # Description
//
// New initializes all components in dependency order:
//  1. Applies default configuration for missing values
//  2. Initializes OpenTelemetry tracing
//  3. Initializes Prometheus metrics
//  4. Loads the policy corpus and starts the file watcher
//  5. Loads the legacy rule set
//  6. Creates the inference client based on backend type (unless disabled)
//  7. Sets up HTTP routes
//
// # Outputs
//
//   - Service: Ready-to-run analysis service
//   - error: Non-nil if initialization fails
//
// # Limitations
//
//   - Corpus and rule load failures degrade to empty sets, not errors;
//     only tracer and inference client setup are fatal.
func New(cfg Config) (Service, error) {
	s := &service{
		config: applyConfigDefaults(cfg),
	}

	cleanup, err := s.initTracer()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}
	s.tracerCleanup = cleanup

	if s.config.EnableMetrics {
		observability.InitMetrics()
		slog.Info("Initialized Prometheus metrics for analysis pipeline")
	}

	s.initCorpus()
	s.ruleEngine = rules.NewEngine(s.config.RulesPath)

	if err := s.initFlagGenerator(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize inference client: %w", err)
	}

	s.initRouter()

	return s, nil
}

// =============================================================================
// Service Interface Methods
// =============================================================================

// Run starts the HTTP server and blocks until shutdown or error.
// Cleanup is automatic on return.
func (s *service) Run() error {
	defer s.cleanup()

	addr := fmt.Sprintf(":%d", s.config.Port)
	slog.Info("Starting analysis server", "port", s.config.Port)

	return s.router.Run(addr)
}

// Router returns the underlying Gin engine for testing.
func (s *service) Router() *gin.Engine {
	return s.router
}

// =============================================================================
// Private Initialization Methods
// =============================================================================

// applyConfigDefaults fills in missing configuration values, consulting the
// environment for anything the caller left unset.
func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = 8000
	}
	if cfg.LLMBackend == "" {
		cfg.LLMBackend = envOr("LLM_BACKEND_TYPE", "ollama")
	}
	if cfg.CorpusPath == "" {
		cfg.CorpusPath = os.Getenv("POLICY_CORPUS_PATH")
	}
	if cfg.RulesPath == "" {
		cfg.RulesPath = os.Getenv("POLICY_RULES_PATH")
	}
	if cfg.UseLLM == nil {
		v := !strings.EqualFold(envOr("USE_LLM", "true"), "false")
		cfg.UseLLM = &v
	}
	if cfg.WatchCorpus == nil {
		v := true
		cfg.WatchCorpus = &v
	}
	if cfg.OTelEndpoint == "" {
		cfg.OTelEndpoint = envOr("OTEL_EXPORTER_OTLP_ENDPOINT", "governor-otel-collector:4317")
	}
	cfg.EnableMetrics = true
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// initTracer sets up the OTLP trace exporter to send spans to the configured
// collector. Uses an insecure gRPC connection, appropriate for internal
// networks.
func (s *service) initTracer() (func(context.Context), error) {
	ctx := context.Background()

	conn, err := grpc.NewClient(s.config.OTelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("analysis-service")))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))

	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	cleanup := func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}

	return cleanup, nil
}

// initCorpus loads the policy corpus and, when a file path is configured,
// starts the hot-reload watcher.
func (s *service) initCorpus() {
	s.store = corpus.NewStore(s.config.CorpusPath)
	s.updateCorpusGauge()

	if !*s.config.WatchCorpus || s.config.CorpusPath == "" {
		return
	}
	w, err := corpus.NewWatcher(s.store)
	if err != nil {
		slog.Warn("Corpus watcher unavailable, hot reload disabled", "error", err)
		return
	}
	if w == nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.watcher = w
	s.watcherCancel = cancel
	go w.Start(ctx)
	slog.Info("Watching policy corpus for changes", "path", s.config.CorpusPath)
}

func (s *service) updateCorpusGauge() {
	if observability.DefaultMetrics == nil {
		return
	}
	observability.DefaultMetrics.CorpusClauses.Set(float64(len(s.store.Current().Clauses)))
}

// initFlagGenerator creates the inference client for the configured backend
// and wraps it in the flag generator. When generation is disabled via
// config, the service runs rules-plus-synthesis only.
func (s *service) initFlagGenerator() error {
	if !*s.config.UseLLM {
		slog.Info("Generative flag analysis disabled, running rules only")
		return nil
	}

	var (
		client llm.LLMClient
		err    error
	)
	switch s.config.LLMBackend {
	case "openai":
		client, err = llm.NewOpenAIClient()
		slog.Info("Using OpenAI inference backend")
	case "ollama":
		client, err = llm.NewOllamaClient()
		slog.Info("Using Ollama inference backend")
	default:
		slog.Warn("Unknown inference backend, defaulting to ollama", "backend", s.config.LLMBackend)
		client, err = llm.NewOllamaClient()
	}
	if err != nil {
		return err
	}

	s.flagGen = llm.NewFlagGenerator(client)
	return nil
}

// initRouter creates the Gin engine, applies middleware, and registers all
// routes.
func (s *service) initRouter() {
	if s.config.GinMode != "" {
		gin.SetMode(s.config.GinMode)
	}
	s.router = gin.Default()
	s.router.Use(otelgin.Middleware("analysis-service"))

	routes.SetupRoutes(s.router, &handlers.Deps{
		Store:      s.store,
		RuleEngine: s.ruleEngine,
		FlagGen:    s.flagGen,
	})
}

// cleanup releases all resources held by the service.
func (s *service) cleanup() {
	if s.watcherCancel != nil {
		s.watcherCancel()
	}
	if s.watcher != nil {
		if err := s.watcher.Stop(); err != nil {
			slog.Warn("Corpus watcher stop error", "error", err)
		}
	}
	if s.tracerCleanup != nil {
		s.tracerCleanup(context.Background())
	}
}
