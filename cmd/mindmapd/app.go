package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/mindmapd/internal/config"
	"github.com/fyrsmithlabs/mindmapd/internal/events"
	"github.com/fyrsmithlabs/mindmapd/internal/llm"
	"github.com/fyrsmithlabs/mindmapd/internal/logging"
	"github.com/fyrsmithlabs/mindmapd/internal/store"
	"github.com/fyrsmithlabs/mindmapd/internal/studyaids"
	"github.com/fyrsmithlabs/mindmapd/internal/telemetry"
	"github.com/fyrsmithlabs/mindmapd/internal/topics"
	"github.com/fyrsmithlabs/mindmapd/internal/workflow"
	"go.opentelemetry.io/otel/log/global"
	"go.uber.org/zap"
)

const tracerName = "github.com/fyrsmithlabs/mindmapd"

// app holds the components shared by the serve and mcp commands.
type app struct {
	cfg       *config.Config
	logger    *logging.Logger
	telemetry *telemetry.Telemetry
	completer llm.Completer
	generator *workflow.Generator
	catalog   *topics.Catalog
	refs      *studyaids.References
	aids      *studyaids.Service
	events    *events.Publisher
}

// newApp loads configuration and wires the workflow. stdio routes console
// logs to stderr.
func newApp(ctx context.Context, path string, stdio bool) (*app, error) {
	cfg, err := config.LoadWithFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := initLogger(cfg, stdio)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	tel, err := telemetry.New(ctx, telemetry.FromSettings(cfg.Telemetry, version))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	if h := tel.Health(); !h.Healthy || h.Degraded {
		logger.Warn(ctx, "telemetry degraded", zap.String("error", h.Error))
	}

	a := &app{
		cfg:       cfg,
		logger:    logger,
		telemetry: tel,
	}

	a.completer = newCompleter(ctx, cfg.LLM, logger)

	a.catalog, err = topics.Default()
	if err != nil {
		return nil, fmt.Errorf("failed to load topic catalog: %w", err)
	}

	engine := workflow.NewEngine(a.completer,
		workflow.WithLogger(logger),
		workflow.WithMetrics(workflow.NewMetrics()),
		workflow.WithTracer(tel.Tracer(tracerName)),
		workflow.WithParallelResearch(cfg.Workflow.ParallelResearch),
	)
	if cfg.Events.NATSURL != "" {
		pub, err := events.Connect(cfg.Events.NATSURL, cfg.Events.SubjectPrefix, logger.Named("events"))
		if err != nil {
			// Progress events are optional; generation works without them.
			logger.Warn(ctx, "progress events disabled", zap.Error(err))
		} else {
			a.events = pub
			engine.OnProgress(pub.Callback())
		}
	}
	a.generator = workflow.NewGenerator(engine)

	a.refs = studyaids.LoadReferences(ctx, cfg.MCQ.ReferenceFile, cfg.MCQ.ReferenceLimit, logger.Named("references"))
	a.aids = studyaids.New(a.completer,
		studyaids.WithReferences(a.refs),
		studyaids.WithLogger(logger.Named("studyaids")),
	)

	logger.Info(ctx, "mindmapd initialized",
		zap.String("version", version),
		zap.String("llm_model", cfg.LLM.Model),
		zap.Bool("parallel_research", cfg.Workflow.ParallelResearch),
		zap.Bool("events", a.events != nil),
		zap.Int("mcq_references", a.refs.Len()),
	)
	return a, nil
}

// initLogger builds the service logger from the logging settings.
func initLogger(cfg *config.Config, stdio bool) (*logging.Logger, error) {
	logCfg, err := logging.FromSettings(cfg.Logging)
	if err != nil {
		return nil, err
	}
	logCfg.Output.Stderr = stdio
	logCfg.Fields["version"] = version
	return logging.NewLogger(logCfg, global.GetLoggerProvider())
}

// newCompleter returns the configured LLM client. Without an API key the
// service still starts; generation requests then fail with
// llm.ErrUnavailable.
func newCompleter(ctx context.Context, cfg config.LLMConfig, logger *logging.Logger) llm.Completer {
	if !cfg.APIKey.IsSet() {
		logger.Warn(ctx, "no LLM API key configured; generation endpoints will fail",
			zap.String("hint", "set OPENAI_API_KEY or MINDMAPD_LLM_API_KEY"))
		return llm.Unavailable{}
	}
	c, err := llm.New(llm.FromSettings(cfg), logger.Named("llm"))
	if err != nil {
		logger.Error(ctx, "failed to create LLM client; generation endpoints will fail", zap.Error(err))
		return llm.Unavailable{}
	}
	return c
}

// newGenerationStore opens the configured saved-generation backend.
func newGenerationStore(ctx context.Context, cfg config.StorageConfig) (store.GenerationStore, error) {
	switch cfg.Backend {
	case "redis":
		return store.NewRedisGenerationStore(ctx, cfg.RedisAddr, cfg.RedisPassword.Value(), cfg.RedisDB,
			store.WithPrefix(cfg.RedisPrefix))
	case "file", "":
		return store.NewFileGenerationStore(cfg.DataDir)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// close releases everything newApp opened.
func (a *app) close(ctx context.Context) error {
	var errs []error
	if a.refs != nil {
		a.refs.Stop()
	}
	if a.events != nil {
		if err := a.events.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close events: %w", err))
		}
	}
	if err := a.telemetry.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown telemetry: %w", err))
	}
	_ = a.logger.Sync()
	return errors.Join(errs...)
}
