package mcp

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/fyrsmithlabs/mindmapd/internal/llm"
	"github.com/fyrsmithlabs/mindmapd/internal/logging"
	"github.com/fyrsmithlabs/mindmapd/internal/studyaids"
	"github.com/fyrsmithlabs/mindmapd/internal/workflow"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/fyrsmithlabs/mindmapd/internal/mcp"

// Metrics holds tool invocation metrics.
type Metrics struct {
	meter          metric.Meter
	logger         *logging.Logger
	invocations    metric.Int64Counter
	duration       metric.Float64Histogram
	errors         metric.Int64Counter
	activeRequests metric.Int64UpDownCounter
}

// NewMetrics creates Metrics on the global meter provider.
func NewMetrics(logger *logging.Logger) *Metrics {
	return newMetrics(otel.Meter(instrumentationName), logger)
}

func newMetrics(meter metric.Meter, logger *logging.Logger) *Metrics {
	if logger == nil {
		logger = logging.NewNop()
	}
	m := &Metrics{meter: meter, logger: logger}
	m.init()
	return m
}

func (m *Metrics) init() {
	var errs []error
	keep := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	var err error
	m.invocations, err = m.meter.Int64Counter("mindmapd.mcp.tool.invocations_total",
		metric.WithDescription("MCP tool calls received"),
		metric.WithUnit("{invocation}"))
	keep(err)

	// A generate_mind_map call spans several LLM round trips.
	m.duration, err = m.meter.Float64Histogram("mindmapd.mcp.tool.duration_seconds",
		metric.WithDescription("Wall time of MCP tool calls"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300))
	keep(err)

	m.errors, err = m.meter.Int64Counter("mindmapd.mcp.tool.errors_total",
		metric.WithDescription("MCP tool calls that returned an error, by reason"),
		metric.WithUnit("{error}"))
	keep(err)

	m.activeRequests, err = m.meter.Int64UpDownCounter("mindmapd.mcp.tool.active_requests",
		metric.WithDescription("MCP tool calls in flight"),
		metric.WithUnit("{request}"))
	keep(err)

	if len(errs) > 0 {
		m.logger.Warn(context.Background(), "mcp metrics partially disabled", zap.Error(errors.Join(errs...)))
	}
}

// track marks a tool invocation as active and returns a func that records
// its outcome.
func (m *Metrics) track(ctx context.Context, toolName string) func(err error) {
	start := time.Now()
	attrs := metric.WithAttributes(attribute.String("tool", toolName))
	if m.activeRequests != nil {
		m.activeRequests.Add(ctx, 1, attrs)
	}
	return func(err error) {
		if m.activeRequests != nil {
			m.activeRequests.Add(ctx, -1, attrs)
		}
		m.RecordInvocation(ctx, toolName, time.Since(start), err)
	}
}

// RecordInvocation records a tool invocation.
func (m *Metrics) RecordInvocation(ctx context.Context, toolName string, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("tool", toolName),
	}

	if m.invocations != nil {
		m.invocations.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	if m.duration != nil {
		m.duration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	}
	if err != nil && m.errors != nil {
		errorAttrs := append(attrs, attribute.String("reason", categorizeError(err)))
		m.errors.Add(ctx, 1, metric.WithAttributes(errorAttrs...))
	}
}

// categorizeError maps an error to a low-cardinality reason label.
func categorizeError(err error) string {
	if err == nil {
		return ""
	}

	var stageErr *workflow.StageError
	switch {
	case errors.Is(err, workflow.ErrEmptyTopic), errors.Is(err, studyaids.ErrEmptyTopic):
		return "validation_error"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, llm.ErrTimeout):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, llm.ErrUnavailable), errors.Is(err, llm.ErrMissingAPIKey):
		return "llm_error"
	case errors.As(err, &stageErr):
		return "stage_error"
	}

	// Errors crossing the langchaingo boundary arrive as plain text.
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timed out"), strings.Contains(msg, "timeout"):
		return "timeout"
	case strings.Contains(msg, "invalid"), strings.Contains(msg, "required"):
		return "validation_error"
	case strings.HasPrefix(msg, "llm:"), strings.Contains(msg, "openai"):
		return "llm_error"
	default:
		return "internal_error"
	}
}
