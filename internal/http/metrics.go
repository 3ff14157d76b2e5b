package http

import (
	"context"
	"errors"
	"time"

	"github.com/fyrsmithlabs/mindmapd/internal/logging"
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const httpInstrumentationName = "github.com/fyrsmithlabs/mindmapd/internal/http"

// HTTPMetrics records per-route request metrics. Any instrument that
// failed to register is left nil and skipped.
type HTTPMetrics struct {
	meter          metric.Meter
	logger         *logging.Logger
	requestsTotal  metric.Int64Counter
	requestDur     metric.Float64Histogram
	responseSize   metric.Int64Histogram
	activeRequests metric.Int64UpDownCounter
}

// NewHTTPMetrics creates a new HTTPMetrics instance on the global meter
// provider.
func NewHTTPMetrics(logger *logging.Logger) *HTTPMetrics {
	return newHTTPMetrics(otel.Meter(httpInstrumentationName), logger)
}

func newHTTPMetrics(meter metric.Meter, logger *logging.Logger) *HTTPMetrics {
	if logger == nil {
		logger = logging.NewNop()
	}
	m := &HTTPMetrics{
		meter:  meter,
		logger: logger,
	}
	m.init()
	return m
}

func (m *HTTPMetrics) init() {
	var errs []error
	var err error

	m.requestsTotal, err = m.meter.Int64Counter("mindmapd.http.requests_total",
		metric.WithDescription("Requests served, by method, route and status"),
		metric.WithUnit("{request}"))
	errs = append(errs, err)

	// POST /api/generate waits on the whole workflow.
	m.requestDur, err = m.meter.Float64Histogram("mindmapd.http.request_duration_seconds",
		metric.WithDescription("Request latency, by method, route and status"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.025, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120))
	errs = append(errs, err)

	// Mind map JSON and news pages are the large bodies.
	m.responseSize, err = m.meter.Int64Histogram("mindmapd.http.response_size_bytes",
		metric.WithDescription("Response body size, by method, route and status"),
		metric.WithUnit("By"),
		metric.WithExplicitBucketBoundaries(100, 500, 1000, 5000, 10000, 50000, 100000, 500000))
	errs = append(errs, err)

	m.activeRequests, err = m.meter.Int64UpDownCounter("mindmapd.http.active_requests",
		metric.WithDescription("Requests in flight"),
		metric.WithUnit("{request}"))
	errs = append(errs, err)

	if err := errors.Join(errs...); err != nil {
		m.logger.Warn(context.Background(), "http metrics partially disabled", zap.Error(err))
	}
}

// MetricsMiddleware returns an Echo middleware that records HTTP metrics.
// It must run outside the middleware that renders errors so the recorded
// status matches the response.
func (m *HTTPMetrics) MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			ctx := c.Request().Context()

			if m.activeRequests != nil {
				m.activeRequests.Add(ctx, 1)
			}

			err := next(c)

			attrs := metric.WithAttributes(
				attribute.String("method", c.Request().Method),
				attribute.String("endpoint", normalizePath(c.Path())),
				attribute.Int("status", c.Response().Status),
			)

			if m.requestsTotal != nil {
				m.requestsTotal.Add(ctx, 1, attrs)
			}
			if m.requestDur != nil {
				m.requestDur.Record(ctx, time.Since(start).Seconds(), attrs)
			}
			if m.responseSize != nil {
				m.responseSize.Record(ctx, c.Response().Size, attrs)
			}
			if m.activeRequests != nil {
				m.activeRequests.Add(ctx, -1)
			}

			return err
		}
	}
}

// normalizePath returns the route pattern used as the endpoint label.
// c.Path() is already the registered pattern (/api/saved-generations/:id),
// so ids never reach the label. Unmatched requests share one label.
func normalizePath(path string) string {
	if path == "" {
		return "unmatched"
	}
	return path
}
