package workflow

import (
	"context"
	"time"

	"github.com/fyrsmithlabs/mindmapd/internal/logging"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// observer reports a run to spans, metrics, logs and progress callbacks.
// It never changes the outcome of a run.
type observer struct {
	progress []ProgressCallback
	metrics  *Metrics
	tracer   trace.Tracer
	logger   *logging.Logger
}

// runStarted opens the run span. The returned func closes it with the
// run's outcome.
func (o *observer) runStarted(ctx context.Context, initial State) (context.Context, func(State, error)) {
	ctx, span := o.tracer.Start(ctx, "workflow.run",
		trace.WithAttributes(attribute.String("mindmap.topic", initial.Topic)))

	return ctx, func(state State, err error) {
		defer span.End()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			o.metrics.RunsTotal.WithLabelValues("failed").Inc()
			o.logger.Error(ctx, "workflow failed", zap.String("topic", initial.Topic), zap.Error(err))
			return
		}
		span.SetAttributes(
			attribute.Float64("mindmap.quality_score", state.QualityScore),
			attribute.Int("mindmap.iterations", state.IterationCount),
		)
		o.metrics.RunsTotal.WithLabelValues("completed").Inc()
		o.metrics.ReflectIterations.Observe(float64(state.IterationCount))
		o.logger.Info(ctx, "workflow completed",
			zap.String("topic", state.Topic),
			zap.Float64("quality_score", state.QualityScore),
			zap.Int("iterations", state.IterationCount),
			zap.Int("branches", len(state.PrimaryBranches)))
	}
}

// stageStarted opens a stage span and reports the start. The returned
// context carries the span; the returned func reports the stage outcome.
func (o *observer) stageStarted(ctx context.Context, stage Stage, s State) (context.Context, func(Update, error)) {
	ctx, span := o.tracer.Start(ctx, "workflow."+string(stage),
		trace.WithAttributes(
			attribute.String("mindmap.stage", string(stage)),
			attribute.Int("mindmap.iteration", s.IterationCount),
		))
	o.report(ctx, StageProgress{
		Topic:        s.Topic,
		Stage:        stage,
		Status:       StatusStarted,
		Iteration:    s.IterationCount,
		QualityScore: s.QualityScore,
	})
	o.logger.Debug(ctx, "stage started", zap.String("stage", string(stage)), zap.Int("iteration", s.IterationCount))
	start := time.Now()

	return ctx, func(update Update, err error) {
		defer span.End()
		elapsed := time.Since(start)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			o.metrics.observeStage(stage, StatusFailed, elapsed)
			o.report(ctx, StageProgress{
				Topic:     s.Topic,
				Stage:     stage,
				Status:    StatusFailed,
				Iteration: s.IterationCount,
				Duration:  elapsed,
				Error:     err.Error(),
			})
			return
		}

		next := s.Apply(update)
		o.metrics.observeStage(stage, StatusCompleted, elapsed)
		p := StageProgress{
			Topic:        s.Topic,
			Stage:        stage,
			Status:       StatusCompleted,
			Iteration:    next.IterationCount,
			QualityScore: next.QualityScore,
			Duration:     elapsed,
		}
		if n := len(update.Messages); n > 0 {
			p.Message = update.Messages[n-1]
		}
		o.report(ctx, p)
		o.logger.Info(ctx, "stage completed",
			zap.String("stage", string(stage)),
			zap.Duration("duration", elapsed),
			zap.String("message", p.Message))
	}
}

func (o *observer) report(ctx context.Context, p StageProgress) {
	p.RunID = logging.RunIDFromContext(ctx)
	for _, cb := range o.progress {
		cb(ctx, p)
	}
}
