package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fyrsmithlabs/mindmapd/internal/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// maxStageExecutions caps a run. The longest legal run is research,
// generate, reflect, improve, reflect, finalize; anything past the cap means
// the transition table is wrong.
const maxStageExecutions = 16

const tracerName = "github.com/fyrsmithlabs/mindmapd/internal/workflow"

// StageStatus is the state reported in a StageProgress event.
type StageStatus string

const (
	StatusStarted   StageStatus = "started"
	StatusCompleted StageStatus = "completed"
	StatusFailed    StageStatus = "failed"
)

// StageProgress reports the start or end of a stage.
type StageProgress struct {
	RunID        string        `json:"run_id,omitempty"`
	Topic        string        `json:"topic"`
	Stage        Stage         `json:"stage"`
	Status       StageStatus   `json:"status"`
	Iteration    int           `json:"iteration"`
	QualityScore float64       `json:"quality_score"`
	Message      string        `json:"message,omitempty"`
	Duration     time.Duration `json:"duration_ns,omitempty"`
	Error        string        `json:"error,omitempty"`
}

// ProgressCallback receives progress events. It runs synchronously on the
// run's goroutine.
type ProgressCallback func(ctx context.Context, p StageProgress)

// StageFunc executes one stage against the current state.
type StageFunc func(ctx context.Context, s State) (Update, error)

// Engine executes the stage graph. Configure it before the first Run; Run
// itself keeps all per-run data on the stack and is safe for concurrent use.
type Engine struct {
	handlers map[Stage]StageFunc
	obs      *observer
}

// Option configures an Engine.
type Option func(*engineOptions)

type engineOptions struct {
	logger           *logging.Logger
	metrics          *Metrics
	tracer           trace.Tracer
	parallelResearch bool
}

// WithLogger sets the engine logger.
func WithLogger(l *logging.Logger) Option {
	return func(o *engineOptions) { o.logger = l }
}

// WithMetrics overrides the shared Prometheus metrics.
func WithMetrics(m *Metrics) Option {
	return func(o *engineOptions) { o.metrics = m }
}

// WithTracer sets the tracer used for run and stage spans.
func WithTracer(t trace.Tracer) Option {
	return func(o *engineOptions) { o.tracer = t }
}

// WithParallelResearch runs the research sub-calls concurrently.
func WithParallelResearch(enabled bool) Option {
	return func(o *engineOptions) { o.parallelResearch = enabled }
}

// stages holds what the stage functions share.
type stages struct {
	llm              Completer
	parallelResearch bool
	metrics          *Metrics
	logger           *logging.Logger
}

// NewEngine creates an engine whose stages call llm.
func NewEngine(llm Completer, opts ...Option) *Engine {
	o := engineOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.NewNop()
	}
	if o.metrics == nil {
		o.metrics = NewMetrics()
	}
	if o.tracer == nil {
		o.tracer = otel.Tracer(tracerName)
	}

	st := &stages{
		llm:              llm,
		parallelResearch: o.parallelResearch,
		metrics:          o.metrics,
		logger:           o.logger.Named("stages"),
	}
	e := &Engine{
		handlers: make(map[Stage]StageFunc),
		obs: &observer{
			metrics: o.metrics,
			tracer:  o.tracer,
			logger:  o.logger.Named("workflow"),
		},
	}
	e.RegisterHandler(StageResearch, st.research)
	e.RegisterHandler(StageGenerate, st.generate)
	e.RegisterHandler(StageReflect, st.reflect)
	e.RegisterHandler(StageImprove, st.improve)
	e.RegisterHandler(StageFinalize, st.finalize)
	return e
}

// RegisterHandler replaces the function run for stage.
func (e *Engine) RegisterHandler(stage Stage, fn StageFunc) {
	e.handlers[stage] = fn
}

// OnProgress adds a progress callback.
func (e *Engine) OnProgress(cb ProgressCallback) {
	e.obs.progress = append(e.obs.progress, cb)
}

// Run drives initial through the graph until the terminal stage. initial
// must carry a topic; other fields are expected to be zero. On failure the
// zero State is returned with the error: a stage failure as *StageError, a
// cancelled context as ctx.Err().
func (e *Engine) Run(ctx context.Context, initial State) (State, error) {
	if strings.TrimSpace(initial.Topic) == "" {
		return State{}, ErrEmptyTopic
	}

	ctx, done := e.obs.runStarted(ctx, initial)
	state, err := e.run(ctx, initial)
	done(state, err)
	return state, err
}

func (e *Engine) run(ctx context.Context, state State) (State, error) {
	stage := StageResearch
	for executed := 0; stage != StageEnd; executed++ {
		if executed >= maxStageExecutions {
			return State{}, fmt.Errorf("%w: %d stages without reaching %s", ErrStageLimit, executed, StageEnd)
		}
		if err := ctx.Err(); err != nil {
			return State{}, err
		}

		handler, ok := e.handlers[stage]
		if !ok {
			return State{}, &StageError{Stage: stage, Err: ErrNoHandler}
		}

		stageCtx, done := e.obs.stageStarted(ctx, stage, state)
		update, err := handler(stageCtx, state)
		done(update, err)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return State{}, ctxErr
			}
			return State{}, &StageError{Stage: stage, Err: err}
		}
		state = state.Apply(update)
		stage = nextStage(stage, state)
	}
	return state, nil
}
