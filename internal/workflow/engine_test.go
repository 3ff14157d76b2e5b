package workflow

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/fyrsmithlabs/mindmapd/internal/llm"
	"github.com/fyrsmithlabs/mindmapd/internal/logging"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap/zapcore"
)

// mockCompleter is a testify mock of Completer.
type mockCompleter struct {
	mock.Mock
}

func (m *mockCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

func promptWith(task string) interface{} {
	return mock.MatchedBy(func(p string) bool { return strings.HasPrefix(p, task) })
}

func countPrefix(calls []string, task string) int {
	n := 0
	for _, c := range calls {
		if strings.HasPrefix(c, task) {
			n++
		}
	}
	return n
}

func stagesOf(events []StageProgress, status StageStatus) []Stage {
	var out []Stage
	for _, e := range events {
		if e.Status == status {
			out = append(out, e.Stage)
		}
	}
	return out
}

type progressRecorder struct {
	mu     sync.Mutex
	events []StageProgress
}

func (r *progressRecorder) record(_ context.Context, p StageProgress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, p)
}

func TestEngine_HighScoreSkipsImprove(t *testing.T) {
	completer := NewFixtureCompleter(FixtureReflect(8.0))
	engine := NewEngine(completer)
	rec := &progressRecorder{}
	engine.OnProgress(rec.record)

	state, err := engine.Run(context.Background(), State{Topic: "Fundamental Rights"})
	require.NoError(t, err)

	assert.Equal(t, 1, state.IterationCount)
	assert.Equal(t, 8.0, state.QualityScore)
	assert.NotEmpty(t, state.PrimaryBranches)
	assert.Equal(t, FixtureDefinition, state.Definition)
	assert.Equal(t, "GS Paper II", state.SyllabusMapping["mains"])
	assert.Equal(t, []Stage{StageResearch, StageGenerate, StageReflect, StageFinalize}, stagesOf(rec.events, StatusCompleted))
	assert.Equal(t, []string{
		"Researched UPSC material for 'Fundamental Rights'",
		"Generated 2 UPSC-focused branches",
		"UPSC relevance score: 8.0/10",
		"UPSC mind map for 'Fundamental Rights' ready with score: 8.0/10",
	}, state.Messages)
	assert.Zero(t, countPrefix(completer.Calls(), taskImprove))
}

func TestEngine_LowScoreImprovesOnce(t *testing.T) {
	completer := NewFixtureCompleter(FixtureReflect(3.0))
	state, err := NewEngine(completer).Run(context.Background(), State{Topic: "Federalism"})
	require.NoError(t, err)

	// Reflect bumps the iteration count before Decide runs, so the second
	// reflect reaches the cap of 2 and finalizes whatever the score.
	calls := completer.Calls()
	assert.Equal(t, 2, countPrefix(calls, taskReflect))
	assert.Equal(t, 1, countPrefix(calls, taskImprove))
	assert.Equal(t, 2, state.IterationCount)
	assert.Equal(t, 3.0, state.QualityScore)

	improved, _ := parseBranches(FixtureImproved)
	assert.Equal(t, improved, state.PrimaryBranches)
	assert.Equal(t, []string{
		"Researched UPSC material for 'Federalism'",
		"Generated 2 UPSC-focused branches",
		"UPSC relevance score: 3.0/10",
		"Enhanced UPSC relevance (iteration 1)",
		"UPSC relevance score: 3.0/10",
		"UPSC mind map for 'Federalism' ready with score: 3.0/10",
	}, state.Messages)
}

func TestEngine_ImproveThenPass(t *testing.T) {
	completer := NewFixtureCompleter(FixtureReflect(5.5), FixtureReflect(8.5))
	state, err := NewEngine(completer).Run(context.Background(), State{Topic: "Panchayati Raj"})
	require.NoError(t, err)

	assert.Equal(t, 2, state.IterationCount)
	assert.Equal(t, 8.5, state.QualityScore)
	assert.Equal(t, 1, countPrefix(completer.Calls(), taskImprove))
	assert.Len(t, state.Messages, 6)
}

func TestEngine_ReflectParseFailureFinalizes(t *testing.T) {
	completer := NewFixtureCompleter("I would rate this quite highly overall.")
	state, err := NewEngine(completer).Run(context.Background(), State{Topic: "Money Bill"})
	require.NoError(t, err)

	assert.Equal(t, defaultReflectScore, state.QualityScore)
	assert.Equal(t, []string{defaultReflectFeedback}, state.Feedback)
	assert.Equal(t, 1, state.IterationCount)
	assert.Equal(t, RouteFinalize, Decide(State{QualityScore: state.QualityScore, IterationCount: 0}))
	assert.Zero(t, countPrefix(completer.Calls(), taskImprove))
	assert.Contains(t, state.Messages, "UPSC relevance score: 7.0/10")
}

func TestEngine_ImproveParseFailureKeepsBranches(t *testing.T) {
	completer := llm.NewScripted("").
		On(taskImprove, "Sorry, I cannot produce JSON right now.").
		On(taskGenerate, FixtureBranches).
		On(taskReflect, FixtureReflect(4.0)).
		On(taskSyllabus, FixtureSyllabus)
	engine := NewEngine(completer)

	var seen [][]Branch
	improve := engine.handlers[StageImprove]
	engine.RegisterHandler(StageImprove, func(ctx context.Context, s State) (Update, error) {
		seen = append(seen, s.PrimaryBranches)
		return improve(ctx, s)
	})

	state, err := engine.Run(context.Background(), State{Topic: "Emergency Provisions"})
	require.NoError(t, err)

	generated, _ := parseBranches(FixtureBranches)
	require.Len(t, seen, 1)
	assert.Equal(t, generated, seen[0])
	assert.Equal(t, seen[0], state.PrimaryBranches)
	assert.Equal(t, 1, countPrefix(completer.Calls(), taskImprove))
	assert.Equal(t, 2, state.IterationCount)
	assert.Contains(t, state.Messages, "UPSC enhancement completed")
	assert.NotContains(t, strings.Join(state.Messages, "\n"), "Enhanced UPSC relevance")
}

func TestEngine_GenerateFallback(t *testing.T) {
	before := testutil.ToFloat64(NewMetrics().ParseFallbacks.WithLabelValues(string(StageGenerate), "branches"))

	completer := llm.NewScripted("").On(taskGenerate, "not json").On(taskReflect, FixtureReflect(9))
	state, err := NewEngine(completer).Run(context.Background(), State{Topic: "Preamble"})
	require.NoError(t, err)

	assert.Equal(t, defaultBranches(), state.PrimaryBranches)
	assert.Contains(t, state.Messages, "Generated 2 UPSC-focused branches")
	assert.Equal(t, defaultSyllabusMapping(), state.SyllabusMapping)

	after := testutil.ToFloat64(NewMetrics().ParseFallbacks.WithLabelValues(string(StageGenerate), "branches"))
	assert.Equal(t, before+1, after)
}

func TestEngine_BoundedListFields(t *testing.T) {
	manyConcepts := strings.Repeat("concept, ", 30)
	manyLines := strings.Repeat("line\n", 30)
	completer := llm.NewScripted("").
		On(taskKeyConcepts, manyConcepts).
		On(taskPreviousYear, manyLines).
		On(taskCurrentAffairs, manyLines).
		On(taskGenerate, FixtureBranches).
		On(taskReflect, FixtureReflect(9))

	state, err := NewEngine(completer).Run(context.Background(), State{Topic: "Directive Principles"})
	require.NoError(t, err)

	assert.Len(t, state.KeyConcepts, 8)
	assert.Len(t, state.PreviousYearQuestions, 4)
	assert.Len(t, state.CurrentAffairsLinks, 4)
}

func TestEngine_EmptyTopic(t *testing.T) {
	_, err := NewEngine(NewFixtureCompleter()).Run(context.Background(), State{Topic: "   "})
	assert.ErrorIs(t, err, ErrEmptyTopic)
}

func TestEngine_LLMFailurePropagates(t *testing.T) {
	boom := errors.New("quota exceeded")
	m := &mockCompleter{}
	m.On("Complete", mock.Anything, promptWith(taskDefinition)).Return(FixtureDefinition, nil)
	m.On("Complete", mock.Anything, promptWith(taskSyllabus)).Return(FixtureSyllabus, nil)
	m.On("Complete", mock.Anything, promptWith(taskKeyConcepts)).Return(FixtureConcepts, nil)
	m.On("Complete", mock.Anything, promptWith(taskPreviousYear)).Return(FixturePYQs, nil)
	m.On("Complete", mock.Anything, promptWith(taskCurrentAffairs)).Return(FixtureAffairs, nil)
	m.On("Complete", mock.Anything, promptWith(taskGenerate)).Return("", boom)

	tl := logging.NewTestLogger()
	engine := NewEngine(m, WithLogger(tl.Logger))
	rec := &progressRecorder{}
	engine.OnProgress(rec.record)

	state, err := engine.Run(context.Background(), State{Topic: "Fundamental Duties"})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageGenerate, stageErr.Stage)
	assert.Equal(t, State{}, state, "no partial state on failure")
	assert.Equal(t, []Stage{StageGenerate}, stagesOf(rec.events, StatusFailed))

	m.AssertNotCalled(t, "Complete", mock.Anything, promptWith(taskReflect))
	m.AssertExpectations(t)
	tl.AssertLogged(t, zapcore.ErrorLevel, "workflow failed")
}

func TestEngine_ResearchFailureNamesSubCall(t *testing.T) {
	failing := llm.NewScripted("").OnError(taskKeyConcepts, errors.New("connection reset"))

	_, err := NewEngine(failing).Run(context.Background(), State{Topic: "Writs"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "research stage: key_concepts: connection reset")
}

func TestEngine_ContextCancelledBetweenStages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	engine := NewEngine(NewFixtureCompleter())
	engine.OnProgress(func(_ context.Context, p StageProgress) {
		if p.Stage == StageGenerate && p.Status == StatusCompleted {
			cancel()
		}
	})

	state, err := engine.Run(ctx, State{Topic: "Citizenship"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, State{}, state)
}

func TestEngine_ContextCancelledDuringCall(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	completer := llm.CompleterFunc(func(ctx context.Context, prompt string) (string, error) {
		cancel()
		<-ctx.Done()
		return "", ctx.Err()
	})

	_, err := NewEngine(completer).Run(ctx, State{Topic: "Citizenship"})
	assert.ErrorIs(t, err, context.Canceled)
	var stageErr *StageError
	assert.False(t, errors.As(err, &stageErr), "cancellation is returned as the ctx error")
}

func TestEngine_ParallelResearchKeepsMessageOrder(t *testing.T) {
	completer := NewFixtureCompleter(FixtureReflect(9))
	state, err := NewEngine(completer, WithParallelResearch(true)).Run(context.Background(), State{Topic: "Secularism"})
	require.NoError(t, err)

	assert.Equal(t, "Researched UPSC material for 'Secularism'", state.Messages[0])
	assert.Equal(t, FixtureDefinition, state.Definition)
	assert.Len(t, state.KeyConcepts, 5)
	assert.Len(t, state.PreviousYearQuestions, 2)
}

func TestEngine_ParallelResearchPropagatesFailure(t *testing.T) {
	failing := llm.NewScripted("x").OnError(taskSyllabus, errors.New("503"))
	_, err := NewEngine(failing, WithParallelResearch(true)).Run(context.Background(), State{Topic: "Secularism"})
	require.Error(t, err)

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageResearch, stageErr.Stage)
}

func TestEngine_StageLimit(t *testing.T) {
	engine := NewEngine(NewFixtureCompleter())
	// A reflect that never advances the iteration count would loop forever.
	engine.RegisterHandler(StageReflect, func(context.Context, State) (Update, error) {
		return Update{QualityScore: ptr(1.0), Messages: []string{"stuck"}}, nil
	})
	engine.RegisterHandler(StageImprove, func(context.Context, State) (Update, error) {
		return Update{}, nil
	})

	_, err := engine.Run(context.Background(), State{Topic: "Loop"})
	assert.ErrorIs(t, err, ErrStageLimit)
}

func TestEngine_MissingHandler(t *testing.T) {
	engine := NewEngine(NewFixtureCompleter())
	delete(engine.handlers, StageFinalize)

	_, err := engine.Run(context.Background(), State{Topic: "Loop"})
	assert.ErrorIs(t, err, ErrNoHandler)
}

func TestEngine_Spans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	_, err := NewEngine(NewFixtureCompleter(), WithTracer(tp.Tracer("test"))).
		Run(context.Background(), State{Topic: "Ordinances"})
	require.NoError(t, err)

	var names []string
	for _, s := range recorder.Ended() {
		names = append(names, s.Name())
	}
	assert.Equal(t, []string{
		"workflow.research", "workflow.generate", "workflow.reflect", "workflow.finalize", "workflow.run",
	}, names)
}

func TestEngine_ConcurrentRuns(t *testing.T) {
	engine := NewEngine(NewFixtureCompleter(FixtureReflect(8)))

	var wg sync.WaitGroup
	results := make([]State, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := engine.Run(context.Background(), State{Topic: "Topic"})
			assert.NoError(t, err)
			results[i] = s
		}()
	}
	wg.Wait()

	for _, s := range results {
		assert.Len(t, s.Messages, 4)
		assert.Equal(t, 1, s.IterationCount)
	}
}
