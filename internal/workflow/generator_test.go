package workflow

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerator_FundamentalRights(t *testing.T) {
	completer := NewFixtureCompleter(FixtureReflect(8.0))
	engine := NewEngine(completer)
	rec := &progressRecorder{}
	engine.OnProgress(rec.record)

	run, err := NewGenerator(engine).GenerateRun(context.Background(), GenerateRequest{
		Topic:            "  Fundamental Rights ",
		PreparationStage: "Prelims",
	})
	require.NoError(t, err)

	_, err = uuid.Parse(run.ID)
	require.NoError(t, err)
	for _, e := range rec.events {
		assert.Equal(t, run.ID, e.RunID)
	}

	assert.Equal(t, "Fundamental Rights", run.State.Topic)
	assert.Equal(t, PrepPrelims, run.State.PreparationStage)
	assert.Equal(t, 1, run.State.IterationCount)
	assert.NotEmpty(t, run.State.PrimaryBranches)

	var generatePrompt string
	for _, c := range completer.Calls() {
		if strings.HasPrefix(c, taskGenerate) {
			generatePrompt = c
		}
	}
	assert.Contains(t, generatePrompt, stageGuides[PrepPrelims])
}

func TestGenerator_ResultShape(t *testing.T) {
	result, err := NewGenerator(NewEngine(NewFixtureCompleter())).Generate(context.Background(), GenerateRequest{Topic: "Fundamental Rights"})
	require.NoError(t, err)

	data, err := json.Marshal(result)
	require.NoError(t, err)

	var fields map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &fields))
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	assert.ElementsMatch(t, []string{
		"topic", "definition", "syllabusMapping", "keyConcepts",
		"primaryBranches", "previousYearQuestions", "currentAffairsLinks",
	}, keys)
}

func TestGenerator_EmptyTopic(t *testing.T) {
	_, err := NewGenerator(NewEngine(NewFixtureCompleter())).Generate(context.Background(), GenerateRequest{})
	assert.ErrorIs(t, err, ErrEmptyTopic)
}

func TestResearch_SequentialPromptOrder(t *testing.T) {
	completer := NewFixtureCompleter()
	st := &stages{llm: completer, metrics: NewMetrics(), logger: NewEngine(completer).logger}

	update, err := st.research(context.Background(), State{Topic: "Writs"})
	require.NoError(t, err)

	calls := completer.Calls()
	require.Len(t, calls, 5)
	for i, task := range []string{taskDefinition, taskSyllabus, taskKeyConcepts, taskPreviousYear, taskCurrentAffairs} {
		assert.True(t, strings.HasPrefix(calls[i], task), "call %d", i)
	}
	assert.Equal(t, []string{"Researched UPSC material for 'Writs'"}, update.Messages)
	assert.Nil(t, update.PrimaryBranches)
	assert.Nil(t, update.IterationCount)
}

func TestPrompts_StageGuideDefaultsToMains(t *testing.T) {
	p := generatePrompt(State{Topic: "X", PreparationStage: "unknown"})
	assert.Contains(t, p, "Preparation stage: mains")
	assert.Contains(t, p, stageGuides[PrepMains])
	for _, d := range upscDimensions {
		assert.Contains(t, p, d)
	}

	// A request without a stage gets the mains prompt unchanged.
	assert.Equal(t, generatePrompt(State{Topic: "X", PreparationStage: PrepMains}),
		generatePrompt(State{Topic: "X"}))
}

func TestPrompts_ImproveIncludesFeedback(t *testing.T) {
	p := improvePrompt(State{Topic: "X", QualityScore: 5.5, Feedback: []string{"Add case law"}})
	assert.Contains(t, p, "Current score: 5.5/10")
	assert.Contains(t, p, "Add case law")
}
