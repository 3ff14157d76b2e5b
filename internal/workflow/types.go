package workflow

import (
	"context"
	"maps"
	"slices"
)

// Completer is the text-completion capability the stages depend on.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Stage identifies a node in the workflow graph.
type Stage string

// Stages in execution order. StageEnd is terminal and has no handler.
const (
	StageResearch Stage = "research"
	StageGenerate Stage = "generate"
	StageReflect  Stage = "reflect"
	StageImprove  Stage = "improve"
	StageFinalize Stage = "finalize"
	StageEnd      Stage = "end"
)

// Preparation stages accepted in State.PreparationStage.
const (
	PrepPrelims   = "prelims"
	PrepMains     = "mains"
	PrepInterview = "interview"
)

// Importance of a branch.
const (
	ImportanceHigh   = "high"
	ImportanceMedium = "medium"
	ImportanceLow    = "low"
)

// Branch is one thematic subdivision of a mind map.
type Branch struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Icon       string   `json:"icon"`
	Color      string   `json:"color"`
	Items      []string `json:"items"`
	Importance string   `json:"importance"`
}

// State is the record threaded through the stages of one run.
type State struct {
	Topic                 string            `json:"topic"`
	PreparationStage      string            `json:"preparationStage,omitempty"`
	Definition            string            `json:"definition"`
	SyllabusMapping       map[string]string `json:"syllabusMapping"`
	KeyConcepts           []string          `json:"keyConcepts"`
	PrimaryBranches       []Branch          `json:"primaryBranches"`
	PreviousYearQuestions []string          `json:"previousYearQuestions"`
	CurrentAffairsLinks   []string          `json:"currentAffairsLinks"`
	QualityScore          float64           `json:"qualityScore"`
	Feedback              []string          `json:"feedback"`
	IterationCount        int               `json:"iterationCount"`
	Messages              []string          `json:"messages"`
}

// Update is the partial result of a stage. Nil fields are left untouched by
// Apply; a non-nil empty slice clears the field.
type Update struct {
	Definition            *string
	SyllabusMapping       map[string]string
	KeyConcepts           []string
	PrimaryBranches       []Branch
	PreviousYearQuestions []string
	CurrentAffairsLinks   []string
	QualityScore          *float64
	Feedback              []string
	IterationCount        *int
	Messages              []string
}

// Apply returns s with u merged in. Every field is overwritten when present
// in u except Messages, which is appended. s is not modified.
func (s State) Apply(u Update) State {
	next := s
	if u.Definition != nil {
		next.Definition = *u.Definition
	}
	if u.SyllabusMapping != nil {
		next.SyllabusMapping = maps.Clone(u.SyllabusMapping)
	}
	if u.KeyConcepts != nil {
		next.KeyConcepts = slices.Clone(u.KeyConcepts)
	}
	if u.PrimaryBranches != nil {
		next.PrimaryBranches = cloneBranches(u.PrimaryBranches)
	}
	if u.PreviousYearQuestions != nil {
		next.PreviousYearQuestions = slices.Clone(u.PreviousYearQuestions)
	}
	if u.CurrentAffairsLinks != nil {
		next.CurrentAffairsLinks = slices.Clone(u.CurrentAffairsLinks)
	}
	if u.QualityScore != nil {
		next.QualityScore = *u.QualityScore
	}
	if u.Feedback != nil {
		next.Feedback = slices.Clone(u.Feedback)
	}
	if u.IterationCount != nil {
		next.IterationCount = *u.IterationCount
	}
	if len(u.Messages) > 0 {
		next.Messages = append(slices.Clone(s.Messages), u.Messages...)
	}
	return next
}

func cloneBranches(in []Branch) []Branch {
	out := make([]Branch, len(in))
	for i, b := range in {
		b.Items = slices.Clone(b.Items)
		out[i] = b
	}
	return out
}

// MindMapResult is the public view of a finished run.
type MindMapResult struct {
	Topic                 string            `json:"topic"`
	Definition            string            `json:"definition"`
	SyllabusMapping       map[string]string `json:"syllabusMapping"`
	KeyConcepts           []string          `json:"keyConcepts"`
	PrimaryBranches       []Branch          `json:"primaryBranches"`
	PreviousYearQuestions []string          `json:"previousYearQuestions"`
	CurrentAffairsLinks   []string          `json:"currentAffairsLinks"`
}

// Result projects the public fields of s.
func (s State) Result() MindMapResult {
	return MindMapResult{
		Topic:                 s.Topic,
		Definition:            s.Definition,
		SyllabusMapping:       s.SyllabusMapping,
		KeyConcepts:           nonNil(s.KeyConcepts),
		PrimaryBranches:       s.PrimaryBranches,
		PreviousYearQuestions: nonNil(s.PreviousYearQuestions),
		CurrentAffairsLinks:   nonNil(s.CurrentAffairsLinks),
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func ptr[T any](v T) *T { return &v }
