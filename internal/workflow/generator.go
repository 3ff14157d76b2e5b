package workflow

import (
	"context"
	"strings"

	"github.com/fyrsmithlabs/mindmapd/internal/logging"
	"github.com/google/uuid"
)

// GenerateRequest is a request for one mind map. PaperType and FocusAreas
// are accepted for callers that record them; the stages do not read them.
type GenerateRequest struct {
	Topic            string   `json:"topic"`
	PaperType        string   `json:"paper_type,omitempty"`
	PreparationStage string   `json:"preparation_stage,omitempty"`
	FocusAreas       []string `json:"focus_areas,omitempty"`
}

// Run is a finished workflow run with its diagnostics.
type Run struct {
	ID    string
	State State
}

// Generator is the entry point used by transports.
type Generator struct {
	engine *Engine
}

// NewGenerator wraps engine.
func NewGenerator(engine *Engine) *Generator {
	return &Generator{engine: engine}
}

// Generate runs the workflow for req and returns the public result.
func (g *Generator) Generate(ctx context.Context, req GenerateRequest) (MindMapResult, error) {
	run, err := g.GenerateRun(ctx, req)
	if err != nil {
		return MindMapResult{}, err
	}
	return run.State.Result(), nil
}

// GenerateRun runs the workflow under a fresh run id and returns the full
// final state, including score, feedback and messages.
func (g *Generator) GenerateRun(ctx context.Context, req GenerateRequest) (Run, error) {
	runID := uuid.NewString()
	ctx = logging.WithRunID(ctx, runID)

	state, err := g.engine.Run(ctx, State{
		Topic:            strings.TrimSpace(req.Topic),
		PreparationStage: strings.ToLower(strings.TrimSpace(req.PreparationStage)),
	})
	if err != nil {
		return Run{}, err
	}
	return Run{ID: runID, State: state}, nil
}
