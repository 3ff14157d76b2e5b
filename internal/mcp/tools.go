package mcp

import (
	"context"
	"fmt"

	"github.com/fyrsmithlabs/mindmapd/internal/studyaids"
	"github.com/fyrsmithlabs/mindmapd/internal/topics"
	"github.com/fyrsmithlabs/mindmapd/internal/workflow"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

type generateInput struct {
	Topic            string `json:"topic" jsonschema:"Study topic, for example Fundamental Rights"`
	PreparationStage string `json:"preparation_stage,omitempty" jsonschema:"prelims, mains or interview (default mains)"`
}

type generateOutput struct {
	RunID        string                 `json:"run_id"`
	MindMap      workflow.MindMapResult `json:"mind_map"`
	QualityScore float64                `json:"quality_score"`
	Iterations   int                    `json:"iterations"`
	Messages     []string               `json:"messages"`
}

type suggestedTopicsInput struct{}

type suggestedTopicsOutput struct {
	SuggestedTopics []topics.Category `json:"suggested_topics"`
}

type topicInput struct {
	Topic string `json:"topic" jsonschema:"Study topic"`
}

type tipsOutput struct {
	Topic string          `json:"topic"`
	Tips  []studyaids.Tip `json:"tips"`
}

type mcqOutput struct {
	Topic string          `json:"topic"`
	MCQs  []studyaids.MCQ `json:"mcqs"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "generate_mind_map",
		Description: "Generate a UPSC-focused mind map for a topic: definition, syllabus mapping, key concepts, branches, previous year questions and current affairs links",
	}, s.generateMindMap)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "suggested_topics",
		Description: "List suggested UPSC topics grouped by category",
	}, s.suggestedTopics)

	if s.aids == nil {
		return
	}

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "preparation_tips",
		Description: "Get UPSC preparation tips for a topic",
	}, s.preparationTips)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "generate_mcq",
		Description: "Generate UPSC prelims style practice MCQs for a topic",
	}, s.generateMCQ)
}

func (s *Server) generateMindMap(ctx context.Context, _ *mcp.CallToolRequest, args generateInput) (*mcp.CallToolResult, generateOutput, error) {
	done := s.metrics.track(ctx, "generate_mind_map")

	run, err := s.generator.GenerateRun(ctx, workflow.GenerateRequest{
		Topic:            args.Topic,
		PreparationStage: args.PreparationStage,
	})
	done(err)
	if err != nil {
		s.logger.Warn(ctx, "generate_mind_map failed", zap.String("topic", args.Topic), zap.Error(err))
		return nil, generateOutput{}, fmt.Errorf("generate mind map: %w", err)
	}

	out := generateOutput{
		RunID:        run.ID,
		MindMap:      run.State.Result(),
		QualityScore: run.State.QualityScore,
		Iterations:   run.State.IterationCount,
		Messages:     run.State.Messages,
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("Mind map for %q ready with %d branches (score %.1f/10)",
				out.MindMap.Topic, len(out.MindMap.PrimaryBranches), out.QualityScore)},
		},
	}, out, nil
}

func (s *Server) suggestedTopics(ctx context.Context, _ *mcp.CallToolRequest, _ suggestedTopicsInput) (*mcp.CallToolResult, suggestedTopicsOutput, error) {
	done := s.metrics.track(ctx, "suggested_topics")
	out := suggestedTopicsOutput{SuggestedTopics: s.catalog.Suggested()}
	done(nil)

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("%d topic categories", len(out.SuggestedTopics))},
		},
	}, out, nil
}

func (s *Server) preparationTips(ctx context.Context, _ *mcp.CallToolRequest, args topicInput) (*mcp.CallToolResult, tipsOutput, error) {
	done := s.metrics.track(ctx, "preparation_tips")
	tips, err := s.aids.Tips(ctx, args.Topic)
	done(err)
	if err != nil {
		return nil, tipsOutput{}, fmt.Errorf("preparation tips: %w", err)
	}

	out := tipsOutput{Topic: args.Topic, Tips: tips}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("%d tips for %q", len(tips), args.Topic)},
		},
	}, out, nil
}

func (s *Server) generateMCQ(ctx context.Context, _ *mcp.CallToolRequest, args topicInput) (*mcp.CallToolResult, mcqOutput, error) {
	done := s.metrics.track(ctx, "generate_mcq")
	mcqs, err := s.aids.MCQs(ctx, args.Topic)
	done(err)
	if err != nil {
		return nil, mcqOutput{}, fmt.Errorf("generate mcq: %w", err)
	}

	out := mcqOutput{Topic: args.Topic, MCQs: mcqs}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("%d questions for %q", len(mcqs), args.Topic)},
		},
	}, out, nil
}
