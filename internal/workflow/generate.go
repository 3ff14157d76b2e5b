package workflow

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// generate builds the primary branches, falling back to a fixed two-branch
// map when the response does not parse.
func (st *stages) generate(ctx context.Context, s State) (Update, error) {
	resp, err := st.llm.Complete(ctx, generatePrompt(s))
	if err != nil {
		return Update{}, err
	}

	branches, ok := parseOr(resp, parseBranches, defaultBranches())
	if !ok {
		st.metrics.parseFallback(StageGenerate, "branches")
		st.logger.Warn(ctx, "branches unparsable, using default map", zap.Int("response_chars", len(resp)))
	}

	return Update{
		PrimaryBranches: branches,
		Messages:        []string{fmt.Sprintf("Generated %d UPSC-focused branches", len(branches))},
	}, nil
}
