package workflow

import (
	"context"
	"fmt"
)

// improve regenerates the branches using the last score and feedback. An
// unparsable reply leaves the branches as they were.
func (st *stages) improve(ctx context.Context, s State) (Update, error) {
	resp, err := st.llm.Complete(ctx, improvePrompt(s))
	if err != nil {
		return Update{}, err
	}

	branches, ok := parseBranches(resp)
	if !ok {
		st.metrics.parseFallback(StageImprove, "branches")
		return Update{Messages: []string{"UPSC enhancement completed"}}, nil
	}

	st.metrics.BranchImprovements.Inc()
	return Update{
		PrimaryBranches: branches,
		Messages:        []string{fmt.Sprintf("Enhanced UPSC relevance (iteration %d)", s.IterationCount)},
	}, nil
}
