package workflow

import (
	"context"
	"fmt"
)

func (st *stages) finalize(_ context.Context, s State) (Update, error) {
	return Update{
		Messages: []string{fmt.Sprintf("UPSC mind map for '%s' ready with score: %s/10", s.Topic, formatScore(s.QualityScore))},
	}, nil
}
