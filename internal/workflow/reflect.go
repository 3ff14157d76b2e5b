package workflow

import (
	"context"
	"fmt"
	"unicode/utf8"

	"go.uber.org/zap"
)

// reflect scores the map. IterationCount is incremented whatever the parse
// outcome; an unparsable reply scores defaultReflectScore, which routes to
// finalize.
func (st *stages) reflect(ctx context.Context, s State) (Update, error) {
	resp, err := st.llm.Complete(ctx, reflectPrompt(s))
	if err != nil {
		return Update{}, err
	}

	score, feedback, ok := parseReflection(resp)
	if !ok {
		st.metrics.parseFallback(StageReflect, "score")
		st.logger.Warn(ctx, "reflection unparsable, using default score", zap.String("response", truncate(resp, 200)))
		score, feedback = defaultReflectScore, []string{defaultReflectFeedback}
	}
	st.metrics.observeScore(score)

	return Update{
		QualityScore:   ptr(score),
		Feedback:       feedback,
		IterationCount: ptr(s.IterationCount + 1),
		Messages:       []string{fmt.Sprintf("UPSC relevance score: %s/10", formatScore(score))},
	}, nil
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
