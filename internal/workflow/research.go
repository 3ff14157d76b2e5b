package workflow

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// researchCall is one research sub-call: a prompt and a parse step that
// writes into the shared result.
type researchCall struct {
	name   string
	prompt string
	parse  func(resp string, r *researchResult)
}

type researchResult struct {
	definition     string
	syllabus       map[string]string
	syllabusParsed bool
	keyConcepts    []string
	previousYear   []string
	currentAffairs []string
}

func researchCalls(topic string) []researchCall {
	return []researchCall{
		{"definition", definitionPrompt(topic), func(resp string, r *researchResult) {
			r.definition = resp
		}},
		{"syllabus", syllabusPrompt(topic), func(resp string, r *researchResult) {
			r.syllabus, r.syllabusParsed = parseOr(resp, parseSyllabus, defaultSyllabusMapping())
		}},
		{"key_concepts", keyConceptsPrompt(topic), func(resp string, r *researchResult) {
			r.keyConcepts = splitList(resp, ",", maxKeyConcepts)
		}},
		{"previous_year_questions", previousYearPrompt(topic), func(resp string, r *researchResult) {
			r.previousYear = splitList(resp, "\n", maxPreviousYear)
		}},
		{"current_affairs", currentAffairsPrompt(topic), func(resp string, r *researchResult) {
			r.currentAffairs = splitList(resp, "\n", maxCurrentAffairs)
		}},
	}
}

// research fills the factual fields from five LLM calls. Calls run in order
// unless parallel research is enabled; either way a single message is
// appended once all of them succeed.
func (st *stages) research(ctx context.Context, s State) (Update, error) {
	calls := researchCalls(s.Topic)
	responses := make([]string, len(calls))

	if st.parallelResearch {
		g, gctx := errgroup.WithContext(ctx)
		for i, c := range calls {
			g.Go(func() error {
				resp, err := st.llm.Complete(gctx, c.prompt)
				if err != nil {
					return fmt.Errorf("%s: %w", c.name, err)
				}
				responses[i] = resp
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return Update{}, err
		}
	} else {
		for i, c := range calls {
			resp, err := st.llm.Complete(ctx, c.prompt)
			if err != nil {
				return Update{}, fmt.Errorf("%s: %w", c.name, err)
			}
			responses[i] = resp
		}
	}

	var r researchResult
	for i, c := range calls {
		c.parse(responses[i], &r)
	}
	if !r.syllabusParsed {
		st.metrics.parseFallback(StageResearch, "syllabus")
		st.logger.Warn(ctx, "syllabus mapping unparsable, using default", zap.String("topic", s.Topic))
	}

	return Update{
		Definition:            ptr(r.definition),
		SyllabusMapping:       r.syllabus,
		KeyConcepts:           r.keyConcepts,
		PreviousYearQuestions: r.previousYear,
		CurrentAffairsLinks:   r.currentAffairs,
		Messages:              []string{fmt.Sprintf("Researched UPSC material for '%s'", s.Topic)},
	}, nil
}
