package llm

import (
	"context"
	"strings"
	"sync"
)

// Scripted is an in-memory Completer for tests and local runs. Prompts are
// matched against rules in registration order by substring; each rule
// serves its responses in order and then repeats the last one.
type Scripted struct {
	mu       sync.Mutex
	rules    []*scriptRule
	fallback string
	calls    []string
}

type scriptRule struct {
	substr    string
	responses []string
	err       error
	served    int
}

// NewScripted returns a Scripted completer that answers unmatched prompts
// with fallback.
func NewScripted(fallback string) *Scripted {
	return &Scripted{fallback: fallback}
}

// On registers responses for prompts containing substr.
func (s *Scripted) On(substr string, responses ...string) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = append(s.rules, &scriptRule{substr: substr, responses: responses})
	return s
}

// OnError makes prompts containing substr fail with err.
func (s *Scripted) OnError(substr string, err error) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = append(s.rules, &scriptRule{substr: substr, err: err})
	return s
}

// Complete implements Completer.
func (s *Scripted) Complete(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, prompt)

	for _, r := range s.rules {
		if !strings.Contains(prompt, r.substr) {
			continue
		}
		if r.err != nil {
			return "", r.err
		}
		if len(r.responses) == 0 {
			return "", nil
		}
		i := min(r.served, len(r.responses)-1)
		r.served++
		return r.responses[i], nil
	}
	return s.fallback, nil
}

// Calls returns the prompts received so far.
func (s *Scripted) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}
