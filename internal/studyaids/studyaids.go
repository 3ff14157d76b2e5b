// Package studyaids generates preparation tips and practice MCQs for a
// topic.
package studyaids

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/mindmapd/internal/llm"
	"github.com/fyrsmithlabs/mindmapd/internal/logging"
	"go.uber.org/zap"
)

// ErrEmptyTopic is returned when the topic is blank.
var ErrEmptyTopic = errors.New("topic is required")

// Tip is one preparation tip.
type Tip struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// MCQ is one multiple-choice practice question.
type MCQ struct {
	Question    string   `json:"question"`
	Options     []string `json:"options"`
	Answer      string   `json:"answer"`
	Explanation string   `json:"explanation"`
}

// Service produces study aids with a Completer. An unparseable model
// response yields an empty list; a failed call is an error.
type Service struct {
	llm    llm.Completer
	refs   *References
	logger *logging.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithReferences sets the reference questions used as a style guide for
// MCQ generation.
func WithReferences(refs *References) Option {
	return func(s *Service) { s.refs = refs }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// New creates a Service.
func New(completer llm.Completer, opts ...Option) *Service {
	s := &Service{llm: completer, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Tips returns preparation tips for topic.
func (s *Service) Tips(ctx context.Context, topic string) ([]Tip, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, ErrEmptyTopic
	}

	resp, err := s.llm.Complete(ctx, tipsPrompt(topic))
	if err != nil {
		return nil, fmt.Errorf("tips: %w", err)
	}

	var tips []Tip
	if err := json.Unmarshal([]byte(llm.StripCodeFence(resp)), &tips); err != nil {
		s.logger.Warn(ctx, "unparseable tips response", zap.String("topic", topic), zap.Error(err))
		return []Tip{}, nil
	}
	if tips == nil {
		tips = []Tip{}
	}
	return tips, nil
}

// MCQs returns practice questions for topic. When reference questions are
// loaded they are included in the prompt as a style guide.
func (s *Service) MCQs(ctx context.Context, topic string) ([]MCQ, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, ErrEmptyTopic
	}

	var refs []json.RawMessage
	if s.refs != nil {
		refs = s.refs.Sample()
	}

	prompt, err := mcqPrompt(topic, refs)
	if err != nil {
		return nil, err
	}
	resp, err := s.llm.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("mcq: %w", err)
	}

	mcqs, ok := parseMCQs(resp)
	if !ok {
		s.logger.Warn(ctx, "unparseable mcq response", zap.String("topic", topic))
	}
	return mcqs, nil
}

// parseMCQs decodes a JSON array of questions. Missing fields become empty
// values and non-string values are rendered as text.
func parseMCQs(resp string) ([]MCQ, bool) {
	var raw []map[string]any
	if err := json.Unmarshal([]byte(llm.StripCodeFence(resp)), &raw); err != nil {
		return []MCQ{}, false
	}

	out := make([]MCQ, 0, len(raw))
	for _, item := range raw {
		if item == nil {
			continue
		}
		out = append(out, MCQ{
			Question:    text(item["question"]),
			Options:     textList(item["options"]),
			Answer:      text(item["answer"]),
			Explanation: text(item["explanation"]),
		})
	}
	return out, true
}

func text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

func textList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, text(item))
	}
	return out
}
