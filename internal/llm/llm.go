// Package llm provides text completion backends for the mind-map workflow.
//
// A Completer turns a prompt into response text. The OpenAI backend is built
// on langchaingo and adds client-side rate limiting, a per-call timeout and
// retries with exponential backoff for transient failures.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/mindmapd/internal/config"
	"github.com/fyrsmithlabs/mindmapd/internal/logging"
)

// Completer submits a prompt and returns the model's text response.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, prompt string) (string, error)

// Complete calls f.
func (f CompleterFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

var (
	// ErrMissingAPIKey is returned when a provider needs credentials that
	// were not configured.
	ErrMissingAPIKey = errors.New("llm: api key not configured")

	// ErrUnavailable is returned by the Unavailable completer.
	ErrUnavailable = errors.New("llm: no completion provider configured")

	// ErrTimeout marks a single call that exceeded the per-call timeout.
	ErrTimeout = errors.New("llm: call timed out")
)

const (
	defaultTimeout     = 60 * time.Second
	defaultMaxRetries  = 3
	defaultBaseBackoff = 1 * time.Second
	defaultRateLimit   = 50.0 / 60.0 // requests per second
	defaultBurst       = 5
)

// Config configures a completion backend.
type Config struct {
	Provider    string
	BaseURL     string
	Model       string
	APIKey      config.Secret
	Temperature float64
	Timeout     time.Duration
	MaxRetries  int
	BaseBackoff time.Duration
	RateLimit   float64
	Burst       int
}

// FromSettings converts the llm section of the service configuration.
func FromSettings(s config.LLMConfig) Config {
	return Config{
		Provider:    s.Provider,
		BaseURL:     s.BaseURL,
		Model:       s.Model,
		APIKey:      s.APIKey,
		Temperature: s.Temperature,
		Timeout:     s.Timeout,
		MaxRetries:  s.MaxRetries,
		RateLimit:   s.RateLimit,
		Burst:       s.Burst,
	}
}

func (c *Config) applyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = defaultMaxRetries
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = defaultBaseBackoff
	}
	if c.RateLimit <= 0 {
		c.RateLimit = defaultRateLimit
	}
	if c.Burst <= 0 {
		c.Burst = defaultBurst
	}
}

// New builds the Completer named by cfg.Provider.
func New(cfg Config, logger *logging.Logger) (Completer, error) {
	switch cfg.Provider {
	case "openai", "":
		return NewOpenAI(cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported llm provider %q (supported: openai)", cfg.Provider)
	}
}

// Unavailable is a Completer that always fails with ErrUnavailable. It keeps
// the rest of the service usable when no provider is configured.
type Unavailable struct{}

// Complete always returns ErrUnavailable.
func (Unavailable) Complete(context.Context, string) (string, error) {
	return "", ErrUnavailable
}

var (
	_ Completer = (*OpenAI)(nil)
	_ Completer = Unavailable{}
	_ Completer = CompleterFunc(nil)
	_ Completer = (*Scripted)(nil)
)
