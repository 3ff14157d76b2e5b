package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/fyrsmithlabs/mindmapd/internal/logging"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// OpenAI completes prompts with an OpenAI-compatible chat model.
type OpenAI struct {
	model   llms.Model
	cfg     Config
	limiter *rate.Limiter
	logger  *logging.Logger
}

// OpenAIOption customizes NewOpenAI.
type OpenAIOption func(*[]openai.Option)

// WithHTTPClient sets the HTTP client used for API calls.
func WithHTTPClient(client *http.Client) OpenAIOption {
	return func(opts *[]openai.Option) {
		*opts = append(*opts, openai.WithHTTPClient(client))
	}
}

// NewOpenAI creates an OpenAI backed Completer.
func NewOpenAI(cfg Config, logger *logging.Logger, opts ...OpenAIOption) (*OpenAI, error) {
	if !cfg.APIKey.IsSet() {
		return nil, ErrMissingAPIKey
	}
	cfg.applyDefaults()
	if logger == nil {
		logger = logging.NewNop()
	}

	clientOpts := []openai.Option{
		openai.WithToken(cfg.APIKey.Value()),
		openai.WithModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		clientOpts = append(clientOpts, openai.WithBaseURL(cfg.BaseURL))
	}
	for _, opt := range opts {
		opt(&clientOpts)
	}

	model, err := openai.New(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating openai client: %w", err)
	}

	return &OpenAI{
		model:   model,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst),
		logger:  logger.Named("llm"),
	}, nil
}

// Complete sends prompt as a single user message. Transient failures
// (429, 5xx, transport errors, per-call timeouts) are retried with
// exponential backoff; other errors are returned immediately.
func (o *OpenAI) Complete(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= o.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := o.cfg.BaseBackoff * time.Duration(1<<(attempt-1))
			o.logger.Warn(ctx, "retrying completion",
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
				zap.Error(lastErr))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		if err := o.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limiter: %w", err)
		}

		start := time.Now()
		text, err := o.call(ctx, prompt)
		if err == nil {
			o.logger.Debug(ctx, "completion received",
				zap.String("model", o.cfg.Model),
				zap.Int("prompt_chars", len(prompt)),
				zap.Int("response_chars", len(text)),
				zap.Duration("duration", time.Since(start)))
			return text, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		lastErr = err
		if !isRetryableError(err) {
			return "", err
		}
	}
	return "", fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (o *OpenAI) call(ctx context.Context, prompt string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	text, err := llms.GenerateFromSinglePrompt(callCtx, o.model, prompt,
		llms.WithTemperature(o.cfg.Temperature))
	if err != nil {
		if ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return "", &retryableError{err: fmt.Errorf("%w after %s", ErrTimeout, o.cfg.Timeout)}
		}
		return "", classify(err)
	}
	return text, nil
}

// retryableError marks an error as safe to retry.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

var statusCodePattern = regexp.MustCompile(`status code: (\d{3})`)

// classify wraps transient provider errors in retryableError.
func classify(err error) error {
	if m := statusCodePattern.FindStringSubmatch(err.Error()); m != nil {
		code, _ := strconv.Atoi(m[1])
		if code == http.StatusTooManyRequests || code >= 500 {
			return &retryableError{err: err}
		}
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return &retryableError{err: err}
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "connection reset") || strings.Contains(msg, "connection refused") || strings.Contains(msg, "unexpected eof") {
		return &retryableError{err: err}
	}
	return err
}

func isRetryableError(err error) bool {
	var r *retryableError
	return errors.As(err, &r)
}
