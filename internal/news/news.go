// Package news proxies the newsdata.io "latest" endpoint and remembers the
// pagination token between requests.
package news

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fyrsmithlabs/mindmapd/internal/config"
	"github.com/fyrsmithlabs/mindmapd/internal/logging"
	"github.com/fyrsmithlabs/mindmapd/internal/store"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// Files written to the data directory.
const (
	CacheFile    = "saved_news.json"
	NextPageFile = "next_page.txt"
)

// Page size bounds.
const (
	DefaultPageSize = 10
	MaxPageSize     = 50
)

var (
	// ErrMissingAPIKey is returned when no newsdata.io key is configured.
	ErrMissingAPIKey = errors.New("news API key not configured")

	// ErrNoNextPage is returned for page > 1 when no continuation token
	// has been stored.
	ErrNoNextPage = errors.New("no next page available")

	// ErrInvalidPage is returned for a page number below 1.
	ErrInvalidPage = errors.New("page must be at least 1")
)

// UpstreamError is a non-success answer from newsdata.io.
type UpstreamError struct {
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 && e.StatusCode != http.StatusOK {
		return fmt.Sprintf("failed to fetch news (%d): %s", e.StatusCode, e.Message)
	}
	return "API error: " + e.Message
}

// Config configures a Client.
type Config struct {
	APIKey            config.Secret
	BaseURL           string
	Country           string
	Language          string
	ExcludeCategories string
	Timeout           time.Duration
	DataDir           string
}

// FromSettings builds a Config from the loaded configuration.
func FromSettings(n config.NewsConfig, dataDir string) Config {
	return Config{
		APIKey:            n.APIKey,
		BaseURL:           n.BaseURL,
		Country:           n.Country,
		Language:          n.Language,
		ExcludeCategories: n.ExcludeCategories,
		Timeout:           n.Timeout,
		DataDir:           dataDir,
	}
}

// Client fetches news pages. Page 1 always starts from the newest articles
// and caches them; later pages follow the stored continuation token.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *logging.Logger

	// mu serializes page fetches so the token file is read and replaced
	// by one request at a time.
	mu sync.Mutex
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// New creates a Client.
func New(cfg Config, logger *logging.Logger, opts ...Option) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	c := &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type latestResponse struct {
	Status   string          `json:"status"`
	Results  json.RawMessage `json:"results"`
	NextPage string          `json:"nextPage"`
	Message  json.RawMessage `json:"message"`

	articles []store.Article
}

// Latest returns one page of articles. size outside 1..MaxPageSize falls
// back to DefaultPageSize.
func (c *Client) Latest(ctx context.Context, page, size int) ([]store.Article, error) {
	if !c.cfg.APIKey.IsSet() {
		return nil, ErrMissingAPIKey
	}
	if page < 1 {
		return nil, ErrInvalidPage
	}
	if size < 1 || size > MaxPageSize {
		size = DefaultPageSize
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var token string
	if page > 1 {
		t, err := c.readToken()
		if err != nil {
			return nil, err
		}
		token = t
	}

	resp, err := c.fetch(ctx, size, token)
	if err != nil {
		return nil, err
	}

	articles := resp.articles

	if page == 1 {
		if err := c.writeCache(articles); err != nil {
			c.logger.Warn(ctx, "failed to cache news", zap.Error(err))
		}
	}
	if err := c.writeToken(resp.NextPage); err != nil {
		c.logger.Warn(ctx, "failed to store next page token", zap.Error(err))
	}

	c.logger.Debug(ctx, "fetched news",
		zap.Int("page", page),
		zap.Int("articles", len(articles)),
		zap.Bool("has_next", resp.NextPage != ""))
	return articles, nil
}

// Cached returns the articles stored by the last page 1 fetch.
func (c *Client) Cached() ([]store.Article, error) {
	data, err := os.ReadFile(c.path(CacheFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []store.Article{}, nil
		}
		return nil, err
	}
	var cached struct {
		Articles []store.Article `json:"articles"`
	}
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, fmt.Errorf("failed to decode news cache: %w", err)
	}
	if cached.Articles == nil {
		cached.Articles = []store.Article{}
	}
	return cached.Articles, nil
}

func (c *Client) fetch(ctx context.Context, size int, token string) (*latestResponse, error) {
	q := url.Values{}
	q.Set("apikey", c.cfg.APIKey.Value())
	if c.cfg.Country != "" {
		q.Set("country", c.cfg.Country)
	}
	if c.cfg.Language != "" {
		q.Set("language", c.cfg.Language)
	}
	q.Set("size", strconv.Itoa(size))
	if token != "" {
		q.Set("page", token)
	}
	if c.cfg.ExcludeCategories != "" {
		q.Set("excludecategory", c.cfg.ExcludeCategories)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		// The request URL carries the api key; report the cause only.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return nil, fmt.Errorf("failed to fetch news: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Message: "Failed to fetch news"}
	}

	var out latestResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if out.Status != "success" {
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Message: upstreamMessage(out)}
	}

	out.articles = []store.Article{}
	if len(out.Results) > 0 && string(out.Results) != "null" {
		if err := json.Unmarshal(out.Results, &out.articles); err != nil {
			return nil, fmt.Errorf("failed to decode articles: %w", err)
		}
	}
	return &out, nil
}

// upstreamMessage extracts the error text, which newsdata.io reports either
// as a top-level message or inside the results object.
func upstreamMessage(resp latestResponse) string {
	var s string
	if len(resp.Message) > 0 && json.Unmarshal(resp.Message, &s) == nil && s != "" {
		return s
	}
	var nested struct {
		Message string `json:"message"`
	}
	if len(resp.Results) > 0 && json.Unmarshal(resp.Results, &nested) == nil && nested.Message != "" {
		return nested.Message
	}
	return "Unknown error"
}

func (c *Client) path(name string) string {
	return filepath.Join(c.cfg.DataDir, name)
}

func (c *Client) readToken() (string, error) {
	data, err := os.ReadFile(c.path(NextPageFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNoNextPage
		}
		return "", fmt.Errorf("failed to read next page token: %w", err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", ErrNoNextPage
	}
	return token, nil
}

// writeToken stores token, or removes the stored one when the feed has no
// further pages.
func (c *Client) writeToken(token string) error {
	if token == "" {
		err := os.Remove(c.path(NextPageFile))
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		return nil
	}
	return os.WriteFile(c.path(NextPageFile), []byte(token), 0600)
}

func (c *Client) writeCache(articles []store.Article) error {
	data, err := json.Marshal(map[string]any{"articles": articles})
	if err != nil {
		return err
	}
	return os.WriteFile(c.path(CacheFile), data, 0600)
}
