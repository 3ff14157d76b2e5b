// Package http provides the mindmapd HTTP API.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/fyrsmithlabs/mindmapd/internal/auth"
	"github.com/fyrsmithlabs/mindmapd/internal/logging"
	"github.com/fyrsmithlabs/mindmapd/internal/store"
	"github.com/fyrsmithlabs/mindmapd/internal/studyaids"
	"github.com/fyrsmithlabs/mindmapd/internal/topics"
	"github.com/fyrsmithlabs/mindmapd/internal/workflow"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// MindMapGenerator runs the generation workflow.
type MindMapGenerator interface {
	Generate(ctx context.Context, req workflow.GenerateRequest) (workflow.MindMapResult, error)
}

// NewsSource returns pages of news articles.
type NewsSource interface {
	Latest(ctx context.Context, page, size int) ([]store.Article, error)
}

// Authenticator verifies sign-in tokens.
type Authenticator interface {
	ClientID() (string, error)
	Verify(ctx context.Context, token string) (auth.User, error)
}

// StudyAids produces tips and practice questions.
type StudyAids interface {
	Tips(ctx context.Context, topic string) ([]studyaids.Tip, error)
	MCQs(ctx context.Context, topic string) ([]studyaids.MCQ, error)
}

// Deps are the services behind the routes. Generator, Generations, Articles
// and Catalog are required.
type Deps struct {
	Generator   MindMapGenerator
	Generations store.GenerationStore
	Articles    store.ArticleStore
	Catalog     *topics.Catalog
	News        NewsSource
	Auth        Authenticator
	StudyAids   StudyAids

	// Gatherer backs /metrics. Defaults to prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer
}

// Config holds HTTP server configuration.
type Config struct {
	Host           string
	Port           int
	AllowedOrigins []string
}

// Server provides the HTTP endpoints.
type Server struct {
	echo   *echo.Echo
	deps   Deps
	logger *logging.Logger
	config *Config
}

// NewServer creates a new HTTP server.
func NewServer(deps Deps, logger *logging.Logger, cfg *Config) (*Server, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	switch {
	case deps.Generator == nil:
		return nil, errors.New("generator cannot be nil")
	case deps.Generations == nil:
		return nil, errors.New("generation store cannot be nil")
	case deps.Articles == nil:
		return nil, errors.New("article store cannot be nil")
	case deps.Catalog == nil:
		return nil, errors.New("topic catalog cannot be nil")
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}
	if cfg == nil {
		cfg = &Config{
			Host: "0.0.0.0",
			Port: 8001,
		}
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler(logger)

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowCredentials: !allowsAnyOrigin(cfg.AllowedOrigins),
	}))
	e.Use(NewHTTPMetrics(logger).MetricsMiddleware())
	e.Use(requestLogger(logger))

	s := &Server{
		echo:   e,
		deps:   deps,
		logger: logger,
		config: cfg,
	}
	s.registerRoutes()

	return s, nil
}

// requestLogger logs each request and puts the request id into the
// request context for downstream logs.
func requestLogger(logger *logging.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			requestID := c.Response().Header().Get(echo.HeaderXRequestID)

			ctx := req.Context()
			if logging.ValidateID(requestID) == nil {
				ctx = logging.WithRequestID(ctx, requestID)
			}
			ctx = logging.WithLogger(ctx, logger)
			c.SetRequest(req.WithContext(ctx))

			err := next(c)
			if err != nil {
				// Let the error handler write the response so the logged
				// status is the one the client sees.
				c.Error(err)
			}

			logger.Info(ctx, "http request",
				zap.String("method", req.Method),
				zap.String("uri", req.RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", requestID),
			)
			return nil
		}
	}
}

// errorHandler renders errors as {"detail": "..."}.
func errorHandler(logger *logging.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		detail := http.StatusText(code)

		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			if msg, ok := he.Message.(string); ok {
				detail = msg
			} else {
				detail = http.StatusText(code)
			}
		} else {
			logger.Error(c.Request().Context(), "unhandled error", zap.Error(err))
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, ErrorResponse{Detail: detail})
		}
		if err != nil {
			logger.Warn(c.Request().Context(), "failed to write error response", zap.Error(err))
		}
	}
}

func allowsAnyOrigin(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{})))

	api := s.echo.Group("/api")
	api.POST("/upsc-mindmap", s.handleGenerate)
	api.GET("/upsc-suggested-topics", s.handleSuggestedTopics)
	api.POST("/save-generation", s.handleSaveGeneration)
	api.GET("/saved-generations", s.handleListGenerations)
	api.GET("/saved-generations/:id", s.handleGetGeneration)
	api.DELETE("/saved-generations/:id", s.handleDeleteGeneration)
	api.GET("/upsc-tips/:topic", s.handleTips)
	api.POST("/generate-mcq", s.handleGenerateMCQ)

	s.echo.GET("/news", s.handleNews)
	s.echo.POST("/save-article", s.handleSaveArticle)
	s.echo.GET("/saved-articles", s.handleListArticles)
	s.echo.DELETE("/saved-articles/:article_id", s.handleDeleteArticle)

	s.echo.GET("/auth/client-id", s.handleClientID)
	s.echo.POST("/auth/google", s.handleGoogleAuth)
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start starts the HTTP server. It returns http.ErrServerClosed after
// Shutdown.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info(context.Background(), "starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	return s.echo.Shutdown(ctx)
}
