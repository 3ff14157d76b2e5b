package http

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/fyrsmithlabs/mindmapd/internal/auth"
	"github.com/fyrsmithlabs/mindmapd/internal/news"
	"github.com/fyrsmithlabs/mindmapd/internal/store"
	"github.com/fyrsmithlabs/mindmapd/internal/studyaids"
	"github.com/fyrsmithlabs/mindmapd/internal/workflow"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status:  "healthy",
		Message: "UPSC Mind Map API is running",
	})
}

// handleGenerate runs the mind-map workflow for the requested topic.
func (s *Server) handleGenerate(c echo.Context) error {
	ctx := c.Request().Context()

	var req workflow.GenerateRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn(ctx, "invalid mind map request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Topic) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "topic is required")
	}

	result, err := s.deps.Generator.Generate(ctx, req)
	if err != nil {
		if errors.Is(err, workflow.ErrEmptyTopic) {
			return echo.NewHTTPError(http.StatusBadRequest, "topic is required")
		}
		s.logger.Error(ctx, "mind map generation failed", zap.String("topic", req.Topic), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError,
			fmt.Sprintf("Error generating UPSC mind map: %v", err))
	}
	return c.JSON(http.StatusOK, result)
}

// handleSuggestedTopics returns the topic catalog.
func (s *Server) handleSuggestedTopics(c echo.Context) error {
	return c.JSON(http.StatusOK, SuggestedTopicsResponse{SuggestedTopics: s.deps.Catalog.Suggested()})
}

// handleSaveGeneration stores a generated mind map.
func (s *Server) handleSaveGeneration(c echo.Context) error {
	ctx := c.Request().Context()

	var req SaveGenerationRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn(ctx, "invalid save generation request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Topic) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "topic is required")
	}
	if len(req.MindMapData) > 0 && !isJSONObject(req.MindMapData) {
		return echo.NewHTTPError(http.StatusBadRequest, "mindmap_data must be a JSON object")
	}

	saved, err := s.deps.Generations.Save(ctx, store.Generation{
		UserID:           req.UserID,
		Topic:            req.Topic,
		PreparationStage: req.PreparationStage,
		FocusAreas:       req.FocusAreas,
		MindMapData:      req.MindMapData,
		GenerationTime:   req.GenerationTime,
	})
	if err != nil {
		s.logger.Error(ctx, "failed to save generation", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("Error saving generation: %v", err))
	}

	s.logger.Debug(ctx, "saved generation", zap.String("id", saved.ID), zap.String("user_id", saved.UserID))
	return c.JSON(http.StatusOK, SaveGenerationResponse{
		Message: "Generation saved successfully",
		ID:      saved.ID,
	})
}

// handleListGenerations lists a user's saved generations, newest first.
func (s *Server) handleListGenerations(c echo.Context) error {
	ctx := c.Request().Context()

	gens, err := s.deps.Generations.List(ctx, c.QueryParam("user_id"))
	if err != nil {
		s.logger.Error(ctx, "failed to list generations", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("Error fetching generations: %v", err))
	}
	return c.JSON(http.StatusOK, GenerationsResponse{Generations: gens})
}

// handleGetGeneration returns one saved generation.
func (s *Server) handleGetGeneration(c echo.Context) error {
	ctx := c.Request().Context()

	gen, err := s.deps.Generations.Get(ctx, c.QueryParam("user_id"), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Generation not found")
		}
		s.logger.Error(ctx, "failed to get generation", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("Error fetching generation: %v", err))
	}
	return c.JSON(http.StatusOK, gen)
}

// handleDeleteGeneration deletes one saved generation.
func (s *Server) handleDeleteGeneration(c echo.Context) error {
	ctx := c.Request().Context()

	if err := s.deps.Generations.Delete(ctx, c.QueryParam("user_id"), c.Param("id")); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Generation not found")
		}
		s.logger.Error(ctx, "failed to delete generation", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("Error deleting generation: %v", err))
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "Generation deleted successfully"})
}

// handleNews proxies one page of news.
func (s *Server) handleNews(c echo.Context) error {
	ctx := c.Request().Context()

	page, err := intQuery(c, "page", 1)
	if err != nil {
		return err
	}
	size, err := intQuery(c, "size", news.DefaultPageSize)
	if err != nil {
		return err
	}
	if s.deps.News == nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "News API key not configured")
	}

	articles, err := s.deps.News.Latest(ctx, page, size)
	if err != nil {
		var upErr *news.UpstreamError
		switch {
		case errors.Is(err, news.ErrMissingAPIKey):
			return echo.NewHTTPError(http.StatusInternalServerError, "News API key not configured")
		case errors.Is(err, news.ErrNoNextPage):
			return echo.NewHTTPError(http.StatusBadRequest, "No next page available")
		case errors.Is(err, news.ErrInvalidPage):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		case errors.As(err, &upErr):
			s.logger.Warn(ctx, "news provider error", zap.Error(err))
			return echo.NewHTTPError(http.StatusBadGateway, fmt.Sprintf("Error fetching news: %v", err))
		}
		s.logger.Error(ctx, "failed to fetch news", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("Error fetching news: %v", err))
	}
	return c.JSON(http.StatusOK, ArticlesResponse{Articles: articles})
}

// handleSaveArticle bookmarks an article. Saving an already saved article
// succeeds without changes.
func (s *Server) handleSaveArticle(c echo.Context) error {
	ctx := c.Request().Context()

	var article store.Article
	if err := c.Bind(&article); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if _, err := s.deps.Articles.Save(ctx, article); err != nil {
		if errors.Is(err, store.ErrMissingArticleID) {
			return echo.NewHTTPError(http.StatusBadRequest, "article_id is required")
		}
		s.logger.Error(ctx, "failed to save article", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("Error saving article: %v", err))
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "Article saved"})
}

// handleListArticles lists bookmarked articles.
func (s *Server) handleListArticles(c echo.Context) error {
	ctx := c.Request().Context()

	articles, err := s.deps.Articles.List(ctx)
	if err != nil {
		s.logger.Error(ctx, "failed to list articles", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("Error fetching saved articles: %v", err))
	}
	return c.JSON(http.StatusOK, ArticlesResponse{Articles: articles})
}

// handleDeleteArticle removes a bookmarked article.
func (s *Server) handleDeleteArticle(c echo.Context) error {
	ctx := c.Request().Context()

	if err := s.deps.Articles.Delete(ctx, pathParam(c, "article_id")); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Article not found")
		}
		s.logger.Error(ctx, "failed to delete article", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("Error deleting article: %v", err))
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "Article deleted"})
}

// handleClientID returns the Google OAuth client id.
func (s *Server) handleClientID(c echo.Context) error {
	if s.deps.Auth == nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Google Client ID not configured")
	}
	id, err := s.deps.Auth.ClientID()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Google Client ID not configured")
	}
	return c.JSON(http.StatusOK, ClientIDResponse{ClientID: id})
}

// handleGoogleAuth verifies a Google ID token against the allow-list.
func (s *Server) handleGoogleAuth(c echo.Context) error {
	ctx := c.Request().Context()

	var req GoogleAuthRequest
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Token) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid token")
	}
	if s.deps.Auth == nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Google Client ID not configured")
	}

	user, err := s.deps.Auth.Verify(ctx, req.Token)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrNotAllowed):
			s.logger.Info(ctx, "sign-in denied")
			return echo.NewHTTPError(http.StatusForbidden, "Access denied: Your email is not authorized.")
		case errors.Is(err, auth.ErrInvalidToken):
			s.logger.Debug(ctx, "invalid sign-in token", zap.Error(err))
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid token")
		case errors.Is(err, auth.ErrNotConfigured):
			return echo.NewHTTPError(http.StatusInternalServerError, "Google Client ID not configured")
		}
		s.logger.Error(ctx, "token verification failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "Authentication failed")
	}
	return c.JSON(http.StatusOK, GoogleAuthResponse{User: user})
}

// handleTips returns preparation tips for a topic.
func (s *Server) handleTips(c echo.Context) error {
	ctx := c.Request().Context()
	topic := pathParam(c, "topic")

	if s.deps.StudyAids == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "study aids are not configured")
	}
	tips, err := s.deps.StudyAids.Tips(ctx, topic)
	if err != nil {
		if errors.Is(err, studyaids.ErrEmptyTopic) {
			return echo.NewHTTPError(http.StatusBadRequest, "topic is required")
		}
		s.logger.Error(ctx, "tips generation failed", zap.String("topic", topic), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("Error generating tips: %v", err))
	}
	return c.JSON(http.StatusOK, TipsResponse{Topic: topic, Tips: tips})
}

// handleGenerateMCQ returns practice questions for a topic.
func (s *Server) handleGenerateMCQ(c echo.Context) error {
	ctx := c.Request().Context()

	var req MCQRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if s.deps.StudyAids == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "study aids are not configured")
	}

	mcqs, err := s.deps.StudyAids.MCQs(ctx, req.Topic)
	if err != nil {
		if errors.Is(err, studyaids.ErrEmptyTopic) {
			return echo.NewHTTPError(http.StatusBadRequest, "topic is required")
		}
		s.logger.Error(ctx, "mcq generation failed", zap.String("topic", req.Topic), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("Error generating MCQs: %v", err))
	}
	return c.JSON(http.StatusOK, MCQResponse{Topic: req.Topic, MCQs: mcqs})
}

// intQuery parses an optional integer query parameter.
func intQuery(c echo.Context, name string, def int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("%s must be an integer", name))
	}
	return v, nil
}

// pathParam returns the unescaped value of a path parameter.
func pathParam(c echo.Context, name string) string {
	raw := c.Param(name)
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

func isJSONObject(raw []byte) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}
