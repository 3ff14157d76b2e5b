package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fyrsmithlabs/mindmapd/internal/auth"
	"github.com/fyrsmithlabs/mindmapd/internal/logging"
	"github.com/fyrsmithlabs/mindmapd/internal/news"
	"github.com/fyrsmithlabs/mindmapd/internal/store"
	"github.com/fyrsmithlabs/mindmapd/internal/studyaids"
	"github.com/fyrsmithlabs/mindmapd/internal/topics"
	"github.com/fyrsmithlabs/mindmapd/internal/workflow"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGenerator struct {
	err  error
	seen []workflow.GenerateRequest
}

func (f *fakeGenerator) Generate(_ context.Context, req workflow.GenerateRequest) (workflow.MindMapResult, error) {
	f.seen = append(f.seen, req)
	if f.err != nil {
		return workflow.MindMapResult{}, f.err
	}
	return workflow.MindMapResult{
		Topic:       req.Topic,
		Definition:  "A definition of " + req.Topic,
		KeyConcepts: []string{"one", "two"},
	}, nil
}

type fakeNews struct {
	articles []store.Article
	err      error
}

func (f *fakeNews) Latest(_ context.Context, page, size int) ([]store.Article, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.articles, nil
}

type fakeAuth struct {
	clientID string
	user     auth.User
	err      error
}

func (f *fakeAuth) ClientID() (string, error) {
	if f.clientID == "" {
		return "", auth.ErrNotConfigured
	}
	return f.clientID, nil
}

func (f *fakeAuth) Verify(_ context.Context, _ string) (auth.User, error) {
	return f.user, f.err
}

type fakeAids struct {
	err error
}

func (f *fakeAids) Tips(_ context.Context, topic string) ([]studyaids.Tip, error) {
	if strings.TrimSpace(topic) == "" {
		return nil, studyaids.ErrEmptyTopic
	}
	if f.err != nil {
		return nil, f.err
	}
	return []studyaids.Tip{{Title: "Read the Constitution", Description: "Start with " + topic}}, nil
}

func (f *fakeAids) MCQs(_ context.Context, topic string) ([]studyaids.MCQ, error) {
	if strings.TrimSpace(topic) == "" {
		return nil, studyaids.ErrEmptyTopic
	}
	if f.err != nil {
		return nil, f.err
	}
	return []studyaids.MCQ{{Question: "Q?", Options: []string{"A", "B", "C", "D"}, Answer: "A"}}, nil
}

type testEnv struct {
	server    *Server
	generator *fakeGenerator
	news      *fakeNews
	auth      *fakeAuth
	aids      *fakeAids
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()

	gens, err := store.NewFileGenerationStore(dir)
	require.NoError(t, err)
	articles, err := store.NewFileArticleStore(dir)
	require.NoError(t, err)

	env := &testEnv{
		generator: &fakeGenerator{},
		news:      &fakeNews{articles: []store.Article{{"article_id": "n1", "title": "Budget"}}},
		auth:      &fakeAuth{clientID: "client-123"},
		aids:      &fakeAids{},
	}
	env.server, err = NewServer(Deps{
		Generator:   env.generator,
		Generations: gens,
		Articles:    articles,
		Catalog:     topics.MustDefault(),
		News:        env.news,
		Auth:        env.auth,
		StudyAids:   env.aids,
		Gatherer:    prometheus.NewRegistry(),
	}, logging.NewNop(), nil)
	require.NoError(t, err)
	return env
}

func (e *testEnv) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func detail(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[ErrorResponse](t, rec).Detail
}

func TestNewServer_RequiresDeps(t *testing.T) {
	_, err := NewServer(Deps{}, nil, nil)
	assert.Error(t, err)

	_, err = NewServer(Deps{}, logging.NewNop(), nil)
	assert.Error(t, err)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, HealthResponse{Status: "healthy", Message: "UPSC Mind Map API is running"}, decode[HealthResponse](t, rec))
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestGenerateMindMap(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/upsc-mindmap",
		`{"topic":"Federalism","paper_type":"GS2","preparation_stage":"Beginner","focus_areas":["polity"]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got := decode[workflow.MindMapResult](t, rec)
	assert.Equal(t, "Federalism", got.Topic)
	assert.Equal(t, []string{"one", "two"}, got.KeyConcepts)

	require.Len(t, env.generator.seen, 1)
	assert.Equal(t, "Beginner", env.generator.seen[0].PreparationStage)
	assert.Equal(t, []string{"polity"}, env.generator.seen[0].FocusAreas)
}

func TestGenerateMindMap_Errors(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/upsc-mindmap", `{"topic":"   "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, env.generator.seen)

	rec = env.do(t, http.MethodPost, "/api/upsc-mindmap", `{"topic":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	env.generator.err = errors.New("llm unavailable")
	rec = env.do(t, http.MethodPost, "/api/upsc-mindmap", `{"topic":"Monsoon"}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Error generating UPSC mind map: llm unavailable", detail(t, rec))
}

func TestSuggestedTopics(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/upsc-suggested-topics", "")
	require.Equal(t, http.StatusOK, rec.Code)

	got := decode[SuggestedTopicsResponse](t, rec)
	assert.Equal(t, topics.MustDefault().Suggested(), got.SuggestedTopics)
}

func TestSavedGenerations_Lifecycle(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/save-generation",
		`{"user_id":"u1","topic":"Federalism","preparation_stage":"beginner","focus_areas":["polity"],"mindmap_data":{"topic":"Federalism"},"generation_time":12.5}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	saved := decode[SaveGenerationResponse](t, rec)
	assert.Equal(t, "Generation saved successfully", saved.Message)
	require.NotEmpty(t, saved.ID)

	rec = env.do(t, http.MethodGet, "/api/saved-generations?user_id=u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[GenerationsResponse](t, rec)
	require.Len(t, list.Generations, 1)
	assert.Equal(t, saved.ID, list.Generations[0].ID)
	assert.JSONEq(t, `{"topic":"Federalism"}`, string(list.Generations[0].MindMapData))

	// Other users see nothing.
	rec = env.do(t, http.MethodGet, "/api/saved-generations?user_id=u2", "")
	assert.Empty(t, decode[GenerationsResponse](t, rec).Generations)
	rec = env.do(t, http.MethodGet, "/api/saved-generations/"+saved.ID+"?user_id=u2", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/saved-generations/"+saved.ID+"?user_id=u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 12.5, decode[store.Generation](t, rec).GenerationTime)

	rec = env.do(t, http.MethodDelete, "/api/saved-generations/"+saved.ID+"?user_id=u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Generation deleted successfully", decode[MessageResponse](t, rec).Message)

	rec = env.do(t, http.MethodDelete, "/api/saved-generations/"+saved.ID+"?user_id=u1", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Generation not found", detail(t, rec))
}

func TestSaveGeneration_Validation(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/save-generation", `{"topic":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/save-generation", `{"topic":"x","mindmap_data":[1,2]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// A missing user id is stored under the anonymous user.
	rec = env.do(t, http.MethodPost, "/api/save-generation", `{"topic":"x"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodGet, "/api/saved-generations", "")
	list := decode[GenerationsResponse](t, rec)
	require.Len(t, list.Generations, 1)
	assert.Equal(t, store.AnonymousUser, list.Generations[0].UserID)
}

func TestNews(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/news?page=1&size=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[ArticlesResponse](t, rec)
	require.Len(t, got.Articles, 1)
	assert.Equal(t, "n1", got.Articles[0].ID())

	rec = env.do(t, http.MethodGet, "/news?page=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNews_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		detail string
	}{
		{"no next page", news.ErrNoNextPage, http.StatusBadRequest, "No next page available"},
		{"missing key", news.ErrMissingAPIKey, http.StatusInternalServerError, "News API key not configured"},
		{"upstream", &news.UpstreamError{StatusCode: 429, Message: "rate limited"}, http.StatusBadGateway, ""},
		{"other", errors.New("boom"), http.StatusInternalServerError, "Error fetching news: boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.news.err = tt.err

			rec := env.do(t, http.MethodGet, "/news?page=2", "")
			require.Equal(t, tt.status, rec.Code)
			if tt.detail != "" {
				assert.Equal(t, tt.detail, detail(t, rec))
			}
		})
	}
}

func TestSavedArticles_Lifecycle(t *testing.T) {
	env := newTestEnv(t)

	body := `{"article_id":"a/1","title":"Monsoon report","link":"https://example.com/a1"}`
	for i := 0; i < 2; i++ {
		rec := env.do(t, http.MethodPost, "/save-article", body)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Article saved", decode[MessageResponse](t, rec).Message)
	}

	rec := env.do(t, http.MethodGet, "/saved-articles", "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[ArticlesResponse](t, rec)
	require.Len(t, got.Articles, 1)
	assert.Equal(t, "Monsoon report", got.Articles[0]["title"])

	rec = env.do(t, http.MethodDelete, "/saved-articles/a%2F1", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Article deleted", decode[MessageResponse](t, rec).Message)

	rec = env.do(t, http.MethodDelete, "/saved-articles/a%2F1", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Article not found", detail(t, rec))

	rec = env.do(t, http.MethodPost, "/save-article", `{"title":"no id"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/auth/client-id", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "client-123", decode[ClientIDResponse](t, rec).ClientID)

	env.auth.user = auth.User{Email: "aspirant@example.com", Name: "Aspirant"}
	rec = env.do(t, http.MethodPost, "/auth/google", `{"token":"tok"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "aspirant@example.com", decode[GoogleAuthResponse](t, rec).User.Email)

	rec = env.do(t, http.MethodPost, "/auth/google", `{"token":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	env.auth.err = fmt.Errorf("verify: %w", auth.ErrNotAllowed)
	rec = env.do(t, http.MethodPost, "/auth/google", `{"token":"tok"}`)
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Access denied: Your email is not authorized.", detail(t, rec))

	env.auth.err = fmt.Errorf("verify: %w", auth.ErrInvalidToken)
	rec = env.do(t, http.MethodPost, "/auth/google", `{"token":"tok"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid token", detail(t, rec))

	env.auth.clientID = ""
	rec = env.do(t, http.MethodGet, "/auth/client-id", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestStudyAids(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/upsc-tips/Indian%20Polity", "")
	require.Equal(t, http.StatusOK, rec.Code)
	tips := decode[TipsResponse](t, rec)
	assert.Equal(t, "Indian Polity", tips.Topic)
	require.Len(t, tips.Tips, 1)

	rec = env.do(t, http.MethodPost, "/api/generate-mcq", `{"topic":"Monsoon"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	mcqs := decode[MCQResponse](t, rec)
	assert.Equal(t, "Monsoon", mcqs.Topic)
	require.Len(t, mcqs.MCQs, 1)

	rec = env.do(t, http.MethodPost, "/api/generate-mcq", `{"topic":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	env.aids.err = errors.New("quota exceeded")
	rec = env.do(t, http.MethodPost, "/api/generate-mcq", `{"topic":"Monsoon"}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Error generating MCQs: quota exceeded", detail(t, rec))
}

func TestOptionalServicesMissing(t *testing.T) {
	dir := t.TempDir()
	gens, err := store.NewFileGenerationStore(dir)
	require.NoError(t, err)
	articles, err := store.NewFileArticleStore(dir)
	require.NoError(t, err)

	s, err := NewServer(Deps{
		Generator:   &fakeGenerator{},
		Generations: gens,
		Articles:    articles,
		Catalog:     topics.MustDefault(),
		Gatherer:    prometheus.NewRegistry(),
	}, logging.NewNop(), nil)
	require.NoError(t, err)
	env := &testEnv{server: s}

	assert.Equal(t, http.StatusInternalServerError, env.do(t, http.MethodGet, "/news", "").Code)
	assert.Equal(t, http.StatusInternalServerError, env.do(t, http.MethodGet, "/auth/client-id", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, env.do(t, http.MethodGet, "/api/upsc-tips/x", "").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUnknownRoute(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/nope", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Not Found", detail(t, rec))
}
