// Package store persists saved mind-map generations and saved news articles.
//
// Generations can live in a JSON file or in Redis; articles always live in a
// JSON file next to the generations file.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AnonymousUser owns generations saved without a user id.
const AnonymousUser = "anonymous"

var (
	// ErrNotFound is returned when a generation or article does not exist
	// for the requested owner.
	ErrNotFound = errors.New("not found")

	// ErrMissingArticleID is returned when an article has no article_id.
	ErrMissingArticleID = errors.New("article_id is required")

	// ErrCorrupted is returned when a store file cannot be decoded.
	ErrCorrupted = errors.New("store file corrupted")
)

// Generation is a mind map a user chose to keep.
type Generation struct {
	ID               string          `json:"id"`
	UserID           string          `json:"user_id"`
	Topic            string          `json:"topic"`
	PreparationStage string          `json:"preparation_stage"`
	FocusAreas       []string        `json:"focus_areas"`
	MindMapData      json.RawMessage `json:"mindmap_data"`
	GenerationTime   float64         `json:"generation_time"`
	CreatedAt        time.Time       `json:"created_at"`
}

// GenerationStore persists generations per user.
type GenerationStore interface {
	// Save stores g and returns it with ID, UserID and CreatedAt filled in.
	Save(ctx context.Context, g Generation) (Generation, error)
	// List returns the user's generations, newest first.
	List(ctx context.Context, userID string) ([]Generation, error)
	Get(ctx context.Context, userID, id string) (Generation, error)
	Delete(ctx context.Context, userID, id string) error
	Close() error
}

// Article is a news article as returned by the news provider. Only
// article_id is interpreted; every other field is kept as received.
type Article map[string]any

// ID returns the article_id field, or "" when it is missing.
func (a Article) ID() string {
	switch v := a["article_id"].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// ArticleStore persists bookmarked articles.
type ArticleStore interface {
	// Save stores a unless an article with the same id is already saved.
	// It reports whether a was added.
	Save(ctx context.Context, a Article) (bool, error)
	List(ctx context.Context) ([]Article, error)
	Delete(ctx context.Context, articleID string) error
}

// NormalizeUser maps an empty user id to AnonymousUser.
func NormalizeUser(userID string) string {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return AnonymousUser
	}
	return userID
}

// prepare fills the server-assigned fields of a new generation.
func prepare(g Generation, now time.Time) Generation {
	g.UserID = NormalizeUser(g.UserID)
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = now.UTC()
	}
	if g.FocusAreas == nil {
		g.FocusAreas = []string{}
	}
	if len(g.MindMapData) == 0 {
		g.MindMapData = json.RawMessage("{}")
	}
	return g
}

func sortNewestFirst(gens []Generation) {
	sort.SliceStable(gens, func(i, j int) bool {
		return gens[i].CreatedAt.After(gens[j].CreatedAt)
	})
}
