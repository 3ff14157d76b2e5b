package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// File names used inside the data directory.
const (
	GenerationsFile = "saved_generations.json"
	ArticlesFile    = "saved_articles.json"
)

// FileGenerationStore keeps generations in memory and rewrites the backing
// JSON file on every change.
type FileGenerationStore struct {
	mu    sync.Mutex
	path  string
	items []Generation
	now   func() time.Time
}

// NewFileGenerationStore opens or creates the generations file in dir.
func NewFileGenerationStore(dir string) (*FileGenerationStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	s := &FileGenerationStore{
		path:  filepath.Join(dir, GenerationsFile),
		items: []Generation{},
		now:   time.Now,
	}
	if _, err := readJSONFile(s.path, &s.items); err != nil {
		return nil, fmt.Errorf("failed to load generations: %w", err)
	}
	return s, nil
}

// Save implements GenerationStore.
func (s *FileGenerationStore) Save(_ context.Context, g Generation) (Generation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g = prepare(g, s.now())
	s.items = append(s.items, g)
	if err := writeJSONFile(s.path, s.items); err != nil {
		s.items = s.items[:len(s.items)-1]
		return Generation{}, err
	}
	return g, nil
}

// List implements GenerationStore.
func (s *FileGenerationStore) List(_ context.Context, userID string) ([]Generation, error) {
	userID = NormalizeUser(userID)

	s.mu.Lock()
	defer s.mu.Unlock()

	out := []Generation{}
	for _, g := range s.items {
		if g.UserID == userID {
			out = append(out, g)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

// Get implements GenerationStore.
func (s *FileGenerationStore) Get(_ context.Context, userID, id string) (Generation, error) {
	userID = NormalizeUser(userID)

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, g := range s.items {
		if g.ID == id && g.UserID == userID {
			return g, nil
		}
	}
	return Generation{}, ErrNotFound
}

// Delete implements GenerationStore.
func (s *FileGenerationStore) Delete(_ context.Context, userID, id string) error {
	userID = NormalizeUser(userID)

	s.mu.Lock()
	defer s.mu.Unlock()

	kept := make([]Generation, 0, len(s.items))
	for _, g := range s.items {
		if g.ID == id && g.UserID == userID {
			continue
		}
		kept = append(kept, g)
	}
	if len(kept) == len(s.items) {
		return ErrNotFound
	}
	if err := writeJSONFile(s.path, kept); err != nil {
		return err
	}
	s.items = kept
	return nil
}

// Close implements GenerationStore.
func (s *FileGenerationStore) Close() error { return nil }

// FileArticleStore keeps bookmarked articles in a JSON array file.
type FileArticleStore struct {
	mu    sync.Mutex
	path  string
	items []Article
}

// NewFileArticleStore opens or creates the articles file in dir.
func NewFileArticleStore(dir string) (*FileArticleStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	s := &FileArticleStore{
		path:  filepath.Join(dir, ArticlesFile),
		items: []Article{},
	}
	if _, err := readJSONFile(s.path, &s.items); err != nil {
		return nil, fmt.Errorf("failed to load articles: %w", err)
	}
	return s, nil
}

// Save implements ArticleStore.
func (s *FileArticleStore) Save(_ context.Context, a Article) (bool, error) {
	id := a.ID()
	if id == "" {
		return false, ErrMissingArticleID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.items {
		if existing.ID() == id {
			return false, nil
		}
	}
	s.items = append(s.items, a)
	if err := writeJSONFile(s.path, s.items); err != nil {
		s.items = s.items[:len(s.items)-1]
		return false, err
	}
	return true, nil
}

// List implements ArticleStore.
func (s *FileArticleStore) List(_ context.Context) ([]Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Article, len(s.items))
	copy(out, s.items)
	return out, nil
}

// Delete implements ArticleStore.
func (s *FileArticleStore) Delete(_ context.Context, articleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := make([]Article, 0, len(s.items))
	for _, a := range s.items {
		if a.ID() != articleID {
			kept = append(kept, a)
		}
	}
	if len(kept) == len(s.items) {
		return ErrNotFound
	}
	if err := writeJSONFile(s.path, kept); err != nil {
		return err
	}
	s.items = kept
	return nil
}

// readJSONFile decodes path into v. A missing file leaves v untouched and
// reports false.
func readJSONFile(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("%w: %s: %v", ErrCorrupted, filepath.Base(path), err)
	}
	return true, nil
}

// writeJSONFile writes v to path atomically.
func writeJSONFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename %s: %w", filepath.Base(path), err)
	}
	return nil
}

var (
	_ GenerationStore = (*FileGenerationStore)(nil)
	_ ArticleStore    = (*FileArticleStore)(nil)
)
