package store_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/fyrsmithlabs/mindmapd/internal/store"
	"github.com/fyrsmithlabs/mindmapd/internal/store/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileGenerationStore_Contract(t *testing.T) {
	s, err := store.NewFileGenerationStore(t.TempDir())
	require.NoError(t, err)
	storetest.RunGenerationStoreContract(t, s)
}

func TestFileGenerationStore_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := store.NewFileGenerationStore(dir)
	require.NoError(t, err)
	saved, err := s.Save(ctx, store.Generation{UserID: "asha", Topic: "Judicial Review"})
	require.NoError(t, err)

	reopened, err := store.NewFileGenerationStore(dir)
	require.NoError(t, err)
	got, err := reopened.Get(ctx, "asha", saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "Judicial Review", got.Topic)

	require.NoError(t, reopened.Delete(ctx, "asha", saved.ID))

	again, err := store.NewFileGenerationStore(dir)
	require.NoError(t, err)
	gens, err := again.List(ctx, "asha")
	require.NoError(t, err)
	assert.Empty(t, gens)
}

func TestFileGenerationStore_CorruptedFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, store.GenerationsFile), []byte("{not json"), 0600))

	_, err := store.NewFileGenerationStore(dir)
	assert.ErrorIs(t, err, store.ErrCorrupted)
}

func TestFileGenerationStore_EmptyFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, store.GenerationsFile), nil, 0600))

	s, err := store.NewFileGenerationStore(dir)
	require.NoError(t, err)
	gens, err := s.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, gens)
}

func TestFileArticleStore(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := store.NewFileArticleStore(dir)
	require.NoError(t, err)

	added, err := s.Save(ctx, store.Article{"article_id": "a1", "title": "Monsoon update"})
	require.NoError(t, err)
	assert.True(t, added)

	added, err = s.Save(ctx, store.Article{"article_id": "a1", "title": "duplicate"})
	require.NoError(t, err)
	assert.False(t, added, "duplicate article_id is ignored")

	_, err = s.Save(ctx, store.Article{"title": "no id"})
	assert.ErrorIs(t, err, store.ErrMissingArticleID)

	_, err = s.Save(ctx, store.Article{"article_id": "a2", "title": "GST council"})
	require.NoError(t, err)

	reopened, err := store.NewFileArticleStore(dir)
	require.NoError(t, err)
	articles, err := reopened.List(ctx)
	require.NoError(t, err)
	require.Len(t, articles, 2)
	assert.Equal(t, "Monsoon update", articles[0]["title"])
	assert.Equal(t, "a2", articles[1].ID())

	require.NoError(t, reopened.Delete(ctx, "a1"))
	assert.ErrorIs(t, reopened.Delete(ctx, "a1"), store.ErrNotFound)

	articles, err = reopened.List(ctx)
	require.NoError(t, err)
	require.Len(t, articles, 1)
	assert.Equal(t, "a2", articles[0].ID())
}

func TestArticle_ID(t *testing.T) {
	assert.Equal(t, "", store.Article{}.ID())
	assert.Equal(t, "abc", store.Article{"article_id": "abc"}.ID())
	assert.Equal(t, "42", store.Article{"article_id": float64(42)}.ID())
}

func TestNormalizeUser(t *testing.T) {
	assert.Equal(t, store.AnonymousUser, store.NormalizeUser(""))
	assert.Equal(t, store.AnonymousUser, store.NormalizeUser("   "))
	assert.Equal(t, "asha", store.NormalizeUser(" asha "))
}
