// Package storetest holds behaviour checks shared by every store backend.
package storetest

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/fyrsmithlabs/mindmapd/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunGenerationStoreContract exercises s against the GenerationStore
// contract. s must be empty.
func RunGenerationStoreContract(t *testing.T, s store.GenerationStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("SaveAssignsServerFields", func(t *testing.T) {
		saved, err := s.Save(ctx, store.Generation{
			Topic:            "Fundamental Rights",
			PreparationStage: "prelims",
			MindMapData:      json.RawMessage(`{"topic":"Fundamental Rights"}`),
			GenerationTime:   12.5,
		})
		require.NoError(t, err)

		assert.NotEmpty(t, saved.ID)
		assert.Equal(t, store.AnonymousUser, saved.UserID)
		assert.False(t, saved.CreatedAt.IsZero())
		assert.Equal(t, time.UTC, saved.CreatedAt.Location())
		assert.NotNil(t, saved.FocusAreas)

		got, err := s.Get(ctx, "", saved.ID)
		require.NoError(t, err)
		assert.Equal(t, saved.Topic, got.Topic)
		assert.JSONEq(t, `{"topic":"Fundamental Rights"}`, string(got.MindMapData))
		assert.InDelta(t, 12.5, got.GenerationTime, 1e-9)
	})

	t.Run("ListNewestFirstPerUser", func(t *testing.T) {
		base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		for i, topic := range []string{"Fiscal Policy", "Monetary Policy", "BRICS"} {
			_, err := s.Save(ctx, store.Generation{
				UserID:    "asha",
				Topic:     topic,
				CreatedAt: base.Add(time.Duration(i) * time.Hour),
			})
			require.NoError(t, err)
		}
		_, err := s.Save(ctx, store.Generation{UserID: "ravi", Topic: "QUAD Grouping"})
		require.NoError(t, err)

		gens, err := s.List(ctx, "asha")
		require.NoError(t, err)
		require.Len(t, gens, 3)
		assert.Equal(t, "BRICS", gens[0].Topic)
		assert.Equal(t, "Monetary Policy", gens[1].Topic)
		assert.Equal(t, "Fiscal Policy", gens[2].Topic)

		none, err := s.List(ctx, "nobody")
		require.NoError(t, err)
		assert.NotNil(t, none)
		assert.Empty(t, none)
	})

	t.Run("OwnershipIsEnforced", func(t *testing.T) {
		saved, err := s.Save(ctx, store.Generation{UserID: "meera", Topic: "Act East Policy"})
		require.NoError(t, err)

		_, err = s.Get(ctx, "someone-else", saved.ID)
		assert.ErrorIs(t, err, store.ErrNotFound)

		err = s.Delete(ctx, "someone-else", saved.ID)
		assert.ErrorIs(t, err, store.ErrNotFound)

		_, err = s.Get(ctx, "meera", saved.ID)
		assert.NoError(t, err)
	})

	t.Run("Delete", func(t *testing.T) {
		saved, err := s.Save(ctx, store.Generation{UserID: "kiran", Topic: "Caste System"})
		require.NoError(t, err)

		require.NoError(t, s.Delete(ctx, "kiran", saved.ID))

		_, err = s.Get(ctx, "kiran", saved.ID)
		assert.ErrorIs(t, err, store.ErrNotFound)

		err = s.Delete(ctx, "kiran", saved.ID)
		assert.ErrorIs(t, err, store.ErrNotFound)

		gens, err := s.List(ctx, "kiran")
		require.NoError(t, err)
		assert.Empty(t, gens)
	})

	t.Run("GetMissing", func(t *testing.T) {
		_, err := s.Get(ctx, "anonymous", "does-not-exist")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})
}
