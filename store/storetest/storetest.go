// Package storetest holds the behaviour every store.Store adapter must share.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/w-h-a/brain/store"
)

func Run(t *testing.T, s store.Store) {
	t.Run("get missing", func(t *testing.T) { testGetMissing(t, s) })
	t.Run("put then get", func(t *testing.T) { testPutGet(t, s) })
	t.Run("put overwrites", func(t *testing.T) { testOverwrite(t, s) })
	t.Run("query by category", func(t *testing.T) { testQueryByCategory(t, s) })
}

func testGetMissing(t *testing.T, s store.Store) {
	_, err := s.Get(context.Background(), "PEOPLE", "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testPutGet(t *testing.T, s store.Store) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

	rec := store.Record{
		Category:         "PROJECTS",
		ItemId:           "put-get",
		OriginalText:     "Call Sarah about Q4 budget",
		Fields:           map[string]string{"name": "Q4 budget", "status": "open"},
		Confidence:       82,
		EmbeddingId:      "emb-1",
		EmbeddingBackend: "openai",
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	require.NoError(t, s.Put(ctx, rec))

	got, err := s.Get(ctx, "PROJECTS", "put-get")
	require.NoError(t, err)

	assert.Equal(t, rec.OriginalText, got.OriginalText)
	assert.Equal(t, rec.Fields, got.Fields)
	assert.Equal(t, 82, got.Confidence)
	assert.Equal(t, "emb-1", got.EmbeddingId)
	assert.Equal(t, "openai", got.EmbeddingBackend)
	assert.True(t, now.Equal(got.CreatedAt))
	assert.True(t, now.Equal(got.UpdatedAt))

	_, err = s.Get(ctx, "IDEAS", "put-get")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testOverwrite(t *testing.T, s store.Store) {
	ctx := context.Background()
	created := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

	rec := store.Record{
		Category:     "ADMIN",
		ItemId:       "overwrite",
		OriginalText: "Renew passport",
		Fields:       map[string]string{"status": "open"},
		Confidence:   70,
		CreatedAt:    created,
		UpdatedAt:    created,
	}
	require.NoError(t, s.Put(ctx, rec))

	rec.OriginalText += "\n\nBook the appointment"
	rec.Fields = map[string]string{"status": "open", "next_action": "book"}
	rec.Confidence = 90
	rec.UpdatedAt = created.Add(time.Hour)
	require.NoError(t, s.Put(ctx, rec))

	got, err := s.Get(ctx, "ADMIN", "overwrite")
	require.NoError(t, err)
	assert.Equal(t, "Renew passport\n\nBook the appointment", got.OriginalText)
	assert.Equal(t, "book", got.Fields["next_action"])
	assert.Equal(t, 90, got.Confidence)
	assert.Empty(t, got.EmbeddingId)
	assert.True(t, created.Equal(got.CreatedAt))
	assert.True(t, created.Add(time.Hour).Equal(got.UpdatedAt))
}

func testQueryByCategory(t *testing.T, s store.Store) {
	ctx := context.Background()
	base := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	for i, status := range []string{"open", "done", "open"} {
		require.NoError(t, s.Put(ctx, store.Record{
			Category:  "IDEAS",
			ItemId:    []string{"idea-a", "idea-b", "idea-c"}[i],
			Fields:    map[string]string{"status": status},
			CreatedAt: base,
			UpdatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	all, err := s.QueryByCategory(ctx, "IDEAS")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "idea-c", all[0].ItemId)
	assert.Equal(t, "idea-a", all[2].ItemId)

	open, err := s.QueryByCategory(ctx, "IDEAS", store.WithStatus("open"))
	require.NoError(t, err)
	require.Len(t, open, 2)
	assert.Equal(t, "idea-c", open[0].ItemId)
	assert.Equal(t, "idea-a", open[1].ItemId)

	limited, err := s.QueryByCategory(ctx, "IDEAS", store.WithLimit(1))
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "idea-c", limited[0].ItemId)

	none, err := s.QueryByCategory(ctx, "PEOPLE", store.WithStatus("open"))
	require.NoError(t, err)
	assert.Empty(t, none)
}
