package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/w-h-a/brain/store"
	"github.com/w-h-a/brain/store/storetest"
)

func TestMemoryStore(t *testing.T) {
	storetest.Run(t, NewStore())
}

func TestGet_ReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	require.NoError(t, s.Put(ctx, store.Record{Category: "PEOPLE", ItemId: "i1", Fields: map[string]string{"name": "Sarah"}}))

	got, err := s.Get(ctx, "PEOPLE", "i1")
	require.NoError(t, err)
	got.Fields["name"] = "changed"

	again, err := s.Get(ctx, "PEOPLE", "i1")
	require.NoError(t, err)
	assert.Equal(t, "Sarah", again.Name())
}
