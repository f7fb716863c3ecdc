package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/w-h-a/brain/index"
)

type memoryIndex struct {
	options index.Options
	entries map[string]index.Entry
	mtx     sync.RWMutex
}

func (m *memoryIndex) Insert(ctx context.Context, entry index.Entry) error {
	if err := entry.Validate(); err != nil {
		return err
	}

	m.mtx.Lock()
	defer m.mtx.Unlock()

	cpy := make([]float32, len(entry.Vector))
	copy(cpy, entry.Vector)
	entry.Vector = cpy

	m.entries[entry.EmbeddingId] = entry

	return nil
}

func (m *memoryIndex) Query(ctx context.Context, category string, vector []float32, opts ...index.QueryOption) ([]index.Hit, error) {
	options := index.NewQueryOptions(opts...)

	if options.TopK < 1 {
		return nil, nil
	}

	m.mtx.RLock()
	defer m.mtx.RUnlock()

	candidates := make([]index.Hit, 0, len(m.entries))

	for _, entry := range m.entries {
		if entry.Category != category {
			continue
		}
		if len(options.Backend) > 0 && entry.Backend != options.Backend {
			continue
		}
		candidates = append(candidates, index.Hit{
			EmbeddingId: entry.EmbeddingId,
			ItemId:      entry.ItemId,
			Score:       index.CosineSimilarity(vector, entry.Vector),
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].EmbeddingId < candidates[j].EmbeddingId
	})

	if len(candidates) > options.TopK {
		candidates = candidates[:options.TopK]
	}

	return candidates, nil
}

// Len reports the number of stored entries.
func (m *memoryIndex) Len() int {
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	return len(m.entries)
}

func NewIndex(opts ...index.Option) *memoryIndex {
	options := index.NewOptions(opts...)

	m := &memoryIndex{
		options: options,
		entries: map[string]index.Entry{},
		mtx:     sync.RWMutex{},
	}

	return m
}
