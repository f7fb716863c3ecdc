package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/w-h-a/brain/store"
)

type memoryStore struct {
	options store.Options
	records map[string]map[string]store.Record
	mtx     sync.RWMutex
}

func (s *memoryStore) Get(ctx context.Context, category string, itemId string) (store.Record, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	rec, ok := s.records[category][itemId]
	if !ok {
		return store.Record{}, store.ErrNotFound
	}

	return rec.Clone(), nil
}

func (s *memoryStore) Put(ctx context.Context, record store.Record) error {
	if err := record.Validate(); err != nil {
		return err
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()

	partition, ok := s.records[record.Category]
	if !ok {
		partition = map[string]store.Record{}
		s.records[record.Category] = partition
	}

	partition[record.ItemId] = record.Clone()

	return nil
}

func (s *memoryStore) QueryByCategory(ctx context.Context, category string, opts ...store.QueryOption) ([]store.Record, error) {
	options := store.NewQueryOptions(opts...)

	s.mtx.RLock()
	defer s.mtx.RUnlock()

	records := []store.Record{}

	for _, rec := range s.records[category] {
		if !rec.Matches(options) {
			continue
		}
		records = append(records, rec.Clone())
	}

	sort.Slice(records, func(i, j int) bool {
		if !records[i].UpdatedAt.Equal(records[j].UpdatedAt) {
			return records[i].UpdatedAt.After(records[j].UpdatedAt)
		}
		return records[i].ItemId < records[j].ItemId
	})

	if options.Limit > 0 && len(records) > options.Limit {
		records = records[:options.Limit]
	}

	return records, nil
}

func NewStore(opts ...store.Option) *memoryStore {
	options := store.NewOptions(opts...)

	s := &memoryStore{
		options: options,
		records: map[string]map[string]store.Record{},
		mtx:     sync.RWMutex{},
	}

	return s
}
