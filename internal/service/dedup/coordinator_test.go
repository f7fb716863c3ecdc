package dedup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/w-h-a/brain/classifier"
	"github.com/w-h-a/brain/embedder"
	"github.com/w-h-a/brain/index"
	memoryindex "github.com/w-h-a/brain/index/memory"
	"github.com/w-h-a/brain/note"
	"github.com/w-h-a/brain/store"
	memorystore "github.com/w-h-a/brain/store/memory"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeEmbedder struct {
	backend string
	vectors map[string][]float32
	err     error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) (embedder.Embedding, error) {
	if f.err != nil {
		return embedder.Embedding{}, f.err
	}
	v, ok := f.vectors[text]
	if !ok {
		return embedder.Embedding{}, errors.New("no vector for text")
	}
	return embedder.Embedding{Values: v, Backend: f.backend}, nil
}

type faultyIndex struct {
	index.Index
	queryErr  error
	insertErr error
	hits      []index.Hit
}

func (f *faultyIndex) Query(ctx context.Context, category string, vector []float32, opts ...index.QueryOption) ([]index.Hit, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	if f.hits != nil {
		return f.hits, nil
	}
	return f.Index.Query(ctx, category, vector, opts...)
}

func (f *faultyIndex) Insert(ctx context.Context, entry index.Entry) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	return f.Index.Insert(ctx, entry)
}

type faultyStore struct {
	store.Store
	putErr error
}

func (f *faultyStore) Put(ctx context.Context, rec store.Record) error {
	if f.putErr != nil {
		return f.putErr
	}
	return f.Store.Put(ctx, rec)
}

const (
	budgetNote   = "Call Sarah about Q4 budget"
	budgetFollow = "Sarah says Q4 budget is approved"
	holidayNote  = "Plan summer holiday"
)

var vectors = map[string][]float32{
	budgetNote:   {1, 0, 0},
	budgetFollow: {0.96, 0.28, 0},
	holidayNote:  {0, 0, 1},
}

func projects(confidence int, fields map[string]string) classifier.Result {
	return classifier.Result{Category: classifier.Projects, Fields: fields, Confidence: confidence}
}

type fixture struct {
	store       store.Store
	index       *faultyIndex
	memoryIndex interface{ Len() int }
	embedder    *fakeEmbedder
	coordinator *Coordinator
	logs        *observer.ObservedLogs
	clock       time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	core, logs := observer.New(zapcore.DebugLevel)

	mem := memoryindex.NewIndex()
	f := &fixture{
		store:       memorystore.NewStore(),
		index:       &faultyIndex{Index: mem},
		memoryIndex: mem,
		embedder:    &fakeEmbedder{backend: "openai", vectors: vectors},
		logs:        logs,
		clock:       time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}

	f.coordinator = New(f.store, f.index, f.embedder, DefaultConfig(), zap.New(core))
	f.coordinator.now = func() time.Time {
		f.clock = f.clock.Add(time.Minute)
		return f.clock
	}

	return f
}

func TestResolve_FirstNoteCreates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.coordinator.Resolve(ctx, note.Note{Text: budgetNote}, projects(82, map[string]string{"name": "Q4 budget"}))
	require.NoError(t, err)

	assert.Equal(t, ActionCreated, res.Action)
	assert.Empty(t, res.Warnings)
	assert.Equal(t, "PROJECTS", res.Record.Category)
	assert.Equal(t, budgetNote, res.Record.OriginalText)
	assert.Equal(t, "Q4 budget", res.Record.Name())
	assert.Equal(t, store.StatusOpen, res.Record.Status())
	assert.Equal(t, "openai", res.Record.EmbeddingBackend)
	require.NotEmpty(t, res.Record.EmbeddingId)
	assert.Equal(t, res.Record.CreatedAt, res.Record.UpdatedAt)

	stored, err := f.store.Get(ctx, "PROJECTS", res.Record.ItemId)
	require.NoError(t, err)
	assert.Equal(t, res.Record.EmbeddingId, stored.EmbeddingId)

	hits, err := f.index.Query(ctx, "PROJECTS", vectors[budgetNote])
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, res.Record.EmbeddingId, hits[0].EmbeddingId)
	assert.Equal(t, res.Record.ItemId, hits[0].ItemId)
}

func TestResolve_SimilarNoteUpdates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.coordinator.Resolve(ctx, note.Note{Text: budgetNote}, projects(82, map[string]string{"name": "Q4 budget", "next_action": "call Sarah"}))
	require.NoError(t, err)

	second, err := f.coordinator.Resolve(ctx, note.Note{Text: budgetFollow}, projects(91, map[string]string{"next_action": "send invoice"}))
	require.NoError(t, err)

	assert.Equal(t, ActionUpdated, second.Action)
	assert.InDelta(t, 0.96, second.Similarity, 1e-6)
	assert.Equal(t, first.Record.ItemId, second.Record.ItemId)
	assert.Equal(t, first.Record.EmbeddingId, second.Record.EmbeddingId)
	assert.Equal(t, budgetNote+"\n\n"+budgetFollow, second.Record.OriginalText)
	assert.Equal(t, "Q4 budget", second.Record.Name())
	assert.Equal(t, "send invoice", second.Record.Fields["next_action"])
	assert.Equal(t, 91, second.Record.Confidence)
	assert.Equal(t, first.Record.CreatedAt, second.Record.CreatedAt)
	assert.True(t, second.Record.UpdatedAt.After(first.Record.UpdatedAt))

	assert.Equal(t, 1, f.memoryIndex.Len())

	records, err := f.store.QueryByCategory(ctx, "PROJECTS")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, second.Record.OriginalText, records[0].OriginalText)
}

func TestResolve_DissimilarNoteCreates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.coordinator.Resolve(ctx, note.Note{Text: budgetNote}, projects(82, nil))
	require.NoError(t, err)

	second, err := f.coordinator.Resolve(ctx, note.Note{Text: holidayNote}, projects(75, nil))
	require.NoError(t, err)

	assert.Equal(t, ActionCreated, second.Action)
	assert.NotEqual(t, first.Record.ItemId, second.Record.ItemId)
	assert.Equal(t, 2, f.memoryIndex.Len())
}

func TestResolve_CategoriesArePartitioned(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.coordinator.Resolve(ctx, note.Note{Text: budgetNote}, projects(82, nil))
	require.NoError(t, err)

	res, err := f.coordinator.Resolve(ctx, note.Note{Text: budgetNote}, classifier.Result{Category: classifier.People, Confidence: 80})
	require.NoError(t, err)

	assert.Equal(t, ActionCreated, res.Action)
	assert.Equal(t, "PEOPLE", res.Record.Category)
}

func TestResolve_BackendsAreNeverCompared(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.coordinator.Resolve(ctx, note.Note{Text: budgetNote}, projects(82, nil))
	require.NoError(t, err)

	f.embedder.backend = "ollama"

	res, err := f.coordinator.Resolve(ctx, note.Note{Text: budgetNote}, projects(82, nil))
	require.NoError(t, err)

	assert.Equal(t, ActionCreated, res.Action)
	assert.Equal(t, "ollama", res.Record.EmbeddingBackend)
}

func TestResolve_EmbedFailureCreatesWithoutVector(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.embedder.err = &embedder.UnavailableError{}

	res, err := f.coordinator.Resolve(ctx, note.Note{Text: budgetNote}, projects(82, nil))
	require.NoError(t, err)

	assert.Equal(t, ActionCreated, res.Action)
	assert.Empty(t, res.Record.EmbeddingId)
	assert.Empty(t, res.Record.EmbeddingBackend)
	require.Len(t, res.Warnings, 1)
	assert.ErrorIs(t, res.Warnings[0], embedder.ErrUnavailable)
	assert.Equal(t, 0, f.memoryIndex.Len())

	_, err = f.store.Get(ctx, "PROJECTS", res.Record.ItemId)
	assert.NoError(t, err)
}

func TestResolve_QueryFailureStillIndexes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.coordinator.Resolve(ctx, note.Note{Text: budgetNote}, projects(82, nil))
	require.NoError(t, err)

	f.index.queryErr = index.Unavailable(errors.New("connection refused"))

	res, err := f.coordinator.Resolve(ctx, note.Note{Text: budgetFollow}, projects(90, nil))
	require.NoError(t, err)

	assert.Equal(t, ActionCreated, res.Action)
	assert.NotEmpty(t, res.Record.EmbeddingId)
	require.Len(t, res.Warnings, 1)
	assert.ErrorIs(t, res.Warnings[0], index.ErrUnavailable)
	assert.Equal(t, 2, f.memoryIndex.Len())
	assert.Equal(t, 1, f.logs.FilterMessage("similarity query failed, creating without dedup").Len())
}

func TestResolve_InsertFailureLeavesOrphanReference(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.index.insertErr = index.Unavailable(errors.New("timeout"))

	res, err := f.coordinator.Resolve(ctx, note.Note{Text: budgetNote}, projects(82, nil))
	require.NoError(t, err)

	assert.Equal(t, ActionCreated, res.Action)
	require.Len(t, res.Warnings, 1)

	var orphan *OrphanReferenceError
	require.ErrorAs(t, res.Warnings[0], &orphan)
	assert.Equal(t, res.Record.ItemId, orphan.ItemId)
	assert.Equal(t, res.Record.EmbeddingId, orphan.EmbeddingId)
	assert.ErrorIs(t, res.Warnings[0], index.ErrUnavailable)

	stored, err := f.store.Get(ctx, "PROJECTS", res.Record.ItemId)
	require.NoError(t, err)
	assert.Equal(t, res.Record.EmbeddingId, stored.EmbeddingId)
	assert.Equal(t, 0, f.memoryIndex.Len())
}

func TestResolve_StoreFailureIsFatalAndWritesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	failing := &faultyStore{Store: f.store, putErr: store.Unavailable(errors.New("disk full"))}
	f.coordinator.store = failing

	_, err := f.coordinator.Resolve(ctx, note.Note{Text: budgetNote}, projects(82, nil))
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrUnavailable)

	assert.Equal(t, 0, f.memoryIndex.Len())

	records, err := f.store.QueryByCategory(ctx, "PROJECTS")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestResolve_MissingRecordHitIsSkipped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.index.hits = []index.Hit{{EmbeddingId: "ghost-emb", ItemId: "ghost", Score: 0.99}}

	res, err := f.coordinator.Resolve(ctx, note.Note{Text: budgetNote}, projects(82, nil))
	require.NoError(t, err)

	assert.Equal(t, ActionCreated, res.Action)
	require.Len(t, res.Warnings, 1)

	var inconsistency *InconsistencyError
	require.ErrorAs(t, res.Warnings[0], &inconsistency)
	assert.Equal(t, KindMissingRecord, inconsistency.Kind)
	assert.Equal(t, 1, f.logs.FilterMessage("skipping inconsistent index hit").Len())
}

func TestResolve_MismatchedEmbeddingIsSkipped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.Put(ctx, store.Record{
		Category:    "PROJECTS",
		ItemId:      "stale",
		EmbeddingId: "current-emb",
		Fields:      map[string]string{},
	}))
	f.index.hits = []index.Hit{{EmbeddingId: "old-emb", ItemId: "stale", Score: 0.97}}

	res, err := f.coordinator.Resolve(ctx, note.Note{Text: budgetNote}, projects(82, nil))
	require.NoError(t, err)

	assert.Equal(t, ActionCreated, res.Action)
	assert.NotEqual(t, "stale", res.Record.ItemId)

	var inconsistency *InconsistencyError
	require.ErrorAs(t, res.Warnings[0], &inconsistency)
	assert.Equal(t, KindEmbeddingMismatch, inconsistency.Kind)
}

func TestResolve_TiesPreferMostRecentlyUpdated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	older := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(24 * time.Hour)

	for _, rec := range []store.Record{
		{Category: "PROJECTS", ItemId: "a-older", EmbeddingId: "e-a", UpdatedAt: older, Fields: map[string]string{}},
		{Category: "PROJECTS", ItemId: "b-newer", EmbeddingId: "e-b", UpdatedAt: newer, Fields: map[string]string{}},
		{Category: "PROJECTS", ItemId: "c-best", EmbeddingId: "e-c", UpdatedAt: older, Fields: map[string]string{}},
	} {
		require.NoError(t, f.store.Put(ctx, rec))
	}

	f.index.hits = []index.Hit{
		{EmbeddingId: "e-a", ItemId: "a-older", Score: 0.9},
		{EmbeddingId: "e-b", ItemId: "b-newer", Score: 0.9},
	}

	res, err := f.coordinator.Resolve(ctx, note.Note{Text: budgetNote}, projects(82, nil))
	require.NoError(t, err)
	assert.Equal(t, ActionUpdated, res.Action)
	assert.Equal(t, "b-newer", res.Record.ItemId)

	f.index.hits = []index.Hit{
		{EmbeddingId: "e-b", ItemId: "b-newer", Score: 0.9},
		{EmbeddingId: "e-c", ItemId: "c-best", Score: 0.95},
	}

	res, err = f.coordinator.Resolve(ctx, note.Note{Text: budgetNote}, projects(82, nil))
	require.NoError(t, err)
	assert.Equal(t, "c-best", res.Record.ItemId)
}

func TestResolve_ThresholdIsInclusive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.Put(ctx, store.Record{Category: "PROJECTS", ItemId: "edge", EmbeddingId: "e-edge", Fields: map[string]string{}}))

	f.index.hits = []index.Hit{{EmbeddingId: "e-edge", ItemId: "edge", Score: 0.85}}
	res, err := f.coordinator.Resolve(ctx, note.Note{Text: budgetNote}, projects(82, nil))
	require.NoError(t, err)
	assert.Equal(t, ActionUpdated, res.Action)

	f.index.hits = []index.Hit{{EmbeddingId: "e-edge", ItemId: "edge", Score: 0.8499}}
	res, err = f.coordinator.Resolve(ctx, note.Note{Text: budgetNote}, projects(82, nil))
	require.NoError(t, err)
	assert.Equal(t, ActionCreated, res.Action)
}
