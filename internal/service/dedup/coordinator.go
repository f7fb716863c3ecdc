package dedup

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/w-h-a/brain/classifier"
	"github.com/w-h-a/brain/embedder"
	"github.com/w-h-a/brain/index"
	"github.com/w-h-a/brain/internal/metrics"
	"github.com/w-h-a/brain/note"
	"github.com/w-h-a/brain/store"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("github.com/w-h-a/brain/internal/service/dedup")

type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
)

// Embedder is satisfied by *embedder.Gateway.
type Embedder interface {
	Embed(ctx context.Context, text string) (embedder.Embedding, error)
}

type Resolution struct {
	Action Action
	Record store.Record
	// Similarity is the score of the matched record. Zero on create.
	Similarity float64
	// Warnings are degradations that did not stop the note from being filed.
	Warnings []error
}

type candidate struct {
	hit    index.Hit
	record store.Record
}

// Coordinator decides whether a classified note updates an existing record
// or creates a new one, and keeps records and index entries pointing at
// each other. It holds no mutable state; two notes resolved concurrently
// in the same category may both create.
type Coordinator struct {
	store    store.Store
	index    index.Index
	embedder Embedder
	config   Config
	logger   *zap.Logger
	now      func() time.Time
	newId    func() string
}

func (c *Coordinator) Resolve(ctx context.Context, n note.Note, classification classifier.Result) (Resolution, error) {
	ctx, span := tracer.Start(
		ctx,
		"dedup.Resolve",
		trace.WithAttributes(attribute.String("brain.category", classification.Category.String())),
	)
	defer span.End()

	res, err := c.resolve(ctx, n, classification)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Resolution{}, err
	}

	span.SetAttributes(
		attribute.String("brain.action", string(res.Action)),
		attribute.Int("brain.warnings", len(res.Warnings)),
	)

	return res, nil
}

func (c *Coordinator) resolve(ctx context.Context, n note.Note, classification classifier.Result) (Resolution, error) {
	category := classification.Category.String()

	var warnings []error

	emb, err := c.embedder.Embed(ctx, n.Text)
	if err != nil {
		c.logger.Warn("embedding failed, creating without dedup", zap.String("category", category), zap.Error(err))
		warnings = append(warnings, err)
		return c.create(ctx, n, classification, nil, warnings)
	}

	hits, err := c.query(ctx, category, emb)
	if err != nil {
		c.logger.Warn("similarity query failed, creating without dedup", zap.String("category", category), zap.Error(err))
		warnings = append(warnings, err)
		return c.create(ctx, n, classification, &emb, warnings)
	}

	match, skipped, err := c.match(ctx, category, hits)
	if err != nil {
		return Resolution{}, err
	}
	warnings = append(warnings, skipped...)

	if match == nil {
		return c.create(ctx, n, classification, &emb, warnings)
	}

	return c.update(ctx, n, classification, *match, warnings)
}

func (c *Coordinator) query(ctx context.Context, category string, emb embedder.Embedding) ([]index.Hit, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.config.CallTimeout)
	defer cancel()

	return c.index.Query(
		callCtx,
		category,
		emb.Values,
		index.WithTopK(c.config.TopK),
		index.WithBackend(emb.Backend),
	)
}

// match loads the record behind every hit at or above the threshold and
// returns the best. Hits that do not lead back to their record are skipped.
func (c *Coordinator) match(ctx context.Context, category string, hits []index.Hit) (*candidate, []error, error) {
	var candidates []candidate
	var skipped []error

	for _, hit := range hits {
		if hit.Score < c.config.SimilarityThreshold {
			continue
		}

		rec, err := c.get(ctx, category, hit.ItemId)
		if errors.Is(err, store.ErrNotFound) {
			skipped = append(skipped, c.inconsistent(KindMissingRecord, category, hit))
			continue
		}
		if err != nil {
			return nil, skipped, fmt.Errorf("load record %s/%s: %w", category, hit.ItemId, err)
		}

		if rec.EmbeddingId != hit.EmbeddingId {
			skipped = append(skipped, c.inconsistent(KindEmbeddingMismatch, category, hit))
			continue
		}

		candidates = append(candidates, candidate{hit: hit, record: rec})
	}

	if len(candidates) == 0 {
		return nil, skipped, nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.hit.Score != b.hit.Score {
			return a.hit.Score > b.hit.Score
		}
		if !a.record.UpdatedAt.Equal(b.record.UpdatedAt) {
			return a.record.UpdatedAt.After(b.record.UpdatedAt)
		}
		return a.record.ItemId < b.record.ItemId
	})

	return &candidates[0], skipped, nil
}

func (c *Coordinator) inconsistent(kind, category string, hit index.Hit) error {
	metrics.Inconsistencies.WithLabelValues(kind).Inc()

	c.logger.Warn("skipping inconsistent index hit",
		zap.String("kind", kind),
		zap.String("category", category),
		zap.String("item_id", hit.ItemId),
		zap.String("embedding_id", hit.EmbeddingId),
		zap.Float64("score", hit.Score),
	)

	return &InconsistencyError{
		Kind:        kind,
		Category:    category,
		ItemId:      hit.ItemId,
		EmbeddingId: hit.EmbeddingId,
	}
}

func (c *Coordinator) update(ctx context.Context, n note.Note, classification classifier.Result, match candidate, warnings []error) (Resolution, error) {
	rec := match.record

	if rec.Fields == nil {
		rec.Fields = map[string]string{}
	}
	maps.Copy(rec.Fields, classification.Fields)

	if len(rec.OriginalText) > 0 {
		rec.OriginalText += c.config.TextSeparator + n.Text
	} else {
		rec.OriginalText = n.Text
	}
	rec.Confidence = classification.Confidence
	rec.UpdatedAt = c.now()

	if err := c.put(ctx, rec); err != nil {
		return Resolution{}, fmt.Errorf("update record %s/%s: %w", rec.Category, rec.ItemId, err)
	}

	c.logger.Info("note merged into existing record",
		zap.String("category", rec.Category),
		zap.String("item_id", rec.ItemId),
		zap.Float64("similarity", match.hit.Score),
	)

	return Resolution{
		Action:     ActionUpdated,
		Record:     rec,
		Similarity: match.hit.Score,
		Warnings:   warnings,
	}, nil
}

// create writes the record first and the vector second, so a failed vector
// write leaves an orphan reference rather than an unreachable vector.
func (c *Coordinator) create(ctx context.Context, n note.Note, classification classifier.Result, emb *embedder.Embedding, warnings []error) (Resolution, error) {
	now := c.now()

	fields := maps.Clone(classification.Fields)
	if fields == nil {
		fields = map[string]string{}
	}
	if len(fields[classifier.FieldStatus]) == 0 {
		fields[classifier.FieldStatus] = store.StatusOpen
	}

	rec := store.Record{
		Category:     classification.Category.String(),
		ItemId:       c.newId(),
		OriginalText: n.Text,
		Fields:       fields,
		Confidence:   classification.Confidence,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if emb != nil {
		rec.EmbeddingId = c.newId()
		rec.EmbeddingBackend = emb.Backend
	}

	if err := c.put(ctx, rec); err != nil {
		return Resolution{}, fmt.Errorf("create record %s: %w", rec.Category, err)
	}

	if emb != nil {
		if err := c.insert(ctx, rec, *emb); err != nil {
			metrics.Inconsistencies.WithLabelValues(KindOrphanReference).Inc()
			orphan := &OrphanReferenceError{
				Category:    rec.Category,
				ItemId:      rec.ItemId,
				EmbeddingId: rec.EmbeddingId,
				Err:         err,
			}
			c.logger.Warn("vector write failed after record write",
				zap.String("category", rec.Category),
				zap.String("item_id", rec.ItemId),
				zap.String("embedding_id", rec.EmbeddingId),
				zap.Error(err),
			)
			warnings = append(warnings, orphan)
		}
	}

	c.logger.Info("note filed as new record",
		zap.String("category", rec.Category),
		zap.String("item_id", rec.ItemId),
		zap.Bool("indexed", emb != nil),
	)

	return Resolution{
		Action:   ActionCreated,
		Record:   rec,
		Warnings: warnings,
	}, nil
}

func (c *Coordinator) get(ctx context.Context, category, itemId string) (store.Record, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.config.CallTimeout)
	defer cancel()

	return c.store.Get(callCtx, category, itemId)
}

func (c *Coordinator) put(ctx context.Context, rec store.Record) error {
	callCtx, cancel := context.WithTimeout(ctx, c.config.CallTimeout)
	defer cancel()

	return c.store.Put(callCtx, rec)
}

func (c *Coordinator) insert(ctx context.Context, rec store.Record, emb embedder.Embedding) error {
	callCtx, cancel := context.WithTimeout(ctx, c.config.CallTimeout)
	defer cancel()

	return c.index.Insert(callCtx, index.Entry{
		Category:    rec.Category,
		EmbeddingId: rec.EmbeddingId,
		ItemId:      rec.ItemId,
		Backend:     emb.Backend,
		Vector:      emb.Values,
	})
}

func New(s store.Store, idx index.Index, e Embedder, config Config, logger *zap.Logger) *Coordinator {
	if s == nil || idx == nil || e == nil {
		panic("dedup coordinator requires a store, an index and an embedder")
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Coordinator{
		store:    s,
		index:    idx,
		embedder: e,
		config:   config.withDefaults(),
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
		newId:    func() string { return uuid.New().String() },
	}
}
