package brain

import (
	"context"
	"errors"
	"io"

	"github.com/w-h-a/brain/classifier"
	"github.com/w-h-a/brain/embedder"
	"github.com/w-h-a/brain/index"
	"github.com/w-h-a/brain/internal/service/dedup"
	"github.com/w-h-a/brain/internal/service/ingest"
	"github.com/w-h-a/brain/note"
	"github.com/w-h-a/brain/store"
)

type (
	Reply   = ingest.Reply
	Outcome = ingest.Outcome
	Note    = note.Note
	Record  = store.Record
)

const (
	MetadataMessageId  = ingest.MetadataMessageId
	MetadataSource     = ingest.MetadataSource
	MetadataReceivedAt = ingest.MetadataReceivedAt
)

// Brain files notes: classify, gate on confidence, then create or update a
// record depending on what the similarity index already holds.
type Brain struct {
	ingest   *ingest.Service
	embedder *embedder.Gateway
	store    store.Store
	index    index.Index
}

func (b *Brain) Ingest(ctx context.Context, n Note) (Outcome, error) {
	return b.ingest.Ingest(ctx, n)
}

func (b *Brain) Handle(ctx context.Context, text string, metadata map[string]string) (Reply, error) {
	return b.ingest.Handle(ctx, text, metadata)
}

// Records lists a category, most recently updated first. An empty status lists all.
func (b *Brain) Records(ctx context.Context, category classifier.Category, status string) ([]Record, error) {
	return b.ingest.Records(ctx, category, status)
}

// Close releases the embedder, store and index connections when they hold any.
func (b *Brain) Close() error {
	var errs []error
	for _, c := range []any{b.embedder, b.store, b.index} {
		if closer, ok := c.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func New(
	classifier *classifier.Gateway,
	embedder *embedder.Gateway,
	store store.Store,
	index index.Index,
	opts ...Option,
) *Brain {
	options := NewOptions(opts...)

	coordinator := dedup.New(
		store,
		index,
		embedder,
		options.Dedup,
		options.Logger.Named("dedup"),
	)

	ingest := ingest.New(
		classifier,
		coordinator,
		store,
		ingest.WithConfidenceThreshold(options.ConfidenceThreshold),
		ingest.WithLogger(options.Logger.Named("ingest")),
	)

	b := &Brain{
		ingest:   ingest,
		embedder: embedder,
		store:    store,
		index:    index,
	}

	return b
}
