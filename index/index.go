package index

import (
	"context"
	"errors"
	"fmt"
)

var ErrUnavailable = errors.New("similarity index unavailable")

// Index finds the nearest stored vectors within one category partition.
// Entries are never compared across categories or embedding backends.
type Index interface {
	Query(ctx context.Context, category string, vector []float32, opts ...QueryOption) ([]Hit, error)
	Insert(ctx context.Context, entry Entry) error
}

// Entry is one vector. ItemId points back at the owning record.
type Entry struct {
	Category    string
	EmbeddingId string
	ItemId      string
	Backend     string
	Vector      []float32
}

func (e Entry) Validate() error {
	if len(e.Category) == 0 || len(e.EmbeddingId) == 0 || len(e.ItemId) == 0 {
		return errors.New("index entry requires category, embedding id and item id")
	}
	if len(e.Vector) == 0 {
		return errors.New("index entry requires a vector")
	}
	return nil
}

// Hit is a query result. Score is cosine similarity, higher is closer.
type Hit struct {
	EmbeddingId string
	ItemId      string
	Score       float64
}

// Unavailable marks err as an index failure while keeping the cause.
func Unavailable(err error) error {
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}
