package store

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"
)

var (
	ErrNotFound    = errors.New("record not found")
	ErrUnavailable = errors.New("record store unavailable")
)

const StatusOpen = "open"

// Store holds records partitioned by category. Put is an upsert keyed by
// (Category, ItemId).
type Store interface {
	Get(ctx context.Context, category string, itemId string) (Record, error)
	Put(ctx context.Context, record Record) error
	QueryByCategory(ctx context.Context, category string, opts ...QueryOption) ([]Record, error)
}

type Record struct {
	Category     string
	ItemId       string
	OriginalText string
	Fields       map[string]string
	Confidence   int
	// EmbeddingId is empty when the record has no vector in the index.
	EmbeddingId      string
	EmbeddingBackend string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (r Record) Name() string {
	return r.Fields["name"]
}

func (r Record) Status() string {
	return r.Fields["status"]
}

func (r Record) Clone() Record {
	cpy := r
	cpy.Fields = maps.Clone(r.Fields)
	return cpy
}

func (r Record) Validate() error {
	if len(r.Category) == 0 || len(r.ItemId) == 0 {
		return errors.New("record requires category and item id")
	}
	return nil
}

// Matches reports whether r passes the status filter of options.
func (r Record) Matches(options QueryOptions) bool {
	return len(options.Status) == 0 || strings.EqualFold(r.Status(), options.Status)
}

// Unavailable marks err as a store failure while keeping the cause.
func Unavailable(err error) error {
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}
