package dedup

import "fmt"

const (
	KindMissingRecord     = "missing_record"
	KindEmbeddingMismatch = "embedding_mismatch"
	KindOrphanReference   = "orphan_reference"
)

// OrphanReferenceError reports a record written with an EmbeddingId whose
// vector never reached the index.
type OrphanReferenceError struct {
	Category    string
	ItemId      string
	EmbeddingId string
	Err         error
}

func (e *OrphanReferenceError) Error() string {
	return fmt.Sprintf("record %s/%s references embedding %s missing from index: %v", e.Category, e.ItemId, e.EmbeddingId, e.Err)
}

func (e *OrphanReferenceError) Unwrap() error {
	return e.Err
}

// InconsistencyError reports an index hit that does not lead back to a
// matching record. Such hits are skipped.
type InconsistencyError struct {
	Kind        string
	Category    string
	ItemId      string
	EmbeddingId string
}

func (e *InconsistencyError) Error() string {
	return fmt.Sprintf("index hit %s for %s/%s skipped: %s", e.EmbeddingId, e.Category, e.ItemId, e.Kind)
}
