package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/w-h-a/brain/store"
	"go.nhat.io/otelsql"
	semconv "go.opentelemetry.io/otel/semconv/v1.20.0"
)

var DRIVER string

func init() {
	driver, err := otelsql.Register(
		"sqlite3",
		otelsql.TraceQueryWithoutArgs(),
		otelsql.TraceRowsClose(),
		otelsql.TraceRowsAffected(),
		otelsql.WithSystem(semconv.DBSystemSqlite),
	)
	if err != nil {
		panic(fmt.Sprintf("failed to register sqlite store with otel: %v", err))
	}

	DRIVER = driver
}

const schema = `
	CREATE TABLE IF NOT EXISTS records (
		category TEXT NOT NULL,
		item_id TEXT NOT NULL,
		original_text TEXT NOT NULL DEFAULT '',
		fields TEXT NOT NULL DEFAULT '{}',
		status TEXT NOT NULL DEFAULT '',
		confidence INTEGER NOT NULL DEFAULT 0,
		embedding_id TEXT NOT NULL DEFAULT '',
		embedding_backend TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (category, item_id)
	);
	CREATE INDEX IF NOT EXISTS records_category_status_idx ON records (category, status, updated_at);
`

type sqliteStore struct {
	options store.Options
	conn    *sql.DB
}

func (s *sqliteStore) Get(ctx context.Context, category string, itemId string) (store.Record, error) {
	query := `
		SELECT
			category,
			item_id,
			original_text,
			fields,
			confidence,
			embedding_id,
			embedding_backend,
			created_at,
			updated_at
		FROM records
		WHERE category = ? AND item_id = ?
	`

	rec, err := scan(s.conn.QueryRowContext(ctx, query, category, itemId))
	if errors.Is(err, sql.ErrNoRows) {
		return store.Record{}, store.ErrNotFound
	}
	if err != nil {
		return store.Record{}, store.Unavailable(err)
	}

	return rec, nil
}

func (s *sqliteStore) Put(ctx context.Context, record store.Record) error {
	if err := record.Validate(); err != nil {
		return err
	}

	fields, err := json.Marshal(record.Fields)
	if err != nil {
		return fmt.Errorf("marshal fields: %w", err)
	}

	query := `
		INSERT INTO records (
			category,
			item_id,
			original_text,
			fields,
			status,
			confidence,
			embedding_id,
			embedding_backend,
			created_at,
			updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (category, item_id) DO UPDATE SET
			original_text = excluded.original_text,
			fields = excluded.fields,
			status = excluded.status,
			confidence = excluded.confidence,
			embedding_id = excluded.embedding_id,
			embedding_backend = excluded.embedding_backend,
			updated_at = excluded.updated_at
	`

	if _, err := s.conn.ExecContext(
		ctx,
		query,
		record.Category,
		record.ItemId,
		record.OriginalText,
		string(fields),
		strings.ToLower(record.Status()),
		record.Confidence,
		record.EmbeddingId,
		record.EmbeddingBackend,
		record.CreatedAt.UnixNano(),
		record.UpdatedAt.UnixNano(),
	); err != nil {
		return store.Unavailable(err)
	}

	return nil
}

func (s *sqliteStore) QueryByCategory(ctx context.Context, category string, opts ...store.QueryOption) ([]store.Record, error) {
	options := store.NewQueryOptions(opts...)

	limit := options.Limit
	if limit < 1 {
		limit = -1
	}

	query := `
		SELECT
			category,
			item_id,
			original_text,
			fields,
			confidence,
			embedding_id,
			embedding_backend,
			created_at,
			updated_at
		FROM records
		WHERE category = ?
			AND (? = '' OR status = ?)
		ORDER BY updated_at DESC, item_id
		LIMIT ?
	`

	status := strings.ToLower(options.Status)

	rows, err := s.conn.QueryContext(ctx, query, category, status, status, limit)
	if err != nil {
		return nil, store.Unavailable(err)
	}
	defer rows.Close()

	records := []store.Record{}

	for rows.Next() {
		rec, err := scan(rows)
		if err != nil {
			return nil, store.Unavailable(err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, store.Unavailable(err)
	}

	return records, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(row scanner) (store.Record, error) {
	var rec store.Record
	var fields string
	var createdAt, updatedAt int64

	if err := row.Scan(
		&rec.Category,
		&rec.ItemId,
		&rec.OriginalText,
		&fields,
		&rec.Confidence,
		&rec.EmbeddingId,
		&rec.EmbeddingBackend,
		&createdAt,
		&updatedAt,
	); err != nil {
		return store.Record{}, err
	}

	if err := json.Unmarshal([]byte(fields), &rec.Fields); err != nil {
		return store.Record{}, fmt.Errorf("decode fields of %s/%s: %w", rec.Category, rec.ItemId, err)
	}

	rec.CreatedAt = time.Unix(0, createdAt).UTC()
	rec.UpdatedAt = time.Unix(0, updatedAt).UTC()

	return rec, nil
}

func (s *sqliteStore) Close() error {
	return s.conn.Close()
}

func NewStore(opts ...store.Option) *sqliteStore {
	options := store.NewOptions(opts...)

	if len(options.Location) == 0 {
		panic("missing location for sqlite store")
	}

	dsn := options.Location
	if !strings.Contains(dsn, "?") {
		dsn += "?_busy_timeout=5000"
	}

	conn, err := sql.Open(DRIVER, dsn)
	if err != nil {
		panic(fmt.Sprintf("failed to open sqlite store: %v", err))
	}

	// sqlite allows one writer at a time
	conn.SetMaxOpenConns(1)

	if err := conn.PingContext(options.Context); err != nil {
		panic(fmt.Sprintf("failed to ping sqlite store: %v", err))
	}

	if _, err := conn.ExecContext(options.Context, schema); err != nil {
		panic(fmt.Sprintf("failed to migrate sqlite store: %v", err))
	}

	return &sqliteStore{
		options: options,
		conn:    conn,
	}
}
