// Package postgres provides a PostgreSQL-backed eventstore.Storage via
// database/sql and github.com/lib/pq.
//
// The two uniqueness invariants are enforced by database constraints;
// constraint violations are mapped back to the store's conflict and
// duplicate failure types by constraint name.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/terraskye/eventstore"
)

// DBTX is the minimal database surface the storage needs. Both *sql.DB and
// *sql.Tx implement it, leaving transaction boundaries to the caller.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var (
	_ DBTX = (*sql.DB)(nil)
	_ DBTX = (*sql.Tx)(nil)
)

// Config contains configuration for the Postgres storage. Immutable after
// construction.
type Config struct {
	// Table is the name of the entries table.
	Table string
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{Table: "event_store_entries"}
}

// Schema returns the DDL for the entries table, including the two unique
// constraints the storage relies on.
func Schema(cfg Config) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %[1]s (
	insertion_id   BIGSERIAL PRIMARY KEY,
	bucket_id      TEXT        NOT NULL,
	stream_id      TEXT        NOT NULL,
	stream_version BIGINT      NOT NULL,
	committed_at   TIMESTAMPTZ NOT NULL,
	change_set_id  TEXT        NOT NULL,
	body           BYTEA       NOT NULL,
	CONSTRAINT %[1]s_stream_position UNIQUE (bucket_id, stream_id, stream_version),
	CONSTRAINT %[1]s_change_set UNIQUE (bucket_id, change_set_id)
);
CREATE INDEX IF NOT EXISTS %[1]s_bucket_idx ON %[1]s (bucket_id, insertion_id);`, cfg.Table)
}

var _ eventstore.Storage = (*Storage)(nil)

// Storage is a PostgreSQL-backed eventstore.Storage.
type Storage struct {
	db  DBTX
	cfg Config
}

// New creates a Postgres storage over db.
func New(db DBTX, cfg Config) *Storage {
	if cfg.Table == "" {
		cfg = DefaultConfig()
	}
	return &Storage{db: db, cfg: cfg}
}

// Write implements eventstore.Storage. The insert either fully applies or
// fails; with lib/pq every statement is flushed to the server before the
// row's insertion_id is returned.
func (s *Storage) Write(ctx context.Context, entry eventstore.StoredEntry) (int64, error) {
	query := fmt.Sprintf(`
		INSERT INTO %s (bucket_id, stream_id, stream_version, committed_at, change_set_id, body)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING insertion_id
	`, s.cfg.Table)

	var insertionID int64
	err := s.db.QueryRowContext(ctx, query,
		entry.BucketID,
		entry.StreamID,
		entry.StreamVersion,
		entry.Timestamp,
		entry.ChangeSetID,
		entry.Body,
	).Scan(&insertionID)
	if err != nil {
		return 0, s.mapWriteError(err, entry)
	}
	return insertionID, nil
}

// mapWriteError distinguishes the two unique-violation shapes by the name
// of the violated constraint.
func (s *Storage) mapWriteError(err error, entry eventstore.StoredEntry) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" { // unique_violation
		switch {
		case strings.HasSuffix(pqErr.Constraint, "_change_set"):
			return &eventstore.DuplicateError{
				BucketID:    entry.BucketID,
				ChangeSetID: entry.ChangeSetID,
			}
		case strings.HasSuffix(pqErr.Constraint, "_stream_position"):
			return &eventstore.ConflictError{
				BucketID:      entry.BucketID,
				StreamID:      entry.StreamID,
				StreamVersion: entry.StreamVersion,
			}
		}
	}
	return fmt.Errorf("postgres: insert entry: %w", err)
}

// Query implements eventstore.Storage.
func (s *Storage) Query(ctx context.Context, q eventstore.Query, offset, limit int) ([]eventstore.StoredEntry, error) {
	query, args := s.buildQuery(q, offset, limit)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: query entries: %w", err)
	}
	defer rows.Close()

	var entries []eventstore.StoredEntry
	for rows.Next() {
		var entry eventstore.StoredEntry
		if err := rows.Scan(
			&entry.InsertionID,
			&entry.BucketID,
			&entry.StreamID,
			&entry.StreamVersion,
			&entry.Timestamp,
			&entry.ChangeSetID,
			&entry.Body,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// buildQuery compiles one of the two fixed query templates.
func (s *Storage) buildQuery(q eventstore.Query, offset, limit int) (string, []any) {
	if q.StreamID != "" {
		query := fmt.Sprintf(`
			SELECT insertion_id, bucket_id, stream_id, stream_version, committed_at, change_set_id, body
			FROM %s
			WHERE bucket_id = $1 AND stream_id = $2 AND stream_version > $3 AND stream_version <= $4
			ORDER BY stream_version ASC
			OFFSET $5 LIMIT $6
		`, s.cfg.Table)
		return query, []any{q.BucketID, q.StreamID, q.MinVersion, q.MaxVersion, offset, limit}
	}
	query := fmt.Sprintf(`
		SELECT insertion_id, bucket_id, stream_id, stream_version, committed_at, change_set_id, body
		FROM %s
		WHERE bucket_id = $1
		ORDER BY insertion_id ASC
		OFFSET $2 LIMIT $3
	`, s.cfg.Table)
	return query, []any{q.BucketID, offset, limit}
}

// Count implements eventstore.Storage.
func (s *Storage) Count(ctx context.Context, q eventstore.Query) (int64, error) {
	var (
		query string
		args  []any
	)
	if q.StreamID != "" {
		query = fmt.Sprintf(`
			SELECT COUNT(*) FROM %s
			WHERE bucket_id = $1 AND stream_id = $2 AND stream_version > $3 AND stream_version <= $4
		`, s.cfg.Table)
		args = []any{q.BucketID, q.StreamID, q.MinVersion, q.MaxVersion}
	} else {
		query = fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE bucket_id = $1`, s.cfg.Table)
		args = []any{q.BucketID}
	}

	var count int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("postgres: count entries: %w", err)
	}
	return count, nil
}
