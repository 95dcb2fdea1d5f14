package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/custodia-labs/sercha-sync/internal/core/ports/driven"
)

// Store is a PostgreSQL database shared by the document and job history stores.
type Store struct {
	db         *sql.DB
	dimensions int
}

// StoreOption configures the connection pool.
type StoreOption func(*sql.DB)

// WithMaxOpenConns bounds the connection pool.
func WithMaxOpenConns(n int) StoreOption {
	return func(db *sql.DB) {
		if n > 0 {
			db.SetMaxOpenConns(n)
			db.SetMaxIdleConns(max(1, n/4))
		}
	}
}

// NewStore opens a connection, verifies it and ensures the schema exists.
// dimensions sizes the embedding column; zero leaves it unsized.
func NewStore(ctx context.Context, databaseURL string, dimensions int, opts ...StoreOption) (*Store, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	for _, opt := range opts {
		opt(db)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, classify("ping", err)
	}

	s := &Store{db: db, dimensions: dimensions}
	if err := s.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return classify("ping", err)
	}
	return nil
}

// DocumentStore returns a DocumentStore backed by this store.
func (s *Store) DocumentStore() driven.DocumentStore {
	return &documentStore{store: s}
}

// JobHistoryStore returns a JobHistoryStore backed by this store.
func (s *Store) JobHistoryStore() driven.JobHistoryStore {
	return &jobHistoryStore{store: s}
}

func (s *Store) ensureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements(s.dimensions) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return classify("create schema", err)
		}
	}
	return nil
}

// schemaStatements returns the DDL for the given embedding dimensions.
func schemaStatements(dimensions int) []string {
	vectorType := "vector"
	if dimensions > 0 {
		vectorType = fmt.Sprintf("vector(%d)", dimensions)
	}
	return []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS documents (
			id          UUID PRIMARY KEY,
			path        TEXT NOT NULL UNIQUE,
			fingerprint TEXT NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS chunks (
			id          UUID PRIMARY KEY,
			document_id UUID NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			position    INTEGER NOT NULL,
			content     TEXT NOT NULL,
			embedding   %s,
			metadata    JSONB,
			UNIQUE (document_id, position)
		)`, vectorType),
		`CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document_id)`,
		`CREATE TABLE IF NOT EXISTS job_results (
			id           TEXT PRIMARY KEY,
			state        TEXT NOT NULL,
			attempts     INTEGER NOT NULL DEFAULT 0,
			last_error   TEXT,
			submitted_at TIMESTAMPTZ NOT NULL,
			started_at   TIMESTAMPTZ,
			finished_at  TIMESTAMPTZ NOT NULL,
			stats        JSONB
		)`,
		`CREATE INDEX IF NOT EXISTS idx_job_results_finished ON job_results(finished_at DESC)`,
	}
}
