package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/custodia-labs/sercha-sync/internal/core/domain"
	"github.com/custodia-labs/sercha-sync/internal/core/ports/driven"
)

// documentStore implements driven.DocumentStore.
type documentStore struct {
	store *Store
}

var _ driven.DocumentStore = (*documentStore)(nil)

// ExistingFiles returns the recorded fingerprint of every stored path.
func (s *documentStore) ExistingFiles(ctx context.Context) (map[string]string, error) {
	rows, err := s.store.db.QueryContext(ctx, `SELECT path, fingerprint FROM documents`)
	if err != nil {
		return nil, classify("query documents", err)
	}
	defer rows.Close()

	files := make(map[string]string)
	for rows.Next() {
		var path, fingerprint string
		if err := rows.Scan(&path, &fingerprint); err != nil {
			return nil, classify("scan document", err)
		}
		files[path] = fingerprint
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterate documents", err)
	}
	return files, nil
}

// ReplaceDocument upserts the document and replaces all of its chunks in
// one transaction.
func (s *documentStore) ReplaceDocument(
	ctx context.Context,
	path, fingerprint string,
	chunks []domain.Chunk,
) (int, error) {
	if path == "" || !domain.ValidFingerprint(fingerprint) {
		return 0, domain.ErrInvalidInput
	}
	if err := s.checkDimensions(chunks); err != nil {
		return 0, err
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, classify("begin", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var docID string
	err = tx.QueryRowContext(ctx, `
		INSERT INTO documents (id, path, fingerprint)
		VALUES ($1, $2, $3)
		ON CONFLICT (path) DO UPDATE SET
			fingerprint = EXCLUDED.fingerprint,
			updated_at = NOW()
		RETURNING id`,
		uuid.New().String(), path, fingerprint,
	).Scan(&docID)
	if err != nil {
		return 0, classify("upsert document", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = $1`, docID)
	if err != nil {
		return 0, classify("delete chunks", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, classify("delete chunks", err)
	}

	if len(chunks) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO chunks (id, document_id, position, content, embedding, metadata)
			VALUES ($1, $2, $3, $4, $5, $6)`)
		if err != nil {
			return 0, classify("prepare chunks", err)
		}
		defer stmt.Close()

		for _, chunk := range chunks {
			metadata, err := metadataValue(chunk.Metadata)
			if err != nil {
				return 0, err
			}
			id := chunk.ID
			if id == "" {
				id = uuid.New().String()
			}
			if _, err := stmt.ExecContext(ctx, id, docID, chunk.Position, chunk.Content,
				embeddingValue(chunk.Embedding), metadata); err != nil {
				return 0, classify("insert chunk", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, classify("commit", err)
	}
	return int(removed), nil
}

// DeleteDocument removes the document for path. Its chunks cascade.
func (s *documentStore) DeleteDocument(ctx context.Context, path string) (int, error) {
	removed, _, err := s.deleteOne(ctx, path)
	return removed, err
}

// DeleteDocuments deletes each path in its own transaction.
// Per-path failures are joined; a connectivity failure or cancellation
// stops the loop.
func (s *documentStore) DeleteDocuments(ctx context.Context, paths []string) (domain.DeleteResult, error) {
	var result domain.DeleteResult
	var errs []error
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return result, errors.Join(append(errs, err)...)
		}
		removed, existed, err := s.deleteOne(ctx, path)
		if err != nil {
			errs = append(errs, &domain.FileError{Path: path, Op: "delete", Err: err})
			if domain.IsConnectivity(err) {
				break
			}
			continue
		}
		if existed {
			result.Documents++
			result.Chunks += removed
			result.Deleted = append(result.Deleted, path)
		}
	}
	return result, errors.Join(errs...)
}

func (s *documentStore) deleteOne(ctx context.Context, path string) (removed int, existed bool, err error) {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, classify("begin", err)
	}
	defer tx.Rollback() //nolint:errcheck

	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(c.id) FROM documents d
		LEFT JOIN chunks c ON c.document_id = d.id
		WHERE d.path = $1`, path).Scan(&removed)
	if err != nil {
		return 0, false, classify("count chunks", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE path = $1`, path)
	if err != nil {
		return 0, false, classify("delete document", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, false, classify("delete document", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, false, classify("commit", err)
	}
	if n == 0 {
		return 0, false, nil
	}
	return removed, true, nil
}

// GetDocument retrieves a document by path.
func (s *documentStore) GetDocument(ctx context.Context, path string) (*domain.Document, error) {
	var doc domain.Document
	err := s.store.db.QueryRowContext(ctx, `
		SELECT id, path, fingerprint, created_at, updated_at
		FROM documents WHERE path = $1`, path,
	).Scan(&doc.ID, &doc.Path, &doc.Fingerprint, &doc.CreatedAt, &doc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, classify("get document", err)
	}
	return &doc, nil
}

// GetChunks retrieves all chunks for a document ordered by position.
func (s *documentStore) GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error) {
	// The column is UUID typed; anything else cannot match.
	if _, err := uuid.Parse(documentID); err != nil {
		return nil, nil
	}
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, document_id, position, content, embedding, metadata
		FROM chunks WHERE document_id = $1
		ORDER BY position`, documentID)
	if err != nil {
		return nil, classify("query chunks", err)
	}
	defer rows.Close()

	var chunks []domain.Chunk
	for rows.Next() {
		var chunk domain.Chunk
		var embedding *pgvector.Vector
		var metadata []byte
		if err := rows.Scan(&chunk.ID, &chunk.DocumentID, &chunk.Position, &chunk.Content,
			&embedding, &metadata); err != nil {
			return nil, classify("scan chunk", err)
		}
		if embedding != nil {
			chunk.Embedding = embedding.Slice()
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &chunk.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshaling chunk metadata: %w", err)
			}
		}
		chunks = append(chunks, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterate chunks", err)
	}
	return chunks, nil
}

// Close is a no-op; the shared Store owns the connection pool.
func (s *documentStore) Close() error {
	return nil
}

// checkDimensions rejects embeddings that do not fit the vector column.
func (s *documentStore) checkDimensions(chunks []domain.Chunk) error {
	if s.store.dimensions <= 0 {
		return nil
	}
	for _, chunk := range chunks {
		if n := len(chunk.Embedding); n > 0 && n != s.store.dimensions {
			return fmt.Errorf("%w: chunk %d has %d dimensions, column has %d",
				domain.ErrInvalidInput, chunk.Position, n, s.store.dimensions)
		}
	}
	return nil
}

// embeddingValue maps an empty embedding to NULL.
func embeddingValue(embedding []float32) any {
	if len(embedding) == 0 {
		return nil
	}
	return pgvector.NewVector(embedding)
}

// metadataValue encodes chunk metadata for a JSONB column.
func metadataValue(metadata map[string]any) (any, error) {
	if len(metadata) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("%w: marshalling chunk metadata: %w", domain.ErrInvalidInput, err)
	}
	return string(data), nil
}
