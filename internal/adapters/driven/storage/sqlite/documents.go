package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/sercha-sync/internal/core/domain"
	"github.com/custodia-labs/sercha-sync/internal/core/ports/driven"
)

// jsonNull is the JSON representation of null.
const jsonNull = "null"

// documentStore implements driven.DocumentStore.
type documentStore struct {
	store *Store
}

var _ driven.DocumentStore = (*documentStore)(nil)

// ExistingFiles returns the recorded fingerprint of every stored path.
func (s *documentStore) ExistingFiles(ctx context.Context) (map[string]string, error) {
	rows, err := s.store.db.QueryContext(ctx, "SELECT path, fingerprint FROM documents")
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

// ReplaceDocument upserts the document and swaps its chunks for the given
// ones in a single transaction. It returns how many chunks were dropped.
func (s *documentStore) ReplaceDocument(
	ctx context.Context,
	path, fingerprint string,
	chunks []domain.Chunk,
) (int, error) {
	if path == "" || !domain.ValidFingerprint(fingerprint) {
		return 0, domain.ErrInvalidInput
	}

	var dropped int64
	err := s.store.inTx(ctx, func(tx *sql.Tx) error {
		now := formatTime(time.Now())
		var docID string
		err := tx.QueryRowContext(ctx, `
			INSERT INTO documents (id, path, fingerprint, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(path) DO UPDATE SET
				fingerprint = excluded.fingerprint,
				updated_at  = excluded.updated_at
			RETURNING id
		`, uuid.NewString(), path, fingerprint, now, now).Scan(&docID)
		if err != nil {
			return classify("upsert document", err)
		}

		res, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE document_id = ?", docID)
		if err != nil {
			return classify("delete chunks", err)
		}
		if dropped, err = res.RowsAffected(); err != nil {
			return classify("delete chunks", err)
		}
		return insertChunks(ctx, tx, docID, chunks)
	})
	if err != nil {
		return 0, err
	}
	return int(dropped), nil
}

func insertChunks(ctx context.Context, tx *sql.Tx, docID string, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, document_id, position, content, embedding, metadata)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return classify("prepare chunks", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		meta, err := json.Marshal(c.Metadata)
		if err != nil {
			return fmt.Errorf("%w: chunk %d metadata: %w", domain.ErrInvalidInput, c.Position, err)
		}
		id := c.ID
		if id == "" {
			id = uuid.NewString()
		}
		if _, err := stmt.ExecContext(ctx, id, docID, c.Position, c.Content,
			encodeVector(c.Embedding), string(meta)); err != nil {
			return classify("insert chunk", err)
		}
	}
	return nil
}

// DeleteDocument removes the document for path. Its chunks cascade.
func (s *documentStore) DeleteDocument(ctx context.Context, path string) (int, error) {
	removed, _, err := s.deleteOne(ctx, path)
	return removed, err
}

// DeleteDocuments deletes each path in its own transaction.
// Per-path failures are joined as *domain.FileError values; a connectivity
// failure or cancellation stops the loop.
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
	err = s.store.inTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			SELECT COUNT(c.id) FROM documents d
			LEFT JOIN chunks c ON c.document_id = d.id
			WHERE d.path = ?
		`, path).Scan(&removed)
		if err != nil {
			return classify("count chunks", err)
		}

		res, err := tx.ExecContext(ctx, "DELETE FROM documents WHERE path = ?", path)
		if err != nil {
			return classify("delete document", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return classify("delete document", err)
		}
		existed = n > 0
		return nil
	})
	if err != nil || !existed {
		return 0, false, err
	}
	return removed, true, nil
}

// GetDocument retrieves a document by path.
func (s *documentStore) GetDocument(ctx context.Context, path string) (*domain.Document, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, path, fingerprint, created_at, updated_at
		FROM documents WHERE path = ?
	`, path)

	var doc domain.Document
	var createdAt, updatedAt string
	if err := row.Scan(&doc.ID, &doc.Path, &doc.Fingerprint, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, classify("scan document", err)
	}

	var err error
	if doc.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if doc.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &doc, nil
}

// GetChunks retrieves all chunks for a document ordered by position.
func (s *documentStore) GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, document_id, position, content, embedding, metadata
		FROM chunks WHERE document_id = ?
		ORDER BY position
	`, documentID)
	if err != nil {
		return nil, classify("query chunks", err)
	}
	defer rows.Close()

	var chunks []domain.Chunk //nolint:prealloc // size unknown from query
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, *chunk)
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

// scanChunk scans a chunk from *sql.Rows.
func scanChunk(rows *sql.Rows) (*domain.Chunk, error) {
	var chunk domain.Chunk
	var embeddingBlob []byte
	var metadataJSON sql.NullString

	if err := rows.Scan(&chunk.ID, &chunk.DocumentID, &chunk.Position, &chunk.Content,
		&embeddingBlob, &metadataJSON); err != nil {
		return nil, classify("scan chunk", err)
	}

	chunk.Embedding = decodeVector(embeddingBlob)

	if metadataJSON.Valid && metadataJSON.String != "" && metadataJSON.String != jsonNull {
		if err := json.Unmarshal([]byte(metadataJSON.String), &chunk.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshaling chunk metadata: %w", err)
		}
	}

	return &chunk, nil
}

// encodeVector stores a vector as little-endian float32 words.
func encodeVector(v []float32) []byte {
	if len(v) == 0 {
		return nil
	}
	out := make([]byte, 0, 4*len(v))
	for _, f := range v {
		out = binary.LittleEndian.AppendUint32(out, math.Float32bits(f))
	}
	return out
}

func decodeVector(b []byte) []float32 {
	if len(b) < 4 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v
}
