package driven

import (
	"context"

	"github.com/custodia-labs/sercha-sync/internal/core/domain"
)

// DocumentStore persists documents and their chunks.
// Every method is independently atomic.
//
// Implementations return *domain.DatabaseError for failures so the
// engine can tell connectivity problems from constraint violations.
type DocumentStore interface {
	// ExistingFiles returns the recorded fingerprint of every stored path.
	ExistingFiles(ctx context.Context) (map[string]string, error)

	// ReplaceDocument upserts the document for path and replaces its entire
	// chunk set in one transaction. Returns the number of chunks removed.
	ReplaceDocument(ctx context.Context, path, fingerprint string, chunks []domain.Chunk) (int, error)

	// DeleteDocument removes the document for path; its chunks cascade.
	// A missing path is a no-op. Returns the number of chunks removed.
	DeleteDocument(ctx context.Context, path string) (int, error)

	// DeleteDocuments applies DeleteDocument to each path.
	// It is NOT one transaction across paths: on partial failure some paths
	// are removed and some are not, and the result reports which.
	DeleteDocuments(ctx context.Context, paths []string) (domain.DeleteResult, error)

	// GetDocument retrieves a document by path.
	GetDocument(ctx context.Context, path string) (*domain.Document, error)

	// GetChunks retrieves all chunks for a document ordered by position.
	GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error)

	// Close releases the underlying connection pool.
	Close() error
}
