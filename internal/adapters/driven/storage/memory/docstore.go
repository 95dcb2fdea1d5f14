package memory

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/sercha-sync/internal/core/domain"
	"github.com/custodia-labs/sercha-sync/internal/core/ports/driven"
)

// Ensure DocumentStore implements the interface.
var _ driven.DocumentStore = (*DocumentStore)(nil)

// DocumentStore is an in-memory implementation of driven.DocumentStore.
// Documents are keyed by path; chunks by document ID.
type DocumentStore struct {
	mu        sync.RWMutex
	documents map[string]domain.Document
	chunks    map[string][]domain.Chunk
}

// NewDocumentStore creates a new in-memory document store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		documents: make(map[string]domain.Document),
		chunks:    make(map[string][]domain.Chunk),
	}
}

// ExistingFiles returns the recorded fingerprint of every stored path.
func (s *DocumentStore) ExistingFiles(_ context.Context) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	files := make(map[string]string, len(s.documents))
	for path, doc := range s.documents {
		files[path] = doc.Fingerprint
	}
	return files, nil
}

// ReplaceDocument upserts the document and swaps its whole chunk set.
func (s *DocumentStore) ReplaceDocument(
	_ context.Context,
	path, fingerprint string,
	chunks []domain.Chunk,
) (int, error) {
	if path == "" || !domain.ValidFingerprint(fingerprint) {
		return 0, domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	doc, ok := s.documents[path]
	if !ok {
		doc = domain.Document{ID: uuid.New().String(), Path: path, CreatedAt: now}
	}
	doc.Fingerprint = fingerprint
	doc.UpdatedAt = now

	stored := make([]domain.Chunk, len(chunks))
	seen := make(map[int]bool, len(chunks))
	for i, chunk := range chunks {
		if seen[chunk.Position] {
			return 0, &domain.DatabaseError{Op: "replace document", Kind: domain.DBConstraint,
				Err: errors.New("duplicate chunk position")}
		}
		seen[chunk.Position] = true
		chunk.DocumentID = doc.ID
		if chunk.ID == "" {
			chunk.ID = uuid.New().String()
		}
		stored[i] = cloneChunk(chunk)
	}
	sort.Slice(stored, func(i, j int) bool { return stored[i].Position < stored[j].Position })

	removed := len(s.chunks[doc.ID])
	s.documents[path] = doc
	s.chunks[doc.ID] = stored
	return removed, nil
}

// DeleteDocument removes the document and its chunks.
func (s *DocumentStore) DeleteDocument(_ context.Context, path string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteLocked(path), nil
}

// DeleteDocuments removes each path in turn, stopping early if ctx is done.
func (s *DocumentStore) DeleteDocuments(ctx context.Context, paths []string) (domain.DeleteResult, error) {
	var result domain.DeleteResult
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		s.mu.Lock()
		_, exists := s.documents[path]
		removed := s.deleteLocked(path)
		s.mu.Unlock()
		if exists {
			result.Documents++
			result.Chunks += removed
			result.Deleted = append(result.Deleted, path)
		}
	}
	return result, nil
}

// deleteLocked removes a document (caller must hold lock).
func (s *DocumentStore) deleteLocked(path string) int {
	doc, ok := s.documents[path]
	if !ok {
		return 0
	}
	removed := len(s.chunks[doc.ID])
	delete(s.chunks, doc.ID)
	delete(s.documents, path)
	return removed
}

// GetDocument retrieves a document by path.
func (s *DocumentStore) GetDocument(_ context.Context, path string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[path]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &doc, nil
}

// GetChunks retrieves all chunks for a document ordered by position.
func (s *DocumentStore) GetChunks(_ context.Context, documentID string) ([]domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chunks := s.chunks[documentID]
	out := make([]domain.Chunk, len(chunks))
	for i, c := range chunks {
		out[i] = cloneChunk(c)
	}
	return out, nil
}

// cloneChunk copies the chunk's metadata and embedding so the store never
// shares them with a caller.
func cloneChunk(c domain.Chunk) domain.Chunk {
	c.Metadata = maps.Clone(c.Metadata)
	c.Embedding = slices.Clone(c.Embedding)
	return c
}

// Close is a no-op for the in-memory store.
func (s *DocumentStore) Close() error {
	return nil
}
