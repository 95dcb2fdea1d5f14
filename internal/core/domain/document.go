package domain

import "time"

// Document represents one tracked file.
// The path is absolute and cleaned, and unique across the store.
type Document struct {
	// ID is the unique identifier for the document.
	ID string

	// Path is the absolute, normalised file path.
	Path string

	// Fingerprint is the hex digest of the file content at last ingestion.
	Fingerprint string

	// CreatedAt is when the document was first ingested.
	CreatedAt time.Time

	// UpdatedAt is when the document was last re-ingested.
	UpdatedAt time.Time
}

// Chunk represents a content-bearing unit within a document.
// A chunk never outlives its document.
type Chunk struct {
	// ID is the unique identifier for the chunk.
	ID string

	// DocumentID links to the owning Document.
	DocumentID string

	// Position is the ordinal index, unique within the document.
	Position int

	// Content is the text content of this chunk.
	Content string

	// Embedding is the vector representation of Content.
	Embedding []float32

	// Metadata contains chunk-specific key-value pairs.
	Metadata map[string]any
}

// DeleteResult reports what a multi-path delete actually removed.
type DeleteResult struct {
	// Documents is the number of document rows removed.
	Documents int

	// Chunks is the number of chunk rows removed with them.
	Chunks int

	// Deleted lists the paths that were removed.
	Deleted []string
}
