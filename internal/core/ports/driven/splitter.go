package driven

import "context"

// ChunkText is one chunk produced by a Splitter, before embedding.
type ChunkText struct {
	// Content is the chunk text.
	Content string

	// Metadata contains splitter-specific key-value pairs.
	Metadata map[string]any
}

// Splitter turns a file's content into an ordered sequence of chunks.
// The sequence is finite and consumed once per ingested file.
type Splitter interface {
	// Name returns the splitter name for logging and configuration.
	Name() string

	// Split returns the ordered chunks for content.
	Split(ctx context.Context, content string) ([]ChunkText, error)
}
