package driven

import (
	"context"
	"io"
)

// Listing is the result of walking the run roots.
type Listing struct {
	// Files are absolute, cleaned file paths, sorted.
	Files []string

	// Unreadable are files or directories that could not be listed.
	// Stored documents under them are neither updated nor deleted.
	Unreadable []string
}

// FileSource enumerates and opens files under a set of roots.
type FileSource interface {
	// List walks roots and returns candidate files.
	// A root that does not exist fails the whole listing.
	List(ctx context.Context, roots []string) (*Listing, error)

	// Open opens a file for reading.
	Open(path string) (io.ReadCloser, error)
}
