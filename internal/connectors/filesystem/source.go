package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/custodia-labs/sercha-sync/internal/core/domain"
	"github.com/custodia-labs/sercha-sync/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-sync/internal/logger"
)

// Ensure Source implements the interface.
var _ driven.FileSource = (*Source)(nil)

// Source lists and opens regular files on the local filesystem.
type Source struct {
	filter filter
}

// NewSource creates a filesystem source.
func NewSource(opts ...Option) *Source {
	return &Source{filter: newFilter(opts)}
}

// List walks roots and returns every regular file that passes the filter.
//
// A root that does not exist fails with domain.ErrIO. A root that cannot be
// read fails with the underlying permission error. Directories below a root
// that cannot be read are returned in Listing.Unreadable. Symbolic links are
// not followed.
func (s *Source) List(ctx context.Context, roots []string) (*driven.Listing, error) {
	seen := make(map[string]struct{})
	listing := &driven.Listing{}

	for _, root := range roots {
		root = filepath.Clean(root)
		info, err := os.Stat(root)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return nil, fmt.Errorf("%w: root %s does not exist", domain.ErrIO, root)
		case err != nil:
			return nil, fmt.Errorf("stat root %s: %w", root, err)
		}

		if !info.IsDir() {
			if info.Mode().IsRegular() && !s.filter.tooLarge(info.Size()) {
				addFile(listing, seen, root)
			}
			continue
		}

		if err := s.walk(ctx, root, listing, seen); err != nil {
			return nil, err
		}
	}

	sort.Strings(listing.Files)
	sort.Strings(listing.Unreadable)
	return listing, nil
}

func (s *Source) walk(ctx context.Context, root string, listing *driven.Listing, seen map[string]struct{}) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if path == root {
				return fmt.Errorf("read root %s: %w", root, err)
			}
			logger.Warn("Cannot read %s: %v", path, err)
			listing.Unreadable = append(listing.Unreadable, path)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if s.filter.skip(root, path) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}

		if s.filter.maxFileSize > 0 {
			info, err := d.Info()
			if err != nil {
				listing.Unreadable = append(listing.Unreadable, path)
				return nil
			}
			if s.filter.tooLarge(info.Size()) {
				logger.Debug("Skipping %s: %d bytes exceeds limit", path, info.Size())
				return nil
			}
		}

		addFile(listing, seen, path)
		return nil
	})
}

func addFile(listing *driven.Listing, seen map[string]struct{}, path string) {
	if _, ok := seen[path]; ok {
		return
	}
	seen[path] = struct{}{}
	listing.Files = append(listing.Files, path)
}

// Open opens a file for reading.
func (s *Source) Open(path string) (io.ReadCloser, error) {
	return os.Open(path)
}
