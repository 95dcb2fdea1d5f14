package filesystem

import (
	"path/filepath"
	"strings"
)

// Option configures which entries the source and watcher consider.
type Option func(*filter)

// WithExclude skips entries whose base name or root-relative path matches
// one of the glob patterns.
func WithExclude(patterns ...string) Option {
	return func(f *filter) {
		f.exclude = append(f.exclude, patterns...)
	}
}

// WithIncludeHidden includes dot-files and dot-directories.
func WithIncludeHidden(include bool) Option {
	return func(f *filter) {
		f.includeHidden = include
	}
}

// WithMaxFileSize skips files larger than n bytes. Zero means no limit.
func WithMaxFileSize(n int64) Option {
	return func(f *filter) {
		if n >= 0 {
			f.maxFileSize = n
		}
	}
}

type filter struct {
	exclude       []string
	includeHidden bool
	maxFileSize   int64
}

func newFilter(opts []Option) filter {
	var f filter
	for _, opt := range opts {
		opt(&f)
	}
	return f
}

// skip reports whether the entry at path under root is excluded.
// The root itself is never excluded.
func (f filter) skip(root, path string) bool {
	if path == root {
		return false
	}
	name := filepath.Base(path)
	if !f.includeHidden && isHidden(name) {
		return true
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = name
	}
	rel = filepath.ToSlash(rel)
	for _, pattern := range f.exclude {
		if ok, _ := filepath.Match(pattern, name); ok {
			return true
		}
		if ok, _ := filepath.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

// tooLarge reports whether a file of size bytes exceeds the limit.
func (f filter) tooLarge(size int64) bool {
	return f.maxFileSize > 0 && size > f.maxFileSize
}

// isHidden reports whether a base name is a dot-file. "." and ".." are not.
func isHidden(name string) bool {
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}
