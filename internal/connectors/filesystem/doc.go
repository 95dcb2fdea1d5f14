// Package filesystem implements the local file source and change watcher.
//
// Source walks the sync roots and returns a sorted listing of regular files,
// applying the configured exclusions: hidden entries, glob patterns and a
// maximum file size. Directories that cannot be read are reported rather
// than failing the listing, so documents stored under them are left alone.
//
// Watcher uses fsnotify to follow the same directories and reports changed
// paths in batches after a quiet period.
package filesystem
