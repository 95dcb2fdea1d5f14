package filesystem

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/sercha-sync/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-sync/internal/logger"
)

// DefaultDebounce is the quiet period used when none is configured.
const DefaultDebounce = 2 * time.Second

// Ensure Watcher implements the interface.
var _ driven.ChangeWatcher = (*Watcher)(nil)

// Watcher reports batches of changed paths under a set of roots.
type Watcher struct {
	filter   filter
	debounce time.Duration
}

// NewWatcher creates a watcher. A non-positive debounce uses DefaultDebounce.
func NewWatcher(debounce time.Duration, opts ...Option) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{filter: newFilter(opts), debounce: debounce}
}

// Watch follows every directory under roots until ctx is done.
// Changes are collected until no event arrives for the debounce period,
// then sent on changes as one sorted batch. Directories created while
// watching are followed too.
func (w *Watcher) Watch(ctx context.Context, roots []string, changes chan<- []string) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer fsw.Close()

	for _, root := range roots {
		root = filepath.Clean(root)
		if err := w.addTree(fsw, root, root); err != nil {
			return err
		}
	}
	logger.Info("Watching %d root(s)", len(roots))

	pending := make(map[string]struct{})
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			root := rootOf(roots, event.Name)
			if root == "" || w.filter.skip(root, event.Name) {
				continue
			}
			if event.Op == fsnotify.Chmod {
				continue
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addTree(fsw, root, event.Name); err != nil {
						logger.Warn("Cannot watch %s: %v", event.Name, err)
					}
				}
			}
			logger.Debug("Change %s %s", event.Op, event.Name)
			pending[event.Name] = struct{}{}
			timer.Reset(w.debounce)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Watcher error: %v", err)

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			batch := make([]string, 0, len(pending))
			for path := range pending {
				batch = append(batch, path)
			}
			sort.Strings(batch)
			pending = make(map[string]struct{})

			select {
			case changes <- batch:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

// addTree watches dir and every directory below it that passes the filter.
// Subdirectories that cannot be read are logged and skipped.
func (w *Watcher) addTree(fsw *fsnotify.Watcher, root, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return fmt.Errorf("failed to watch %s: %w", path, err)
			}
			logger.Warn("Cannot watch %s: %v", path, err)
			return nil
		}
		if !d.IsDir() {
			if path == dir {
				return fsw.Add(path)
			}
			return nil
		}
		if w.filter.skip(root, path) {
			return fs.SkipDir
		}
		if err := fsw.Add(path); err != nil {
			if path == dir {
				return fmt.Errorf("failed to watch %s: %w", path, err)
			}
			logger.Warn("Cannot watch %s: %v", path, err)
		}
		return nil
	})
}

// rootOf returns the root containing path, or "" if none does.
func rootOf(roots []string, path string) string {
	for _, root := range roots {
		root = filepath.Clean(root)
		if path == root || strings.HasPrefix(path, root+string(filepath.Separator)) {
			return root
		}
	}
	return ""
}
