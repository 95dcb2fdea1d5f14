package services

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/custodia-labs/sercha-sync/internal/core/domain"
)

// Categorize partitions paths by comparing the discovered and recorded
// fingerprint sets.
//
// Every discovered path lands in exactly one of Skip, Update or Add.
// Every recorded path that was not rediscovered lands in Delete, unless it
// is shielded by unreadable: a path listed there, or lying under a directory
// listed there, could not be read during discovery and is left out so that a
// transient read failure never turns into a deletion.
//
// The result is deterministic; each slice is sorted.
func Categorize(discovered, recorded map[string]string, unreadable map[string]struct{}) domain.Categorization {
	var c domain.Categorization

	for path, fp := range discovered {
		stored, ok := recorded[path]
		switch {
		case !ok:
			c.Add = append(c.Add, path)
		case stored == fp:
			c.Skip = append(c.Skip, path)
		default:
			c.Update = append(c.Update, path)
		}
	}

	for path := range recorded {
		if _, ok := discovered[path]; ok {
			continue
		}
		if shielded(path, unreadable) {
			continue
		}
		c.Delete = append(c.Delete, path)
	}

	sort.Strings(c.Skip)
	sort.Strings(c.Add)
	sort.Strings(c.Update)
	sort.Strings(c.Delete)
	return c
}

// shielded reports whether path or one of its parent directories is unreadable.
func shielded(path string, unreadable map[string]struct{}) bool {
	if len(unreadable) == 0 {
		return false
	}
	for p := path; ; {
		if _, ok := unreadable[p]; ok {
			return true
		}
		parent := filepath.Dir(p)
		if parent == p {
			return false
		}
		p = parent
	}
}

// withinRoots keeps only the recorded paths that lie under one of roots.
// Runs over one tree never see documents owned by another tree.
func withinRoots(recorded map[string]string, roots []string) map[string]string {
	scoped := make(map[string]string, len(recorded))
	for path, fp := range recorded {
		for _, root := range roots {
			if underRoot(path, root) {
				scoped[path] = fp
				break
			}
		}
	}
	return scoped
}

// underRoot reports whether path equals root or lies beneath it.
func underRoot(path, root string) bool {
	if path == root {
		return true
	}
	prefix := root
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return strings.HasPrefix(path, prefix)
}
