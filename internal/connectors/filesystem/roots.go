package filesystem

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ResolveRoot converts a root argument to a clean absolute path.
// Handles file:// URIs, a leading ~ and relative paths.
func ResolveRoot(root string) (string, error) {
	// Strip file:// prefix for local paths
	root = strings.TrimPrefix(root, "file://")
	if root == "" {
		return "", fmt.Errorf("empty root")
	}

	if root == "~" || strings.HasPrefix(root, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		root = filepath.Join(home, strings.TrimPrefix(root, "~"))
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve root %q: %w", root, err)
	}
	return filepath.Clean(abs), nil
}

// ResolveRoots resolves every root, failing on the first invalid one.
func ResolveRoots(roots []string) ([]string, error) {
	out := make([]string, 0, len(roots))
	for _, root := range roots {
		resolved, err := ResolveRoot(root)
		if err != nil {
			return nil, err
		}
		out = append(out, resolved)
	}
	return out, nil
}
