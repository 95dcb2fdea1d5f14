package driven

import "context"

// ChangeWatcher reports filesystem changes under a set of roots.
type ChangeWatcher interface {
	// Watch blocks until ctx is done. After each quiet period following one
	// or more changes it sends the changed paths on changes.
	Watch(ctx context.Context, roots []string, changes chan<- []string) error
}
