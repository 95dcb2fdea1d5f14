package driving

import "context"

// Scheduler runs a background trigger that submits sync jobs.
type Scheduler interface {
	// Start runs the trigger.
	// Blocks until Stop is called, the context is cancelled or an error occurs.
	Start(ctx context.Context) error

	// Stop ends the trigger. Jobs it already submitted keep running.
	Stop() error
}
