package driving

import (
	"context"

	"github.com/custodia-labs/sercha-sync/internal/core/domain"
)

// ProgressFunc receives phase transitions and applying progress.
// done and total count files; total is zero outside the applying phase.
type ProgressFunc func(phase domain.Phase, done, total int)

// Loader executes one synchronisation run.
type Loader interface {
	// Run discovers, categorises and applies changes for req.
	// Stats are returned even when err is non-nil, reflecting work actually done.
	Run(ctx context.Context, req domain.RunRequest, progress ProgressFunc) (*domain.RunStats, error)
}
