package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/sercha-sync/internal/core/domain"
	"github.com/custodia-labs/sercha-sync/internal/core/ports/driving"
)

// progressInterval is how often the live progress line is redrawn.
const progressInterval = 500 * time.Millisecond

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// waitWithProgress waits for the job to finish. On a terminal it redraws a
// single progress line while the job runs.
func waitWithProgress(
	ctx context.Context,
	cmd *cobra.Command,
	controller driving.JobController,
	jobID string,
) (*domain.JobStatus, error) {
	type result struct {
		status *domain.JobStatus
		err    error
	}
	done := make(chan result, 1)
	go func() {
		status, err := controller.Wait(ctx, jobID)
		done <- result{status, err}
	}()

	if !isTerminal(cmd.OutOrStderr()) {
		r := <-done
		return r.status, r.err
	}

	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()

	width := 0
	for {
		select {
		case r := <-done:
			if width > 0 {
				cmd.Printf("\r%s\r", strings.Repeat(" ", width))
			}
			return r.status, r.err
		case <-ticker.C:
			// Best effort; a failed poll just skips a redraw.
			status, err := controller.Status(ctx, jobID)
			if err != nil {
				continue
			}
			line := progressLine(status)
			width = max(width, len(line))
			cmd.Printf("\r%-*s", width, line)
		}
	}
}

// progressLine renders a one-line summary of a running job.
func progressLine(status *domain.JobStatus) string {
	line := fmt.Sprintf("%-14s %5.1f%%", status.Phase, status.Progress)
	if status.RetryCount > 0 {
		line += fmt.Sprintf("  retry %d", status.RetryCount)
	}
	if status.ETA != nil {
		if remaining := time.Until(*status.ETA); remaining > 0 {
			line += fmt.Sprintf("  eta %s", remaining.Round(time.Second))
		}
	}
	return line
}
