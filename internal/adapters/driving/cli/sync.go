package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-sync/internal/connectors/filesystem"
	"github.com/custodia-labs/sercha-sync/internal/core/domain"
)

var syncCmd = &cobra.Command{
	Use:   "sync <root>...",
	Short: "Synchronise the document store with one or more roots",
	Long: `Compares the files under each root with the stored documents and applies
the selected changes as a single job.

  --resume   add files the store does not have yet
  --update   re-ingest files whose content changed
  --cleanup  remove documents whose files are gone (with --update)
  --force    re-ingest every file regardless of fingerprint

With --dry-run nothing is written; the command reports what would change.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSync,
}

var (
	syncResume   bool
	syncUpdate   bool
	syncCleanup  bool
	syncDryRun   bool
	syncForce    bool
	syncPriority int
	syncTimeout  time.Duration
)

func init() {
	syncCmd.Flags().BoolVar(&syncResume, "resume", false, "Add files not yet in the store")
	syncCmd.Flags().BoolVar(&syncUpdate, "update", false, "Re-ingest files whose content changed")
	syncCmd.Flags().BoolVar(&syncCleanup, "cleanup", false, "Remove documents whose files are gone")
	syncCmd.Flags().BoolVar(&syncDryRun, "dry-run", false, "Report changes without applying them")
	syncCmd.Flags().BoolVar(&syncForce, "force", false, "Re-ingest every file")
	syncCmd.Flags().IntVar(&syncPriority, "priority", 0, "Queue priority; higher runs first")
	syncCmd.Flags().DurationVar(&syncTimeout, "timeout", 0, "Bound each attempt (0 uses scheduler.job_timeout)")
	rootCmd.AddCommand(syncCmd)
}

func syncRunConfig() domain.RunConfig {
	return domain.RunConfig{
		Resume:  syncResume,
		Update:  syncUpdate,
		Cleanup: syncCleanup,
		DryRun:  syncDryRun,
		Force:   syncForce,
	}
}

func runSync(cmd *cobra.Command, args []string) error {
	roots, err := filesystem.ResolveRoots(args)
	if err != nil {
		return err
	}
	req := domain.SubmitRequest{
		Config:   syncRunConfig(),
		Roots:    roots,
		Priority: syncPriority,
		Timeout:  syncTimeout,
	}
	if err := req.Validate(); err != nil {
		return err
	}

	ctx := cmd.Context()
	rt, closeFn, err := openRuntime(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	jobID, err := rt.Controller.Submit(ctx, req)
	if err != nil {
		return fmt.Errorf("submit failed: %w", err)
	}
	cmd.Printf("Submitted job %s (%s)\n", jobID, req.Config)

	status, err := waitWithProgress(ctx, cmd, rt.Controller, jobID)
	if errors.Is(err, context.Canceled) {
		cmd.Println("Interrupted; cancelling job.")
		return err
	}
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	printJobResult(cmd, status)
	if status.State != domain.JobCompleted {
		return fmt.Errorf("job %s %s: %s", status.ID, status.State, status.LastError)
	}
	return nil
}

// printJobResult prints the outcome and statistics of a finished job.
func printJobResult(cmd *cobra.Command, status *domain.JobStatus) {
	cmd.Printf("Job %s %s after %d attempt(s)\n", status.ID, status.State, status.Attempts)
	stats := status.Stats
	if stats == nil {
		return
	}

	if stats.DryRun {
		cmd.Printf("Dry run: would add %d, update %d, delete %d (%d unchanged)\n",
			stats.Added, stats.Updated, stats.Deleted, stats.Skipped)
	} else {
		cmd.Printf("Added: %d  Updated: %d  Deleted: %d  Skipped: %d  Failed: %d\n",
			stats.Added, stats.Updated, stats.Deleted, stats.Skipped, stats.Failed)
		cmd.Printf("Chunks: +%d -%d  Duration: %s\n",
			stats.ChunksInserted, stats.ChunksDeleted, stats.Duration.Round(time.Millisecond))
	}

	const maxShown = 10
	for i, fileErr := range stats.Errors {
		if i == maxShown {
			cmd.Printf("  ... and %d more\n", len(stats.Errors)-maxShown)
			break
		}
		cmd.Printf("  %s\n", fileErr.Error())
	}
}
