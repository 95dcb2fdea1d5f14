package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-sync/internal/core/domain"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List finished sync jobs",
	RunE:  runHistory,
}

var statusCmd = &cobra.Command{
	Use:   "status [job-id]",
	Short: "Summarise finished jobs or show one job",
	Long: `Without arguments, counts recorded jobs by state and totals their statistics.
With a job ID, shows that job's details.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

var historyLimit int

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum jobs to list (0 for all)")
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(statusCmd)
}

func runHistory(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	rt, closeFn, err := openRuntime(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	jobs, err := rt.Controller.History(ctx, historyLimit)
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}
	if len(jobs) == 0 {
		cmd.Println("No jobs recorded.")
		return nil
	}

	cmd.Printf("%-36s  %-9s  %-8s  %-19s  %s\n", "ID", "STATE", "ATTEMPTS", "FINISHED", "CHANGES")
	for i := range jobs {
		job := &jobs[i]
		cmd.Printf("%-36s  %-9s  %-8d  %-19s  %s\n",
			job.ID, job.State, job.Attempts, formatTime(job.FinishedAt), changeSummary(job.Stats))
	}
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rt, closeFn, err := openRuntime(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	jobs, err := rt.Controller.History(ctx, 0)
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}

	if len(args) == 1 {
		for i := range jobs {
			if jobs[i].ID == args[0] {
				printJobDetails(cmd, &jobs[i])
				return nil
			}
		}
		return fmt.Errorf("%w: %s", domain.ErrJobNotFound, args[0])
	}

	var agg domain.AggregateStats
	for i := range jobs {
		switch jobs[i].State {
		case domain.JobCompleted:
			agg.Completed++
		case domain.JobFailed:
			agg.Failed++
		case domain.JobCancelled:
			agg.Cancelled++
		}
		if jobs[i].Stats != nil {
			agg.Totals.Merge(*jobs[i].Stats)
		}
	}
	printAggregate(cmd, agg)
	if len(jobs) > 0 {
		cmd.Println()
		cmd.Println("Last job:")
		printJobDetails(cmd, &jobs[0])
	}
	return nil
}

// printAggregate prints job counts by state and summed statistics.
func printAggregate(cmd *cobra.Command, agg domain.AggregateStats) {
	cmd.Println("[Jobs]")
	if agg.Queued+agg.Running+agg.Retrying > 0 {
		cmd.Printf("  Queued: %d  Running: %d  Retrying: %d\n", agg.Queued, agg.Running, agg.Retrying)
	}
	cmd.Printf("  Completed: %d  Failed: %d  Cancelled: %d\n", agg.Completed, agg.Failed, agg.Cancelled)
	cmd.Println("[Totals]")
	cmd.Printf("  Added: %d  Updated: %d  Deleted: %d  Failed files: %d\n",
		agg.Totals.Added, agg.Totals.Updated, agg.Totals.Deleted, agg.Totals.Failed)
	cmd.Printf("  Chunks: +%d -%d\n", agg.Totals.ChunksInserted, agg.Totals.ChunksDeleted)
}

func printJobDetails(cmd *cobra.Command, job *domain.JobStatus) {
	cmd.Printf("  ID:        %s\n", job.ID)
	cmd.Printf("  State:     %s\n", job.State)
	cmd.Printf("  Attempts:  %d\n", job.Attempts)
	cmd.Printf("  Submitted: %s\n", formatTime(job.SubmittedAt))
	cmd.Printf("  Finished:  %s\n", formatTime(job.FinishedAt))
	if job.LastError != "" {
		cmd.Printf("  Error:     %s\n", job.LastError)
	}
	if job.Stats != nil {
		cmd.Printf("  Changes:   %s\n", changeSummary(job.Stats))
	}
}

// changeSummary renders job statistics on one line.
func changeSummary(stats *domain.RunStats) string {
	if stats == nil {
		return "-"
	}
	summary := fmt.Sprintf("+%d ~%d -%d =%d !%d", stats.Added, stats.Updated, stats.Deleted, stats.Skipped, stats.Failed)
	if stats.DryRun {
		summary += " (dry run)"
	}
	return summary
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
