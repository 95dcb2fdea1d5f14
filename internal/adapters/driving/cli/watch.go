package cli

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/sercha-sync/internal/connectors/filesystem"
	"github.com/custodia-labs/sercha-sync/internal/core/domain"
	"github.com/custodia-labs/sercha-sync/internal/logger"
)

var watchCmd = &cobra.Command{
	Use:   "watch <root>...",
	Short: "Keep the store in sync while files change",
	Long: `Runs an initial update+cleanup sync, then watches the roots and submits a
new sync after every burst of changes. With --interval (or scheduler.interval)
a full sync also runs periodically. Stops on interrupt.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runWatch,
}

var (
	watchInterval time.Duration
	watchDryRun   bool
)

func init() {
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 0,
		"Also sync on this interval (0 uses scheduler.interval)")
	watchCmd.Flags().BoolVar(&watchDryRun, "dry-run", false, "Report changes without applying them")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	roots, err := filesystem.ResolveRoots(args)
	if err != nil {
		return err
	}
	req := domain.SubmitRequest{
		Config: domain.RunConfig{Update: true, Cleanup: true, DryRun: watchDryRun},
		Roots:  roots,
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

	interval := watchInterval
	if interval <= 0 {
		interval = rt.Settings.Scheduler.Interval
	}

	triggers := rt.Triggers(req, interval)
	if interval > 0 {
		cmd.Printf("Watching %d root(s), full sync every %s\n", len(roots), interval)
	} else {
		cmd.Printf("Watching %d root(s)\n", len(roots))
	}
	logger.Info("Watching %v", roots)

	g, gctx := errgroup.WithContext(ctx)
	for _, trigger := range triggers {
		g.Go(func() error {
			return trigger.Start(gctx)
		})
	}
	err = g.Wait()
	for _, trigger := range triggers {
		_ = trigger.Stop()
	}

	if stats, statsErr := rt.Controller.Stats(context.WithoutCancel(ctx)); statsErr == nil {
		printAggregate(cmd, stats)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
