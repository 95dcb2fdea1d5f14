// Package cli provides the sercha-sync command line interface.
package cli

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-sync/internal/core/domain"
	"github.com/custodia-labs/sercha-sync/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-sync/internal/logger"
)

// version is set at build time with -ldflags "-X .../cli.version=...".
var version = "dev"

// Runtime holds the services that job commands operate on.
type Runtime struct {
	// Settings are the effective settings the runtime was built from.
	Settings domain.AppSettings

	// Controller runs sync jobs.
	Controller driving.JobController

	// Triggers returns the schedulers that keep req's roots in sync: one
	// reacting to changes under req.Roots and, when interval is positive,
	// one submitting every interval. They submit the initial sync
	// themselves and never leave two of req's jobs unfinished at once.
	Triggers func(req domain.SubmitRequest, interval time.Duration) []driving.Scheduler

	// Close releases the store and embedding service.
	Close func() error
}

// Config wires the commands to the application.
type Config struct {
	// Settings reads and writes the config file.
	Settings driving.SettingsService

	// Open builds the runtime. It is only called by commands that run or
	// inspect jobs, so config and version work without a store.
	Open func(ctx context.Context) (*Runtime, error)
}

var (
	cliConfig *Config
	verbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "sercha-sync",
	Short: "Keep a document store in sync with local directories",
	Long: `sercha-sync keeps a searchable document store in step with files on disk.

Each run fingerprints the files under the given roots, compares them with
what the store already holds, and adds, updates or removes documents and
their chunks. Runs are queued as jobs and retried on transient failures.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		if verbose {
			logger.SetVerbose(true)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show debug output")
}

// SetConfig sets the configuration the commands use.
func SetConfig(cfg *Config) {
	cliConfig = cfg
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func settingsService() (driving.SettingsService, error) {
	if cliConfig == nil || cliConfig.Settings == nil {
		return nil, errors.New("settings service not configured")
	}
	return cliConfig.Settings, nil
}

// openRuntime builds the runtime and starts its controller.
// The returned function stops the controller and closes the runtime.
func openRuntime(ctx context.Context) (*Runtime, func(), error) {
	if cliConfig == nil || cliConfig.Open == nil {
		return nil, nil, errors.New("sync runtime not configured")
	}
	rt, err := cliConfig.Open(ctx)
	if err != nil {
		return nil, nil, err
	}
	if err := rt.Controller.Start(ctx); err != nil {
		closeRuntime(rt)
		return nil, nil, err
	}
	return rt, func() {
		if err := rt.Controller.Stop(); err != nil {
			logger.Warn("failed to stop controller: %v", err)
		}
		closeRuntime(rt)
	}, nil
}

func closeRuntime(rt *Runtime) {
	if rt.Close == nil {
		return
	}
	if err := rt.Close(); err != nil {
		logger.Warn("failed to close runtime: %v", err)
	}
}
