// Command sercha-sync keeps a document store in sync with local directories.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/custodia-labs/sercha-sync/internal/adapters/driven/config/file"
	"github.com/custodia-labs/sercha-sync/internal/adapters/driving/cli"
	"github.com/custodia-labs/sercha-sync/internal/core/services"
	"github.com/custodia-labs/sercha-sync/internal/logger"
)

// configDirEnv overrides the config directory (default ~/.sercha-sync).
const configDirEnv = "SERCHA_SYNC_CONFIG_DIR"

func main() {
	os.Exit(run())
}

func run() int {
	// A missing .env is normal; anything else is worth mentioning.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: failed to load .env: %v\n", err)
	}

	configStore, err := file.NewConfigStore(os.Getenv(configDirEnv))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to open config: %v\n", err)
		return 1
	}
	settingsService := services.NewSettingsService(configStore)

	// Logging is configured from whatever settings load; validation errors
	// surface when a command needs the runtime.
	if settings, _ := settingsService.Get(); settings != nil {
		logger.SetVerbose(settings.Log.Verbose)
		if settings.Log.File != "" {
			logger.SetFile(settings.Log.File, settings.Log.MaxSizeMB, settings.Log.MaxBackups)
		}
	}
	defer logger.Close() //nolint:errcheck

	cli.SetConfig(&cli.Config{
		Settings: settingsService,
		Open: func(ctx context.Context) (*cli.Runtime, error) {
			return openRuntime(ctx, settingsService)
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.Execute(ctx); err != nil {
		return 1
	}
	return 0
}
