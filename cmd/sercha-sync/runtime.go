package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/sercha-sync/internal/adapters/driven/embedding/ollama"
	"github.com/custodia-labs/sercha-sync/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/sercha-sync/internal/adapters/driven/storage/postgres"
	"github.com/custodia-labs/sercha-sync/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/sercha-sync/internal/adapters/driving/cli"
	"github.com/custodia-labs/sercha-sync/internal/connectors/filesystem"
	"github.com/custodia-labs/sercha-sync/internal/core/domain"
	"github.com/custodia-labs/sercha-sync/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-sync/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-sync/internal/core/services"
	"github.com/custodia-labs/sercha-sync/internal/logger"
	"github.com/custodia-labs/sercha-sync/internal/postprocessors/chunker"
)

// stores bundles the stores opened for one driver.
type stores struct {
	documents driven.DocumentStore
	history   driven.JobHistoryStore
	close     func() error
}

// openRuntime builds the sync services from the effective settings.
func openRuntime(ctx context.Context, settingsService driving.SettingsService) (*cli.Runtime, error) {
	settings, err := settingsService.Get()
	if err != nil {
		return nil, err
	}

	st, err := openStores(ctx, settings)
	if err != nil {
		return nil, err
	}
	closers := []func() error{st.close}

	loaderOpts := []services.LoaderOption{services.WithHashWorkers(settings.Sync.HashWorkers)}
	if settings.Embedding.IsConfigured() {
		embedder := ollama.NewEmbeddingService(ollama.Config{
			BaseURL:           settings.Embedding.BaseURL,
			Model:             settings.Embedding.Model,
			Timeout:           settings.Embedding.Timeout,
			Dimensions:        settings.Embedding.Dimensions,
			BatchSize:         settings.Embedding.BatchSize,
			RequestsPerSecond: settings.Embedding.RequestsPerSecond,
		})
		// An unreachable service is not fatal here: ingests fail as
		// retryable errors until it comes back.
		if err := embedder.Ping(ctx); err != nil {
			logger.Warn("embedding service not reachable: %v", err)
		}
		loaderOpts = append(loaderOpts, services.WithEmbedder(embedder))
		closers = append(closers, embedder.Close)
	}

	filterOpts := []filesystem.Option{
		filesystem.WithExclude(settings.Sync.Exclude...),
		filesystem.WithIncludeHidden(settings.Sync.IncludeHidden),
		filesystem.WithMaxFileSize(settings.Sync.MaxFileSize),
	}
	splitter := chunker.New(
		chunker.WithChunkSize(settings.Chunker.Size),
		chunker.WithOverlap(settings.Chunker.Overlap),
	)
	loader := services.NewLoader(filesystem.NewSource(filterOpts...), st.documents, splitter, loaderOpts...)

	controller := services.NewController(
		loader,
		services.NewJobScheduler(settings.Scheduler),
		services.NewJobTracker(),
		services.NewRetryPolicy(settings.Retry),
		st.history,
		services.WithJobTimeout(settings.Scheduler.JobTimeout),
	)
	watcher := filesystem.NewWatcher(settings.Sync.WatchDebounce, filterOpts...)

	return &cli.Runtime{
		Settings:   *settings,
		Controller: controller,
		Triggers: func(req domain.SubmitRequest, interval time.Duration) []driving.Scheduler {
			gate := services.NewJobGate(controller, req)
			if interval <= 0 {
				return []driving.Scheduler{
					services.NewWatchTrigger(gate, watcher, services.WithInitialSync()),
				}
			}
			// The periodic trigger submits at once, which is the initial sync.
			return []driving.Scheduler{
				services.NewWatchTrigger(gate, watcher),
				services.NewPeriodicTrigger(gate, interval),
			}
		},
		Close: func() error {
			var errs []error
			for i := len(closers) - 1; i >= 0; i-- {
				errs = append(errs, closers[i]())
			}
			return errors.Join(errs...)
		},
	}, nil
}

// openStores opens the document and job history stores for the driver.
func openStores(ctx context.Context, settings *domain.AppSettings) (*stores, error) {
	switch settings.Store.Driver {
	case domain.StoreDriverSQLite:
		store, err := sqlite.NewStore(settings.Store.DataDir, sqlite.WithMaxOpenConns(settings.Store.MaxOpenConns))
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		logger.Debug("Using sqlite store at %s", store.Path())
		return &stores{
			documents: store.DocumentStore(),
			history:   store.JobHistoryStore(),
			close:     store.Close,
		}, nil

	case domain.StoreDriverPostgres:
		dimensions := 0
		if settings.Embedding.IsConfigured() {
			dimensions = settings.Embedding.Dimensions
		}
		store, err := postgres.NewStore(ctx, settings.Store.URL, dimensions,
			postgres.WithMaxOpenConns(settings.Store.MaxOpenConns))
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres store: %w", err)
		}
		return &stores{
			documents: store.DocumentStore(),
			history:   store.JobHistoryStore(),
			close:     store.Close,
		}, nil

	case domain.StoreDriverMemory:
		logger.Warn("Using in-memory store; nothing is kept after exit")
		return &stores{
			documents: memory.NewDocumentStore(),
			history:   memory.NewJobHistoryStore(),
			close:     func() error { return nil },
		}, nil
	}
	return nil, fmt.Errorf("%w: unknown store driver %q", domain.ErrConfig, settings.Store.Driver)
}
