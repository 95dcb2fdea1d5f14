package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/sercha-sync/internal/core/domain"
	"github.com/custodia-labs/sercha-sync/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-sync/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-sync/internal/logger"
)

// Ensure Loader implements the interface.
var _ driving.Loader = (*Loader)(nil)

// Loader runs one synchronisation pass:
// validate, discover, categorise, apply (or report), aggregate.
//
// Store mutations within a run are issued sequentially. Discovery hashes
// files in parallel. A Loader holds no per-run state and may serve
// concurrent runs over disjoint roots.
type Loader struct {
	source      driven.FileSource
	store       driven.DocumentStore
	splitter    driven.Splitter
	embedder    driven.EmbeddingService
	hashWorkers int
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithHashWorkers bounds parallel hashing during discovery.
func WithHashWorkers(n int) LoaderOption {
	return func(l *Loader) {
		if n > 0 {
			l.hashWorkers = n
		}
	}
}

// WithEmbedder sets the embedding service. Without one, chunks are stored
// without vectors.
func WithEmbedder(embedder driven.EmbeddingService) LoaderOption {
	return func(l *Loader) {
		l.embedder = embedder
	}
}

// NewLoader creates a loader.
func NewLoader(
	source driven.FileSource,
	store driven.DocumentStore,
	splitter driven.Splitter,
	opts ...LoaderOption,
) *Loader {
	l := &Loader{
		source:      source,
		store:       store,
		splitter:    splitter,
		hashWorkers: runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// plan lists the paths a run acts on, in processing order.
type plan struct {
	adds    []string
	updates []string
	deletes []string
}

func (p plan) total() int {
	return len(p.adds) + len(p.updates) + len(p.deletes)
}

// Run executes one synchronisation run.
//
// Per-file failures are recorded in the returned stats and do not stop the
// batch. A database connectivity failure aborts the run. When the batch
// completes with retryable per-file failures, Run returns a
// *domain.RetryableRunError so the caller can schedule a fresh attempt.
// On cancellation Run returns the stats of the files processed so far
// together with the context error.
//
//nolint:gocyclo // Sequential run phases
func (l *Loader) Run(ctx context.Context, req domain.RunRequest, progress driving.ProgressFunc) (*domain.RunStats, error) {
	start := time.Now()
	stats := &domain.RunStats{DryRun: req.Config.DryRun}
	report := func(phase domain.Phase, done, total int) {
		if progress != nil {
			progress(phase, done, total)
		}
	}
	finish := func(err error) (*domain.RunStats, error) {
		stats.Duration = time.Since(start)
		return stats, err
	}

	// 1. Validate before any I/O
	report(domain.PhaseValidating, 0, 0)
	if err := req.Validate(); err != nil {
		return finish(err)
	}
	roots, err := normaliseRoots(req.Roots)
	if err != nil {
		return finish(err)
	}
	cfg := req.Config
	if cfg.Cleanup && !cfg.Update && !cfg.Force {
		logger.Warn("cleanup has no effect without update or force")
	}

	logger.Section("Sync " + cfg.String())
	logger.Info("Starting sync of %d root(s)", len(roots))

	// 2. Discover and hash
	report(domain.PhaseDiscovering, 0, 0)
	listing, err := l.source.List(ctx, roots)
	if err != nil {
		return finish(fmt.Errorf("discover: %w", err))
	}
	discovered, unreadable, err := l.hashAll(ctx, listing, stats)
	if err != nil {
		return finish(err)
	}
	logger.Debug("Discovered %d file(s), %d unreadable", len(discovered), len(unreadable))

	// 3. Categorise against the store snapshot for these roots
	report(domain.PhaseCategorizing, 0, 0)
	recorded, err := l.store.ExistingFiles(ctx)
	if err != nil {
		return finish(fmt.Errorf("existing files: %w", err))
	}
	cat := Categorize(discovered, withinRoots(recorded, roots), unreadable)
	p := planFor(cfg, cat)
	if !cfg.Force {
		stats.Skipped = len(cat.Skip)
	}
	logger.Info("Categorised: %d skip, %d add, %d update, %d delete",
		len(cat.Skip), len(cat.Add), len(cat.Update), len(cat.Delete))

	// 4a. Dry run: report intended work only
	if cfg.DryRun {
		report(domain.PhaseDryRunReport, 0, 0)
		stats.Added = len(p.adds)
		stats.Updated = len(p.updates)
		stats.Deleted = len(p.deletes)
		for _, path := range p.adds {
			logger.Info("would add %s", path)
		}
		for _, path := range p.updates {
			logger.Info("would update %s", path)
		}
		for _, path := range p.deletes {
			logger.Info("would delete %s", path)
		}
		return finish(nil)
	}

	// 4b. Apply: add, then update, then delete
	total := p.total()
	done := 0
	report(domain.PhaseApplying, done, total)

	var retryable []error
	apply := func(paths []string, counter *int) error {
		for _, path := range paths {
			if err := ctx.Err(); err != nil {
				return err
			}
			inserted, removed, err := l.ingest(ctx, path)
			switch {
			case err == nil:
				*counter++
				stats.ChunksInserted += inserted
				stats.ChunksDeleted += removed
				logger.Debug("Ingested %s (%d chunks)", path, inserted)
			case ctx.Err() != nil:
				return ctx.Err()
			case domain.IsConnectivity(err):
				return err
			default:
				recordFailure(stats, path, "store", err)
				if Classify(err) == ClassRetryable {
					retryable = append(retryable, err)
				}
				logger.Warn("Failed to ingest %s: %v", path, err)
			}
			done++
			report(domain.PhaseApplying, done, total)
		}
		return nil
	}

	if err := apply(p.adds, &stats.Added); err != nil {
		return finish(err)
	}
	if err := apply(p.updates, &stats.Updated); err != nil {
		return finish(err)
	}
	if len(p.deletes) > 0 {
		if err := l.deleteAll(ctx, p.deletes, stats); err != nil {
			return finish(err)
		}
		done += len(p.deletes)
		report(domain.PhaseApplying, done, total)
	}

	// 5. Aggregate
	report(domain.PhaseAggregating, done, total)
	stats.Duration = time.Since(start)
	logger.Info("Sync complete: %d added, %d updated, %d deleted, %d skipped, %d failed",
		stats.Added, stats.Updated, stats.Deleted, stats.Skipped, stats.Failed)

	if len(retryable) > 0 {
		return finish(&domain.RetryableRunError{Failures: len(retryable), First: retryable[0]})
	}
	report(domain.PhaseDone, done, total)
	return finish(nil)
}

// planFor selects the categories the config acts on.
func planFor(cfg domain.RunConfig, cat domain.Categorization) plan {
	var p plan
	if cfg.Force {
		// Every discovered path is treated as new.
		p.adds = make([]string, 0, len(cat.Add)+len(cat.Update)+len(cat.Skip))
		p.adds = append(p.adds, cat.Add...)
		p.adds = append(p.adds, cat.Update...)
		p.adds = append(p.adds, cat.Skip...)
		sort.Strings(p.adds)
	} else if cfg.AppliesAdd() {
		p.adds = cat.Add
	}
	if cfg.AppliesUpdate() {
		p.updates = cat.Update
	}
	if cfg.AppliesDelete() {
		p.deletes = cat.Delete
	}
	return p
}

// hashAll fingerprints every listed file in parallel.
// Files that cannot be hashed are recorded as failures and returned in the
// unreadable set together with the directories the listing could not read.
func (l *Loader) hashAll(
	ctx context.Context,
	listing *driven.Listing,
	stats *domain.RunStats,
) (map[string]string, map[string]struct{}, error) {
	fps := make([]string, len(listing.Files))
	errs := make([]error, len(listing.Files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.hashWorkers)
	for i, path := range listing.Files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fps[i], errs[i] = l.hashOne(path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	discovered := make(map[string]string, len(listing.Files))
	unreadable := make(map[string]struct{}, len(listing.Unreadable))
	for _, path := range listing.Unreadable {
		unreadable[path] = struct{}{}
	}
	for i, path := range listing.Files {
		if errs[i] != nil {
			recordFailure(stats, path, "hash", errs[i])
			unreadable[path] = struct{}{}
			logger.Warn("Skipping %s: %v", path, errs[i])
			continue
		}
		discovered[path] = fps[i]
	}
	return discovered, unreadable, nil
}

func (l *Loader) hashOne(path string) (string, error) {
	rc, err := l.source.Open(path)
	if err != nil {
		return "", &domain.FileError{Path: path, Op: "hash", Err: fmt.Errorf("%w: %w", domain.ErrIO, err)}
	}
	defer rc.Close()

	fp, err := FingerprintReader(rc)
	if err != nil {
		return "", &domain.FileError{Path: path, Op: "hash", Err: fmt.Errorf("%w: %w", domain.ErrIO, err)}
	}
	if err := checkFingerprint(path, fp); err != nil {
		return "", err
	}
	return fp, nil
}

// ingest reads, splits and embeds one file, then replaces its document.
// The stored fingerprint is taken from the bytes actually read so that it
// always describes the stored chunks.
func (l *Loader) ingest(ctx context.Context, path string) (inserted, removed int, err error) {
	rc, err := l.source.Open(path)
	if err != nil {
		return 0, 0, &domain.FileError{Path: path, Op: "read", Err: fmt.Errorf("%w: %w", domain.ErrIO, err)}
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return 0, 0, &domain.FileError{Path: path, Op: "read", Err: fmt.Errorf("%w: %w", domain.ErrIO, err)}
	}

	pieces, err := l.splitter.Split(ctx, string(data))
	if err != nil {
		return 0, 0, &domain.FileError{Path: path, Op: "split", Err: fmt.Errorf("%w: %w", domain.ErrCollaborator, err)}
	}

	chunks := make([]domain.Chunk, len(pieces))
	for i, piece := range pieces {
		chunks[i] = domain.Chunk{
			Position: i,
			Content:  piece.Content,
			Metadata: piece.Metadata,
		}
	}

	if l.embedder != nil && len(pieces) > 0 {
		if err := l.embed(ctx, chunks); err != nil {
			return 0, 0, &domain.FileError{Path: path, Op: "embed", Err: err}
		}
	}

	removed, err = l.store.ReplaceDocument(ctx, path, Fingerprint(data), chunks)
	if err != nil {
		return 0, 0, &domain.FileError{Path: path, Op: "store", Err: err}
	}
	return len(chunks), removed, nil
}

// embed attaches vectors to chunks in one batch call.
func (l *Loader) embed(ctx context.Context, chunks []domain.Chunk) error {
	texts := make([]string, len(chunks))
	for i := range chunks {
		texts[i] = chunks[i].Content
	}
	vectors, err := l.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrCollaborator, err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("%w: got %d embeddings for %d chunks", domain.ErrCollaborator, len(vectors), len(chunks))
	}
	dims := l.embedder.Dimensions()
	for i, vec := range vectors {
		if dims > 0 && len(vec) != dims {
			return fmt.Errorf("%w: embedding has %d dimensions, want %d", domain.ErrConfig, len(vec), dims)
		}
		chunks[i].Embedding = vec
	}
	return nil
}

// deleteAll removes orphaned documents. Per-path failures are recorded;
// connectivity failures and cancellation abort the run.
func (l *Loader) deleteAll(ctx context.Context, paths []string, stats *domain.RunStats) error {
	result, err := l.store.DeleteDocuments(ctx, paths)
	stats.Deleted += result.Documents
	stats.ChunksDeleted += result.Chunks
	for _, path := range result.Deleted {
		logger.Debug("Deleted %s", path)
	}
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if domain.IsConnectivity(err) {
		return err
	}
	for _, e := range unjoin(err) {
		var fe *domain.FileError
		if errors.As(e, &fe) {
			recordFailure(stats, fe.Path, "delete", fe.Err)
		} else {
			recordFailure(stats, "", "delete", e)
		}
		logger.Warn("Delete failed: %v", e)
	}
	return nil
}

// recordFailure appends a per-file failure, unwrapping a *domain.FileError
// so its own path and step are kept.
func recordFailure(stats *domain.RunStats, path, op string, err error) {
	var fe *domain.FileError
	if errors.As(err, &fe) {
		stats.RecordFailure(fe.Path, fe.Op, fe.Err)
		return
	}
	stats.RecordFailure(path, op, err)
}

// unjoin splits an errors.Join result into its parts.
func unjoin(err error) []error {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return joined.Unwrap()
	}
	return []error{err}
}

// normaliseRoots makes every root absolute and clean.
func normaliseRoots(roots []string) ([]string, error) {
	out := make([]string, 0, len(roots))
	for _, root := range roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("%w: root %q: %w", domain.ErrConfig, root, err)
		}
		out = append(out, filepath.Clean(abs))
	}
	return out, nil
}
