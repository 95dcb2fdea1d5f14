package domain

import (
	"fmt"
	"strings"
	"time"
)

// RunConfig carries the five independent intents of a sync run.
// It is a value type; copy it freely.
type RunConfig struct {
	// Resume continues ingesting paths that are not yet stored.
	Resume bool

	// Update re-ingests stored paths whose content changed.
	Update bool

	// Cleanup removes stored paths that no longer exist on disk.
	Cleanup bool

	// DryRun computes and reports intended changes without mutating the store.
	DryRun bool

	// Force treats every discovered path as new.
	Force bool
}

// Validate rejects impossible flag combinations.
// Force is mutually exclusive with Resume and Update.
func (c RunConfig) Validate() error {
	if c.Force && c.Resume {
		return fmt.Errorf("%w: force cannot be combined with resume", ErrConfig)
	}
	if c.Force && c.Update {
		return fmt.Errorf("%w: force cannot be combined with update", ErrConfig)
	}
	return nil
}

// AppliesAdd reports whether new paths are ingested. Always true.
func (c RunConfig) AppliesAdd() bool {
	return true
}

// AppliesUpdate reports whether changed paths are re-ingested.
func (c RunConfig) AppliesUpdate() bool {
	return c.Update && !c.Force
}

// AppliesDelete reports whether orphaned paths are removed.
func (c RunConfig) AppliesDelete() bool {
	return c.Cleanup && (c.Update || c.Force)
}

// String returns a compact description such as "update+cleanup".
func (c RunConfig) String() string {
	var parts []string
	if c.Force {
		parts = append(parts, "force")
	}
	if c.Resume {
		parts = append(parts, "resume")
	}
	if c.Update {
		parts = append(parts, "update")
	}
	if c.Cleanup {
		parts = append(parts, "cleanup")
	}
	if c.DryRun {
		parts = append(parts, "dry-run")
	}
	if len(parts) == 0 {
		return "default"
	}
	return strings.Join(parts, "+")
}

// RunRequest is the input of one sync run.
type RunRequest struct {
	// Config selects which categories are acted on.
	Config RunConfig

	// Roots are the directories or files to scan.
	Roots []string
}

// Validate checks the config and that at least one root is given.
func (r RunRequest) Validate() error {
	if err := r.Config.Validate(); err != nil {
		return err
	}
	if len(r.Roots) == 0 {
		return fmt.Errorf("%w: at least one root path is required", ErrConfig)
	}
	for _, root := range r.Roots {
		if strings.TrimSpace(root) == "" {
			return fmt.Errorf("%w: empty root path", ErrConfig)
		}
	}
	return nil
}

// FileError records a per-file failure inside a run.
type FileError struct {
	// Path is the file the failure belongs to.
	Path string

	// Op names the step that failed (hash, read, split, embed, store).
	Op string

	// Err is the underlying error.
	Err error
}

// Error implements error.
func (e *FileError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *FileError) Unwrap() error {
	return e.Err
}

// RunStats accumulates the outcome of one run.
// It is owned by a single run and handed to the caller on completion.
type RunStats struct {
	Skipped int
	Added   int
	Updated int
	Deleted int

	// Failed counts files whose processing failed in this run.
	Failed int

	ChunksInserted int
	ChunksDeleted  int

	// DryRun is true when the counts describe intended, not applied, work.
	DryRun bool

	Duration time.Duration

	// Errors holds per-file failures in the order they occurred.
	Errors []FileError
}

// RecordFailure appends a per-file failure.
func (s *RunStats) RecordFailure(path, op string, err error) {
	s.Failed++
	s.Errors = append(s.Errors, FileError{Path: path, Op: op, Err: err})
}

// Merge adds other's counters into s. Used for aggregate statistics.
func (s *RunStats) Merge(other RunStats) {
	s.Skipped += other.Skipped
	s.Added += other.Added
	s.Updated += other.Updated
	s.Deleted += other.Deleted
	s.Failed += other.Failed
	s.ChunksInserted += other.ChunksInserted
	s.ChunksDeleted += other.ChunksDeleted
	s.Duration += other.Duration
}

// Mutations returns the number of store-changing file operations.
func (s *RunStats) Mutations() int {
	return s.Added + s.Updated + s.Deleted
}
