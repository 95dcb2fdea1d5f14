package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrConfig indicates an invalid run configuration.
	// Submissions failing with it never enter the queue.
	ErrConfig = errors.New("invalid configuration")

	// Synchronisation Errors.

	// ErrIO indicates a file could not be read.
	// The file is skipped for the current run.
	ErrIO = errors.New("file unreadable")

	// ErrInvalidFingerprint indicates a fingerprint is not a valid hex digest.
	ErrInvalidFingerprint = errors.New("invalid fingerprint")

	// ErrCollaborator indicates the chunking or embedding collaborator failed.
	ErrCollaborator = errors.New("collaborator failed")

	// ErrEmbeddingUnavailable indicates the embedding service is not reachable.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// Job Errors.

	// ErrQueueFull indicates the scheduler queue is at capacity.
	ErrQueueFull = errors.New("job queue full")

	// ErrJobNotFound indicates no job has the given ID.
	ErrJobNotFound = errors.New("job not found")

	// ErrTimeout indicates an attempt exceeded its wall-clock timeout.
	ErrTimeout = errors.New("job attempt timed out")

	// ErrControllerStopped indicates the controller is not accepting work.
	ErrControllerStopped = errors.New("controller stopped")
)

// DBErrorKind classifies database failures.
type DBErrorKind int

// Database error kinds.
const (
	// DBOther is an unclassified database failure.
	DBOther DBErrorKind = iota

	// DBConnectivity is a connection, locking or I/O failure. Retryable.
	DBConnectivity

	// DBConstraint is a constraint violation. Fatal for the affected file.
	DBConstraint
)

// String returns the kind name.
func (k DBErrorKind) String() string {
	switch k {
	case DBConnectivity:
		return "connectivity"
	case DBConstraint:
		return "constraint"
	default:
		return "other"
	}
}

// DatabaseError wraps a store failure with its classification.
type DatabaseError struct {
	// Op names the store operation.
	Op string

	// Kind classifies the failure.
	Kind DBErrorKind

	// Err is the driver error.
	Err error
}

// Error implements error.
func (e *DatabaseError) Error() string {
	return fmt.Sprintf("database %s (%s): %v", e.Op, e.Kind, e.Err)
}

// Unwrap returns the driver error.
func (e *DatabaseError) Unwrap() error {
	return e.Err
}

// IsConnectivity reports whether err is a database connectivity failure.
func IsConnectivity(err error) bool {
	var dbErr *DatabaseError
	return errors.As(err, &dbErr) && dbErr.Kind == DBConnectivity
}

// IsConstraint reports whether err is a database constraint violation.
func IsConstraint(err error) bool {
	var dbErr *DatabaseError
	return errors.As(err, &dbErr) && dbErr.Kind == DBConstraint
}

// HTTPStatusError reports a non-success response from an upstream service.
type HTTPStatusError struct {
	// Service names the upstream, e.g. "ollama".
	Service string

	// StatusCode is the HTTP status.
	StatusCode int

	// Body is the (possibly truncated) response body.
	Body string
}

// Error implements error.
func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("%s error (status %d): %s", e.Service, e.StatusCode, e.Body)
}

// Temporary reports whether the status indicates a transient upstream condition.
func (e *HTTPStatusError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429 || e.StatusCode == 408
}

// RetryableRunError is returned by a run that completed its batch but
// recorded at least one per-file failure that a fresh attempt may fix.
type RetryableRunError struct {
	// Failures is the number of retryable per-file failures.
	Failures int

	// First is the first retryable failure.
	First error
}

// Error implements error.
func (e *RetryableRunError) Error() string {
	return fmt.Sprintf("%d file(s) failed with retryable errors, first: %v", e.Failures, e.First)
}

// Unwrap returns the first retryable failure.
func (e *RetryableRunError) Unwrap() error {
	return e.First
}
