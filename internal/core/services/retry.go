package services

import (
	"context"
	"errors"
	"io/fs"
	"math"
	"math/rand/v2"
	"net"
	"time"

	"github.com/custodia-labs/sercha-sync/internal/core/domain"
)

// ErrorClass separates failures a fresh attempt may fix from those it cannot.
type ErrorClass int

// Error classes.
const (
	// ClassFatal ends the job without another attempt.
	ClassFatal ErrorClass = iota

	// ClassRetryable schedules another attempt after a backoff.
	ClassRetryable
)

// String returns the class name.
func (c ErrorClass) String() string {
	if c == ClassRetryable {
		return "retryable"
	}
	return "fatal"
}

// Classify maps an attempt error to its class.
// Unknown errors are fatal so that a bug never loops forever.
func Classify(err error) ErrorClass {
	if err == nil {
		return ClassFatal
	}

	// Fatal conditions are checked first: a permission error wrapped as I/O
	// is still permanent.
	switch {
	case errors.Is(err, domain.ErrConfig),
		errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, fs.ErrPermission),
		domain.IsConstraint(err):
		return ClassFatal
	}

	// An upstream status outranks the collaborator wrapper around it.
	var httpErr *domain.HTTPStatusError
	if errors.As(err, &httpErr) {
		if httpErr.Temporary() {
			return ClassRetryable
		}
		return ClassFatal
	}

	switch {
	case errors.Is(err, domain.ErrIO),
		errors.Is(err, domain.ErrCollaborator),
		errors.Is(err, domain.ErrEmbeddingUnavailable),
		errors.Is(err, domain.ErrTimeout),
		errors.Is(err, context.DeadlineExceeded),
		domain.IsConnectivity(err):
		return ClassRetryable
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return ClassRetryable
	}

	return ClassFatal
}

// Decision is the outcome of consulting the retry policy.
type Decision struct {
	// Retry is true when another attempt should be scheduled.
	Retry bool

	// Delay is the backoff before the next attempt.
	Delay time.Duration
}

// RetryPolicy computes exponential backoff with jitter.
// It holds no mutable state and is safe for concurrent use.
type RetryPolicy struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	JitterFraction float64

	// jitter returns a value in [0, 1).
	jitter func() float64
}

// NewRetryPolicy creates a retry policy from settings.
func NewRetryPolicy(settings domain.RetrySettings) *RetryPolicy {
	return &RetryPolicy{
		MaxRetries:     settings.MaxRetries,
		InitialBackoff: settings.InitialBackoff,
		MaxBackoff:     settings.MaxBackoff,
		Multiplier:     settings.Multiplier,
		JitterFraction: settings.JitterFraction,
		jitter:         rand.Float64,
	}
}

// DefaultRetryPolicy returns the policy built from default settings.
func DefaultRetryPolicy() *RetryPolicy {
	return NewRetryPolicy(domain.DefaultAppSettings().Retry)
}

// WithJitterSource replaces the random source. fn must return values in [0, 1).
func (p *RetryPolicy) WithJitterSource(fn func() float64) *RetryPolicy {
	cp := *p
	cp.jitter = fn
	return &cp
}

// NextDelay returns the backoff before retry number attempt (zero-based):
// min(max, initial*multiplier^attempt) * (1 + jitter).
func (p *RetryPolicy) NextDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	base := float64(p.InitialBackoff) * math.Pow(p.Multiplier, float64(attempt))
	if base > float64(p.MaxBackoff) || math.IsInf(base, 0) {
		base = float64(p.MaxBackoff)
	}

	j := 0.0
	if p.jitter != nil && p.JitterFraction > 0 {
		j = p.jitter() * p.JitterFraction
	}
	return time.Duration(base * (1 + j))
}

// MaxDelay is the largest delay NextDelay can return.
func (p *RetryPolicy) MaxDelay() time.Duration {
	return time.Duration(float64(p.MaxBackoff) * (1 + p.JitterFraction))
}

// Decide reports whether a job that has made attempts attempts and failed
// with an error of class should run again, and after how long.
// A job runs at most MaxRetries+1 times.
func (p *RetryPolicy) Decide(attempts int, class ErrorClass) Decision {
	if class != ClassRetryable || attempts > p.MaxRetries {
		return Decision{}
	}
	return Decision{Retry: true, Delay: p.NextDelay(attempts - 1)}
}
