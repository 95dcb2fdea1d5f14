// Package domain holds the types every other layer shares: documents and
// their chunks, content fingerprints, the run configuration that selects
// which mutations a sync applies, run statistics, and jobs.
//
// It imports nothing outside the standard library.
package domain
