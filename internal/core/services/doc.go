// Package services implements the driving ports.
//
// Loader performs a single sync run: it lists the roots, fingerprints what it
// finds, categorises each path against the store and applies the mutations
// the RunConfig allows. JobScheduler, RetryPolicy, JobTracker and Controller
// wrap runs as queued jobs that can be retried and cancelled.
package services
