// Package driving holds the interfaces the CLI and the background triggers
// call into: settings, sync runs, job control and schedulers. The services
// package implements them.
package driving
