// Package driven lists what the sync engine needs from the outside world.
//
// A working setup needs a DocumentStore (SQLite, PostgreSQL or memory), a
// FileSource over the sync roots, a Splitter for chunking and a ConfigStore.
//
// Three ports may be left nil:
//
//   - EmbeddingService: chunks are stored without vectors.
//   - JobHistoryStore: finished jobs are kept in memory only.
//   - ChangeWatcher: watch mode is unavailable.
//
// Nothing here imports an adapter package; the only internal dependency is
// domain.
package driven
