// Package sqlite stores documents, chunks and finished jobs in a single
// SQLite file, ~/.sercha-sync/data/documents.db unless a data directory is
// given. It uses modernc.org/sqlite, so no C toolchain is needed.
//
// The schema lives in migrations/ as NNN_name.up.sql files; applied
// versions are recorded in schema_migrations. Connections run in WAL mode
// with a busy timeout, and errors are classified into domain.DatabaseError
// so callers can tell lock or I/O trouble from constraint violations.
package sqlite
