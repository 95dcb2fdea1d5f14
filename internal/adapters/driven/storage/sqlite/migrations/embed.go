// Package migrations holds the SQLite schema as numbered SQL files, applied
// in name order by the sqlite store.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
