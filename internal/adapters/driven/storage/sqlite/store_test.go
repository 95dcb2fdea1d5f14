package sqlite

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-sync/internal/core/domain"
)

// setupTestStore creates a SQLite store in a temporary directory.
func setupTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	require.NotNil(t, store)
	t.Cleanup(func() {
		assert.NoError(t, store.Close())
	})
	return store
}

// ==================== Store Creation and Migration Tests ====================

func TestNewStore_CreatesDatabase(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")

	store, err := NewStore(dir, WithMaxOpenConns(4))
	require.NoError(t, err)
	defer store.Close()

	assert.Equal(t, filepath.Join(dir, DatabaseFile), store.Path())
	_, err = os.Stat(store.Path())
	assert.NoError(t, err)
	assert.NoError(t, store.Ping(context.Background()))
}

func TestNewStore_RecordsSchemaVersion(t *testing.T) {
	store := setupTestStore(t)

	version, err := store.schemaVersion()
	require.NoError(t, err)
	assert.Equal(t, 1, version)

	for _, table := range []string{"documents", "chunks", "job_results"} {
		var name string
		err := store.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&name)
		assert.NoError(t, err, "table %s", table)
	}
}

func TestNewStore_ReopenIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)
	_, err = store.DocumentStore().ReplaceDocument(context.Background(), "/a.txt", fpA, chunksOf("x"))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := NewStore(dir)
	require.NoError(t, err)
	defer reopened.Close()

	files, err := reopened.DocumentStore().ExistingFiles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"/a.txt": fpA}, files)
}

func TestMigrate_AppliesOnlyNewVersions(t *testing.T) {
	store := setupTestStore(t)

	fsys := fstest.MapFS{
		"001_initial.up.sql": {Data: []byte("THIS IS NOT SQL")},
		"002_extra.up.sql":   {Data: []byte("CREATE TABLE extra (id INTEGER PRIMARY KEY);")},
		"002_extra.down.sql": {Data: []byte("DROP TABLE extra;")},
		"README.md":          {Data: []byte("ignored")},
	}
	require.NoError(t, store.migrate(context.Background(), fsys))

	version, err := store.schemaVersion()
	require.NoError(t, err)
	assert.Equal(t, 2, version)
	_, err = store.db.Exec("INSERT INTO extra (id) VALUES (1)")
	assert.NoError(t, err)
}

func TestMigrate_FailedMigrationIsNotRecorded(t *testing.T) {
	store := setupTestStore(t)

	fsys := fstest.MapFS{
		"002_broken.up.sql": {Data: []byte("CREATE TABLE broken (;")},
	}
	require.Error(t, store.migrate(context.Background(), fsys))

	version, err := store.schemaVersion()
	require.NoError(t, err)
	assert.Equal(t, 1, version)
}

func TestPendingMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"010_late.up.sql":    {},
		"002_second.up.sql":  {},
		"001_first.up.sql":   {},
		"001_first.down.sql": {},
		"notes.up.sql":       {},
	}

	pending, err := pendingMigrations(fsys, 1)

	require.NoError(t, err)
	assert.Equal(t, []migration{{2, "002_second.up.sql"}, {10, "010_late.up.sql"}}, pending)
}

func TestPendingMigrations_DuplicateVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"003_a.up.sql": {},
		"003_b.up.sql": {},
	}

	_, err := pendingMigrations(fsys, 0)
	assert.ErrorContains(t, err, "share version 3")
}

// ==================== Error Classification Tests ====================

type codedError struct{ code int }

func (e codedError) Error() string { return fmt.Sprintf("sqlite code %d", e.code) }
func (e codedError) Code() int { return e.code }

type timeoutError struct{}

func (timeoutError) Error() string { return "i/o timeout" }
func (timeoutError) Timeout() bool { return true }
func (timeoutError) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want domain.DBErrorKind
	}{
		{"busy", codedError{codeBusy}, domain.DBConnectivity},
		{"locked", codedError{codeLocked}, domain.DBConnectivity},
		{"ioerr extended", codedError{codeIOErr | 3<<8}, domain.DBConnectivity},
		{"cantopen", codedError{codeCantOpen}, domain.DBConnectivity},
		{"unique constraint", codedError{codeConstraint | 8<<8}, domain.DBConstraint},
		{"other code", codedError{1}, domain.DBOther},
		{"bad conn", fmt.Errorf("exec: %w", driver.ErrBadConn), domain.DBConnectivity},
		{"net error", timeoutError{}, domain.DBConnectivity},
		{"plain", errors.New("boom"), domain.DBOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify("op", tt.err)

			var dbErr *domain.DatabaseError
			require.ErrorAs(t, err, &dbErr)
			assert.Equal(t, tt.want, dbErr.Kind)
			assert.Equal(t, "op", dbErr.Op)
			assert.ErrorIs(t, err, tt.err)
		})
	}

	assert.NoError(t, classify("op", nil))
}
