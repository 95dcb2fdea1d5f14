package file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigStore_Success(t *testing.T) {
	tmpDir := t.TempDir()

	store, err := NewConfigStore(tmpDir)

	require.NoError(t, err)
	require.NotNil(t, store)
	assert.Equal(t, filepath.Join(tmpDir, FileName), store.Path())
	assert.Empty(t, store.Keys())
}

func TestNewConfigStore_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "config")

	_, err := NewConfigStore(dir)
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestConfigStore_SetWritesNestedTables(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Set("store.driver", "postgres"))
	require.NoError(t, store.Set("retry.max_backoff", "2m"))

	data, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Contains(t, string(data), "[store]")
	assert.Contains(t, string(data), "[retry]")
}

func TestConfigStore_ReopenKeepsValues(t *testing.T) {
	tmpDir := t.TempDir()
	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	require.NoError(t, store.Set("store.driver", "sqlite"))
	require.NoError(t, store.Set("scheduler.concurrency", 6))
	require.NoError(t, store.Set("retry.multiplier", 1.5))
	require.NoError(t, store.Set("sync.include_hidden", true))
	require.NoError(t, store.Set("sync.exclude", []string{"*.tmp", "vendor"}))

	reopened, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"retry.multiplier",
		"scheduler.concurrency",
		"store.driver",
		"sync.exclude",
		"sync.include_hidden",
	}, reopened.Keys())

	// Values come back with their TOML types.
	val, _ := reopened.Get("store.driver")
	assert.Equal(t, "sqlite", val)
	val, _ = reopened.Get("scheduler.concurrency")
	assert.Equal(t, int64(6), val)
	val, _ = reopened.Get("retry.multiplier")
	assert.Equal(t, 1.5, val)
	val, _ = reopened.Get("sync.include_hidden")
	assert.Equal(t, true, val)
	val, _ = reopened.Get("sync.exclude")
	assert.Equal(t, []any{"*.tmp", "vendor"}, val)
}

func TestConfigStore_LoadHandWrittenFile(t *testing.T) {
	tmpDir := t.TempDir()
	content := `
[store]
driver = "postgres"
url = "postgres://localhost/sync"

[retry]
max_retries = 5

[scheduler]
interval = "15m"
`
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, FileName), []byte(content), 0o600))

	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	val, ok := store.Get("store.url")
	require.True(t, ok)
	assert.Equal(t, "postgres://localhost/sync", val)

	val, ok = store.Get("retry.max_retries")
	require.True(t, ok)
	assert.Equal(t, int64(5), val)

	val, ok = store.Get("scheduler.interval")
	require.True(t, ok)
	assert.Equal(t, "15m", val)
}

func TestConfigStore_Unset(t *testing.T) {
	tmpDir := t.TempDir()
	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)
	require.NoError(t, store.Set("log.verbose", true))
	require.NoError(t, store.Set("log.file", "/tmp/sync.log"))

	require.NoError(t, store.Unset("log.verbose"))
	require.NoError(t, store.Unset("never.set"))

	reopened, err := NewConfigStore(tmpDir)
	require.NoError(t, err)
	assert.Equal(t, []string{"log.file"}, reopened.Keys())
}

func TestConfigStore_LoadDiscardsUnsaved(t *testing.T) {
	tmpDir := t.TempDir()
	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)
	require.NoError(t, store.Set("store.driver", "sqlite"))

	other, err := NewConfigStore(tmpDir)
	require.NoError(t, err)
	require.NoError(t, other.Set("store.driver", "memory"))

	require.NoError(t, store.Load())
	val, _ := store.Get("store.driver")
	assert.Equal(t, "memory", val)
}

func TestConfigStore_InvalidTOML(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, FileName), []byte("not [valid toml"), 0o600))

	_, err := NewConfigStore(tmpDir)
	assert.Error(t, err)
}

func TestConfigStore_FilePermissions(t *testing.T) {
	tmpDir := t.TempDir()
	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)
	require.NoError(t, store.Set("store.driver", "sqlite"))

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	entries, err := os.ReadDir(tmpDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files left behind")
}

func TestNestAndFlatten(t *testing.T) {
	flat := map[string]any{
		"a.b":   1,
		"a.c":   "x",
		"top":   true,
		"d.e.f": 2.5,
	}

	tree := nest(flat)
	assert.Equal(t, map[string]any{
		"a":   map[string]any{"b": 1, "c": "x"},
		"top": true,
		"d":   map[string]any{"e": map[string]any{"f": 2.5}},
	}, tree)

	back := make(map[string]any)
	flatten(tree, "", back)
	assert.Equal(t, flat, back)
}

func TestNest_ValueWinsOverTable(t *testing.T) {
	tree := nest(map[string]any{"a": 1, "a.b": 2})
	assert.Equal(t, map[string]any{"a": 1}, tree)
}
