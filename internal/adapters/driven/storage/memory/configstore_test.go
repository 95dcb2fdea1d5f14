package memory

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigStore_SetAndGet(t *testing.T) {
	store := NewConfigStore()
	require.NoError(t, store.Set("store.driver", "sqlite"))
	require.NoError(t, store.Set("sync.exclude", []string{"*.log"}))

	val, ok := store.Get("store.driver")
	assert.True(t, ok)
	assert.Equal(t, "sqlite", val)

	val, ok = store.Get("sync.exclude")
	assert.True(t, ok)
	assert.Equal(t, []string{"*.log"}, val)

	_, ok = store.Get("missing")
	assert.False(t, ok)
}

func TestConfigStore_Unset(t *testing.T) {
	store := NewConfigStore()
	require.NoError(t, store.Set("log.verbose", true))

	require.NoError(t, store.Unset("log.verbose"))
	require.NoError(t, store.Unset("log.verbose"))

	_, ok := store.Get("log.verbose")
	assert.False(t, ok)
	assert.Empty(t, store.Keys())
}

func TestConfigStore_Keys(t *testing.T) {
	store := NewConfigStore()
	require.NoError(t, store.Set("b.key", 1))
	require.NoError(t, store.Set("a.key", 2))

	assert.Equal(t, []string{"a.key", "b.key"}, store.Keys())
}

func TestConfigStore_SaveLoadPath(t *testing.T) {
	store := NewConfigStore()
	assert.NoError(t, store.Save())
	assert.NoError(t, store.Load())
	assert.Equal(t, ":memory:", store.Path())
}

func TestConfigStore_Concurrency(t *testing.T) {
	store := NewConfigStore()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.Set("scheduler.concurrency", i)
			_, _ = store.Get("scheduler.concurrency")
			_ = store.Keys()
		}()
	}
	wg.Wait()

	_, ok := store.Get("scheduler.concurrency")
	assert.True(t, ok)
}
