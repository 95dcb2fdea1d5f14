package cli

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-sync/internal/core/domain"
)

func TestConfigCmd_Show(t *testing.T) {
	newCLIFixture(t)

	out, err := execute(context.Background(), "config")

	require.NoError(t, err)
	assert.Contains(t, out, "[store]")
	assert.Contains(t, out, "  driver = sqlite")
	assert.Contains(t, out, "[retry]")
	assert.Contains(t, out, "  url = (not set)")
}

func TestConfigCmd_SetThenGet(t *testing.T) {
	f := newCLIFixture(t)

	out, err := execute(context.Background(), "config", "set", "scheduler.concurrency", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "scheduler.concurrency updated.")

	out, err = execute(context.Background(), "config", "get", "scheduler.concurrency")
	require.NoError(t, err)
	assert.Equal(t, "2\n", out)

	settings, err := f.settings.Get()
	require.NoError(t, err)
	assert.Equal(t, 2, settings.Scheduler.Concurrency)
	assert.Zero(t, f.opened, "config commands never open the store")
}

func TestConfigCmd_SetInvalid(t *testing.T) {
	newCLIFixture(t)

	_, err := execute(context.Background(), "config", "set", "scheduler.concurrency", "many")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = execute(context.Background(), "config", "get", "no.such.key")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestConfigCmd_SetWarnsWhenInvalid(t *testing.T) {
	newCLIFixture(t)

	out, err := execute(context.Background(), "config", "set", "store.driver", "postgres")

	require.NoError(t, err)
	assert.Contains(t, out, "Warning: settings are not valid yet")
}

func TestConfigCmd_Keys(t *testing.T) {
	newCLIFixture(t)

	out, err := execute(context.Background(), "config", "keys")

	require.NoError(t, err)
	assert.Contains(t, out, "store.driver\n")
	assert.Contains(t, out, "sync.watch_debounce\n")
}

func TestDisplayValue(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
		want  string
	}{
		{"empty", "store.data_dir", "", "(not set)"},
		{"plain", "store.driver", "sqlite", "sqlite"},
		{"url password hidden", "store.url", "postgres://sync:secret@db:5432/docs", "postgres://sync:xxxxx@db:5432/docs"},
		{"url without password", "store.url", "postgres://db/docs", "postgres://db/docs"},
		{"other url keys untouched", "embedding.base_url", "http://localhost:11434", "http://localhost:11434"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, displayValue(tt.key, tt.value))
		})
	}
}

func TestConfigCmd_Unset(t *testing.T) {
	f := newCLIFixture(t)
	require.NoError(t, f.settings.Set("chunker.size", "500"))

	out, err := execute(context.Background(), "config", "unset", "chunker.size")

	require.NoError(t, err)
	assert.Contains(t, out, "chunker.size reset to 1000.")
	settings, err := f.settings.Get()
	require.NoError(t, err)
	assert.Equal(t, 1000, settings.Chunker.Size)

	_, err = execute(context.Background(), "config", "unset", "no.such.key")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
