package cli

import (
	"context"
	"runtime/debug"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withVersion(t *testing.T, v string) {
	t.Helper()
	previous := version
	version = v
	t.Cleanup(func() {
		version = previous
		resetFlags()
	})
}

func TestVersionCmd_PrintsVersion(t *testing.T) {
	withVersion(t, "1.4.0")

	out, err := execute(context.Background(), "version")

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "sercha-sync 1.4.0"), out)
}

func TestVersionCmd_Short(t *testing.T) {
	withVersion(t, "dev")

	out, err := execute(context.Background(), "version", "--short")

	require.NoError(t, err)
	assert.Equal(t, "dev\n", out)
}

func TestVersionCmd_RejectsArgs(t *testing.T) {
	withVersion(t, "dev")

	_, err := execute(context.Background(), "version", "extra")
	assert.Error(t, err)
}

func TestVersionLine(t *testing.T) {
	tests := []struct {
		name string
		info *debug.BuildInfo
		want string
	}{
		{"no build info", nil, "sercha-sync 1.0.0"},
		{"go version only", &debug.BuildInfo{GoVersion: "go1.24.2"}, "sercha-sync 1.0.0 (go1.24.2)"},
		{
			"with revision",
			&debug.BuildInfo{GoVersion: "go1.24.2", Settings: []debug.BuildSetting{
				{Key: "vcs.revision", Value: "0123456789abcdef0123"},
				{Key: "vcs.modified", Value: "false"},
			}},
			"sercha-sync 1.0.0 (0123456789ab, go1.24.2)",
		},
		{
			"dirty tree",
			&debug.BuildInfo{GoVersion: "go1.24.2", Settings: []debug.BuildSetting{
				{Key: "vcs.revision", Value: "abc123"},
				{Key: "vcs.modified", Value: "true"},
			}},
			"sercha-sync 1.0.0 (abc123-dirty, go1.24.2)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, versionLine("1.0.0", tt.info))
		})
	}
}
