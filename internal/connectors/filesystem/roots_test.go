package filesystem

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveRoot(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	wd, err := os.Getwd()
	require.NoError(t, err)

	tests := []struct {
		name string
		root string
		want string
	}{
		{
			name: "file:// URI is converted to local path",
			root: "file:///Users/test/documents",
			want: "/Users/test/documents",
		},
		{
			name: "file:// URI with spaces",
			root: "file:///Users/test/my documents",
			want: "/Users/test/my documents",
		},
		{
			name: "absolute path is cleaned",
			root: "/Users/test/../test/documents/",
			want: "/Users/test/documents",
		},
		{
			name: "relative path is made absolute",
			root: "relative/path",
			want: filepath.Join(wd, "relative/path"),
		},
		{
			name: "home directory is expanded",
			root: "~/notes",
			want: filepath.Join(home, "notes"),
		},
		{
			name: "bare tilde is home",
			root: "~",
			want: home,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveRoot(tt.root)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveRoot_Empty(t *testing.T) {
	_, err := ResolveRoot("")
	assert.Error(t, err)

	_, err = ResolveRoot("file://")
	assert.Error(t, err)
}

func TestResolveRoots(t *testing.T) {
	got, err := ResolveRoots([]string{"/a", "file:///b"})
	require.NoError(t, err)
	assert.Equal(t, []string{"/a", "/b"}, got)

	_, err = ResolveRoots([]string{"/a", ""})
	assert.Error(t, err)
}
