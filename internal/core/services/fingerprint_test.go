package services

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-sync/internal/core/domain"
)

func TestFingerprint_KnownDigest(t *testing.T) {
	// sha256("hello")
	assert.Equal(t,
		"2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824",
		Fingerprint([]byte("hello")))
}

func TestFingerprint_Deterministic(t *testing.T) {
	data := []byte("line one\r\nline two\n")
	assert.Equal(t, Fingerprint(data), Fingerprint(append([]byte(nil), data...)))
	assert.True(t, domain.ValidFingerprint(Fingerprint(data)))
}

func TestFingerprint_SingleByteChange(t *testing.T) {
	base := []byte(strings.Repeat("content ", 100))
	baseFP := Fingerprint(base)

	for i := 0; i < len(base); i += 37 {
		changed := append([]byte(nil), base...)
		changed[i] ^= 0x01
		assert.NotEqual(t, baseFP, Fingerprint(changed), "byte %d", i)
	}
}

func TestFingerprint_NoLineEndingNormalisation(t *testing.T) {
	assert.NotEqual(t, Fingerprint([]byte("a\nb")), Fingerprint([]byte("a\r\nb")))
}

func TestFingerprintReader_MatchesFingerprint(t *testing.T) {
	data := strings.Repeat("x", 100000)
	fp, err := FingerprintReader(strings.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, Fingerprint([]byte(data)), fp)
}

func TestFingerprintFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0600))

	fp, err := FingerprintFile(path)
	require.NoError(t, err)
	assert.Equal(t, Fingerprint([]byte("hello")), fp)
}

func TestFingerprintFile_Missing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.txt")

	_, err := FingerprintFile(path)

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrIO)
	assert.ErrorIs(t, err, os.ErrNotExist)
	var fe *domain.FileError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, path, fe.Path)
	assert.Equal(t, "hash", fe.Op)
}

func TestCheckFingerprint(t *testing.T) {
	assert.NoError(t, checkFingerprint("/a", Fingerprint(nil)))
	assert.ErrorIs(t, checkFingerprint("/a", "xyz"), domain.ErrInvalidFingerprint)
	assert.ErrorIs(t, checkFingerprint("/a", strings.Repeat("A", 64)), domain.ErrInvalidFingerprint)
}
