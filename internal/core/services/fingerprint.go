package services

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/custodia-labs/sercha-sync/internal/core/domain"
)

// Fingerprint returns the lowercase hex SHA-256 digest of data.
// The exact bytes are hashed; line endings and encodings are not normalised.
func Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// FingerprintReader streams r through the hash.
func FingerprintReader(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// FingerprintFile hashes the file at path.
// A file that is unreadable or disappears mid-read yields a *domain.FileError
// wrapping domain.ErrIO.
func FingerprintFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", hashError(path, err)
	}
	defer f.Close()

	fp, err := FingerprintReader(f)
	if err != nil {
		return "", hashError(path, err)
	}
	return fp, nil
}

// hashError wraps a read failure as a per-file I/O error.
// Permission errors stay visible to errors.Is so they classify as fatal.
func hashError(path string, err error) error {
	return &domain.FileError{Path: path, Op: "hash", Err: fmt.Errorf("%w: %w", domain.ErrIO, err)}
}

// checkFingerprint rejects digests that are not well-formed.
func checkFingerprint(path, fp string) error {
	if !domain.ValidFingerprint(fp) {
		return &domain.FileError{Path: path, Op: "hash", Err: fmt.Errorf("%w: %q", domain.ErrInvalidFingerprint, fp)}
	}
	return nil
}
