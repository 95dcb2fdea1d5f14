package domain

// FingerprintLength is the length of a hex-encoded SHA-256 digest.
const FingerprintLength = 64

// ValidFingerprint reports whether s is a lowercase hex digest of the expected length.
func ValidFingerprint(s string) bool {
	if len(s) != FingerprintLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
