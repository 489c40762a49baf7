package util

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint returns a short stable digest of a secret, safe to store and
// compare without retaining the secret itself.
func Fingerprint(s string) string {
	if s == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:8])
}
