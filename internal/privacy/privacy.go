// Package privacy hashes platform user identifiers before they reach logs or
// storage. Raw QQ numbers never leave the webhook handler.
package privacy

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashUserID returns the lowercase hex SHA-256 digest of a raw platform ID.
func HashUserID(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// ValidHash reports whether s looks like a HashUserID output: exactly 64
// lowercase hex characters.
func ValidHash(s string) bool {
	if len(s) != 64 {
		return false
	}
	for _, r := range s {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}

// Abbrev shortens a hash for log output.
func Abbrev(hash string) string {
	if len(hash) <= 8 {
		return hash
	}
	return hash[:8] + "..."
}
