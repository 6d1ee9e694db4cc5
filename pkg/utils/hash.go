package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// HashString returns a short, stable hex digest of input.
func HashString(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:12])
}

// StableID derives a deterministic id from its parts, so re-ingesting the same
// item yields the same key.
func StableID(prefix string, parts ...string) string {
	return prefix + "_" + HashString(strings.Join(parts, "\x1f"))
}

// NormalizeQuery lower-cases and collapses whitespace; used for cache keys.
func NormalizeQuery(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}
