package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Normalize lowercases query and trims surrounding whitespace. Interior
// whitespace is significant.
func Normalize(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}

// Key derives the cache key for query: a hex digest of its normalized
// form, so equivalent spellings share one entry.
func Key(query string) string {
	sum := sha256.Sum256([]byte(Normalize(query)))
	return hex.EncodeToString(sum[:])
}
