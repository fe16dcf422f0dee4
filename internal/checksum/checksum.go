package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// String is Sum for text content.
func String(s string) string {
	return Sum([]byte(s))
}

// ETag formats a checksum as a strong HTTP entity tag.
func ETag(sum string) string {
	return `"` + sum + `"`
}

// FromIfMatch strips the quotes a client may send back in If-Match.
func FromIfMatch(header string) string {
	return strings.Trim(strings.TrimSpace(header), `"`)
}
