package util

import (
	"crypto/rand"
	"encoding/hex"
)

// NewToken returns an opaque bearer token for public review links.
// 32 random bytes keeps the token unguessable; it is stored as-is and
// compared by equality, never derived from anything.
func NewToken() string {
	bytes := make([]byte, 32)
	_, _ = rand.Read(bytes)
	return hex.EncodeToString(bytes)
}
