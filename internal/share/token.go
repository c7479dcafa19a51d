package share

import (
	"crypto/rand"
	"encoding/base64"
)

// NewToken returns a random URL-safe share token.
func NewToken() string {
	buf := make([]byte, 12)
	_, _ = rand.Read(buf)
	return base64.RawURLEncoding.EncodeToString(buf)
}
