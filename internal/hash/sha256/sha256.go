// Package sha256 derives short, stable digests used to name cache artifacts.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// DefaultDigestBytes is how many leading digest bytes Short keeps.
const DefaultDigestBytes = 8

// Hasher produces truncated hex-encoded SHA-256 digests.
type Hasher struct {
	size int
}

// New returns a hasher whose Short digests keep size bytes. Sizes outside
// 1..32 fall back to DefaultDigestBytes.
func New(size int) *Hasher {
	if size <= 0 || size > sha256.Size {
		size = DefaultDigestBytes
	}
	return &Hasher{size: size}
}

// Short returns the hex encoding of the first bytes of the digest of s.
func (h *Hasher) Short(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:h.size])
}
