// Package sha256 digests program content so downstream consumers can detect real changes.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
)

// Hasher produces hex SHA-256 digests.
type Hasher struct{}

// New returns a SHA-256 hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash returns the hex digest of data.
func (h *Hasher) Hash(data []byte) (string, error) {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// HashParts digests each part followed by a NUL byte, so ("ab", "c") and ("a", "bc") differ.
func (h *Hasher) HashParts(parts ...string) (string, error) {
	d := sha256.New()
	for i, part := range parts {
		if _, err := io.WriteString(d, part); err != nil {
			return "", fmt.Errorf("hash part %d: %w", i, err)
		}
		if _, err := d.Write([]byte{0}); err != nil {
			return "", fmt.Errorf("hash part %d: %w", i, err)
		}
	}
	return hex.EncodeToString(d.Sum(nil)), nil
}
