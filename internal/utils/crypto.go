// internal/utils/crypto.go
package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"
	"strings"
)

// HashString returns the hex sha256 of s.
func HashString(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// HashingReader computes the sha256 of everything read through it.
type HashingReader struct {
	r      io.Reader
	hasher hash.Hash
	n      int64
}

func NewHashingReader(r io.Reader) *HashingReader {
	return &HashingReader{r: r, hasher: sha256.New()}
}

func (h *HashingReader) Read(p []byte) (int, error) {
	n, err := h.r.Read(p)
	if n > 0 {
		h.hasher.Write(p[:n])
		h.n += int64(n)
	}
	return n, err
}

func (h *HashingReader) Sum() string {
	return hex.EncodeToString(h.hasher.Sum(nil))
}

func (h *HashingReader) BytesRead() int64 {
	return h.n
}

// ChecksumMatches compares two hex digests. An empty digest never matches.
func ChecksumMatches(expected, actual string) bool {
	expected, actual = strings.TrimSpace(expected), strings.TrimSpace(actual)
	return expected != "" && strings.EqualFold(expected, actual)
}
