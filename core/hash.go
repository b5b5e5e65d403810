package core

import (
	"encoding/hex"

	"github.com/go-crypt/x/blake2b"
)

// ContentHash returns a deterministic hash of text using BLAKE2b.
// Identical text always produces an identical hash, which lets the indexer
// skip re-embedding when the searchable text has not changed.
func ContentHash(text string) string {
	h, _ := blake2b.New(16, nil)
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

// HashKey hashes a natural key into a short fixed-length token safe for use
// as a cache key, regardless of the length or content of its parts.
func HashKey(parts ...string) string {
	h, _ := blake2b.New(16, nil)
	for _, part := range parts {
		h.Write([]byte(part))
		h.Write([]byte{0}) // separator so ("ab","c") != ("a","bc")
	}
	return hex.EncodeToString(h.Sum(nil))
}
