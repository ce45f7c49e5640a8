package store

import (
	"crypto/sha256"
	"fmt"
)

// ContentHash computes the hash recorded for a scanned source file.
// Unchanged content hashes the same regardless of path or mtime.
func ContentHash(content []byte) string {
	h := sha256.Sum256(content)
	return fmt.Sprintf("%x", h[:])
}
