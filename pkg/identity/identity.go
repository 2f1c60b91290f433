// Package identity derives the primary key used for a comic everywhere it is
// referenced: catalog rows, thumbnail filenames and progress records.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
)

// Length is the number of hex characters in an identity.
const Length = sha256.Size * 2

// Of returns the hex SHA-256 of the cleaned path. Moving or renaming a file
// changes its identity.
func Of(path string) string {
	sum := sha256.Sum256([]byte(filepath.Clean(path)))
	return hex.EncodeToString(sum[:])
}

// Valid reports whether s looks like an identity produced by Of.
func Valid(s string) bool {
	if len(s) != Length {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
