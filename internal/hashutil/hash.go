// Package hashutil computes the content hashes used to skip unchanged files.
package hashutil

import (
	"crypto/sha256"
	"fmt"
)

// Content returns the hex SHA-256 of a file's content. Files whose
// stored hash matches are skipped on reindex.
func Content(content []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(content))
}

// Analysis mixes the identifier kind into the content hash so a config
// change invalidates previously stored results.
func Analysis(content []byte, identifierKind string) string {
	h := sha256.New()
	fmt.Fprintf(h, "kind:%s\n", identifierKind)
	h.Write(content)
	return fmt.Sprintf("%x", h.Sum(nil))
}
