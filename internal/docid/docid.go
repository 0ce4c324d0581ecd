// Package docid derives deterministic PolicyDocument IDs from PDF paths,
// so re-registering the same file in the intake tree always resolves to the
// same document record.
package docid

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
)

const prefix = "doc:"

// FromPath returns a stable document ID for the given absolute PDF path.
// Same path always yields the same ID, which makes reindex-by-path a
// delete-and-replace of the same document rather than a duplicate.
func FromPath(absolutePath string) string {
	normalized := filepath.Clean(absolutePath)
	hash := sha256.Sum256([]byte(normalized))
	return prefix + hex.EncodeToString(hash[:])
}
