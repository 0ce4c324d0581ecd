// Package sparseindex provides the sparse/BM25 side of hybrid retrieval:
// a SparseIndex interface with a Bleve-backed implementation.
package sparseindex

import "context"

// Result is one sparse-search hit.
type Result struct {
	ID    string
	Score float64 // Bleve's native BM25-derived relevance score
}

// SparseIndex is the keyword-matching contract every chunk's content is
// indexed into. Writes happen only during reindex; Bleve indexes
// themselves are safe for concurrent readers during a write.
type SparseIndex interface {
	// Index writes or replaces the indexed document for id.
	Index(ctx context.Context, id string, doc Document) error
	// Delete removes id if present.
	Delete(ctx context.Context, id string) error
	// Search runs a BM25 match query over title+content and returns up to
	// limit hits ordered by descending relevance.
	Search(ctx context.Context, query string, limit int) ([]Result, error)
	// DocCount returns the number of indexed documents.
	DocCount() (uint64, error)
	// IDs returns every document ID currently indexed, used to check the
	// dense/sparse id-set invariant after a reindex.
	IDs(ctx context.Context) ([]string, error)
	// Close releases backend resources.
	Close() error
}

// Document is the indexable projection of a PolicyChunk: section_title
// carries the title-boosted field, content the body.
type Document struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}
