// Package vectorstore provides the dense index side of hybrid retrieval:
// a VectorStore interface with an in-memory brute-force backend (the
// default for tests and small corpora) and a persistent Qdrant-backed
// implementation.
package vectorstore

import "context"

// Result is one nearest-neighbor hit.
type Result struct {
	ID    string
	Score float64 // cosine similarity in [0,1] for normalized vectors
}

// Filter narrows a search to points whose metadata matches every non-empty
// field, applied by backends that support server-side filtering (Qdrant) or
// emulated by a post-filter (memory).
type Filter map[string]string

// Stats describes a store: point count, vector width, and the distance
// metric in force (always cosine for this system).
type Stats struct {
	Count      int
	Dimensions int
	Distance   string
}

// VectorStore is the dense index contract every chunk's embedding is
// written to and queried against. Writes happen only during reindex;
// reads are safe for concurrent use with in-flight writes on backends that
// document so (the memory backend serializes internally; Qdrant's own
// consistency model applies server-side).
type VectorStore interface {
	// Upsert writes or replaces the vector and metadata for id.
	Upsert(ctx context.Context, id string, vector []float32, metadata map[string]string) error
	// Delete removes id if present; a no-op if absent.
	Delete(ctx context.Context, id string) error
	// Search returns the top-k nearest neighbors to vector, optionally
	// narrowed by filter.
	Search(ctx context.Context, vector []float32, k int, filter Filter) ([]Result, error)
	// IDs returns every point ID currently stored, used to check the
	// dense/sparse id-set invariant after a reindex.
	IDs(ctx context.Context) ([]string, error)
	// Dimensions returns the configured vector width.
	Dimensions() int
	// Stats reports the point count, dimension, and distance metric.
	Stats(ctx context.Context) (Stats, error)
	// Close releases backend resources.
	Close() error
}
