// Package embedding provides text embedding via ONNX and caching.
package embedding

import "context"

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	// ModelID identifies the embedding model and dimension in force, so a
	// stored index built by a different model/dimension can be detected
	// and refused (the IndexMismatch error kind) rather than silently
	// compared against incompatible vectors.
	ModelID() string
	Close() error
}
