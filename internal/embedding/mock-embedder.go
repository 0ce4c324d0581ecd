package embedding

import (
	"context"
	"fmt"
	"unicode"
)

// MockEmbedder is a deterministic, model-free embedder: each text maps to
// an L2-normalized bag of hashed character bigrams (plus whole Latin
// tokens). Unlike a pure text-hash vector, texts sharing vocabulary land
// near each other in cosine space, so hybrid-retrieval tests and the
// no-ONNX fallback mode exhibit retrieval behavior that resembles a real
// sentence model instead of returning noise.
type MockEmbedder struct {
	dimensions int
	modelID    string
}

// NewMockEmbedder returns an embedder producing deterministic embeddings of
// the given dimensions.
func NewMockEmbedder(dimensions int) *MockEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &MockEmbedder{dimensions: dimensions, modelID: fmt.Sprintf("mock-bigram-%d", dimensions)}
}

// ModelID identifies this mock embedder and its dimension.
func (e *MockEmbedder) ModelID() string {
	return e.modelID
}

// Embed returns the normalized bigram-bag embedding for text. Pure: the
// same text always yields the same vector.
func (e *MockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vector := make([]float32, e.dimensions)
	for _, feature := range bigramFeatures(text) {
		vector[HashString(feature)%e.dimensions]++
	}
	NormalizeL2Slice(vector)
	return vector, nil
}

// bigramFeatures yields overlapping two-rune features from Han runs and
// whole tokens for everything else Segment produces, mirroring how the
// sparse side tokenizes Chinese clause text.
func bigramFeatures(text string) []string {
	var features []string
	var hanRun []rune
	flushHan := func() {
		if len(hanRun) == 1 {
			features = append(features, string(hanRun))
		}
		for i := 0; i+1 < len(hanRun); i++ {
			features = append(features, string(hanRun[i:i+2]))
		}
		hanRun = hanRun[:0]
	}
	for _, tok := range Segment(text) {
		runes := []rune(tok)
		if len(runes) == 1 && unicode.Is(unicode.Han, runes[0]) {
			hanRun = append(hanRun, runes[0])
			continue
		}
		flushHan()
		features = append(features, tok)
	}
	flushHan()
	return features
}

// EmbedBatch calls Embed for each text.
func (e *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}

// Dimensions returns the embedding dimension.
func (e *MockEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op for MockEmbedder.
func (e *MockEmbedder) Close() error {
	return nil
}
