package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/clausevault/clausevault/internal/clauseerr"
)

// MemoryStore is an in-memory brute-force cosine-similarity VectorStore.
// Each point carries its own metadata map so filters apply without a
// caller-side ID-to-metadata join. It is the default backend for tests and
// small corpora.
type MemoryStore struct {
	dimensions int
	mu         sync.RWMutex
	ids        []string
	vectors    map[string][]float32
	metadata   map[string]map[string]string
}

// NewMemoryStore creates an in-memory vector store with the given
// dimension. It is the default backend and the one used in tests.
func NewMemoryStore(dimensions int) (*MemoryStore, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	return &MemoryStore{
		dimensions: dimensions,
		vectors:    make(map[string][]float32),
		metadata:   make(map[string]map[string]string),
	}, nil
}

func (m *MemoryStore) Dimensions() int { return m.dimensions }

func (m *MemoryStore) Upsert(_ context.Context, id string, vector []float32, metadata map[string]string) error {
	if len(vector) != m.dimensions {
		return clauseerr.New(clauseerr.IndexMismatch, "vectorstore.MemoryStore.Upsert",
			fmt.Errorf("vector dimension %d does not match index dimension %d", len(vector), m.dimensions))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.vectors[id]; !exists {
		m.ids = append(m.ids, id)
	}
	vec := make([]float32, m.dimensions)
	copy(vec, vector)
	m.vectors[id] = vec
	md := make(map[string]string, len(metadata))
	for k, v := range metadata {
		md[k] = v
	}
	m.metadata[id] = md
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.vectors[id]; !exists {
		return nil
	}
	delete(m.vectors, id)
	delete(m.metadata, id)
	for i, existing := range m.ids {
		if existing == id {
			m.ids = append(m.ids[:i], m.ids[i+1:]...)
			break
		}
	}
	return nil
}

func (m *MemoryStore) Search(_ context.Context, vector []float32, k int, filter Filter) ([]Result, error) {
	if len(vector) != m.dimensions {
		return nil, clauseerr.New(clauseerr.IndexMismatch, "vectorstore.MemoryStore.Search",
			fmt.Errorf("query dimension %d does not match index dimension %d", len(vector), m.dimensions))
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if k <= 0 || len(m.ids) == 0 {
		return nil, nil
	}

	type scored struct {
		id    string
		score float64
	}
	var scores []scored
	for _, id := range m.ids {
		if !matchesFilter(m.metadata[id], filter) {
			continue
		}
		scores = append(scores, scored{id: id, score: cosineSimilarity(vector, m.vectors[id])})
	}
	sort.Slice(scores, func(i, j int) bool { return scores[i].score > scores[j].score })
	if k > len(scores) {
		k = len(scores)
	}
	out := make([]Result, k)
	for i := 0; i < k; i++ {
		out[i] = Result{ID: scores[i].id, Score: scores[i].score}
	}
	return out, nil
}

func (m *MemoryStore) IDs(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.ids))
	copy(out, m.ids)
	return out, nil
}

func (m *MemoryStore) Stats(_ context.Context) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Stats{Count: len(m.ids), Dimensions: m.dimensions, Distance: "cosine"}, nil
}

func (m *MemoryStore) Close() error { return nil }

func matchesFilter(metadata map[string]string, filter Filter) bool {
	for k, v := range filter {
		if v == "" {
			continue
		}
		if metadata[k] != v {
			return false
		}
	}
	return true
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i] * b[i])
	}
	return math.Max(0, math.Min(1, dot))
}
