package models

// Filters narrows a retrieval query. All fields are optional; an empty
// string means "no constraint on this field".
type Filters struct {
	Company     string `json:"company,omitempty"`
	ProductCode string `json:"product_code,omitempty"`
	ProductName string `json:"product_name,omitempty"`
	DocType     string `json:"doc_type,omitempty"`
	Category    string `json:"category,omitempty"`
}

// Match reports whether a chunk satisfies every non-empty filter field.
func (f Filters) Match(c *PolicyChunk) bool {
	if f.Company != "" && f.Company != c.Company {
		return false
	}
	if f.ProductCode != "" && f.ProductCode != c.ProductCode {
		return false
	}
	if f.ProductName != "" && f.ProductName != c.ProductName {
		return false
	}
	if f.DocType != "" && f.DocType != c.DocType {
		return false
	}
	if f.Category != "" && f.Category != string(c.Category) {
		return false
	}
	return true
}

// RetrieveQuery is the input to the hybrid retriever.
type RetrieveQuery struct {
	Query         string  `json:"query"`
	Filters       Filters `json:"filters"`
	TopK          int     `json:"top_k"`
	MinSimilarity float64 `json:"min_similarity"`
}

// Validate applies the retrieve query defaults and rejects malformed input.
func (q *RetrieveQuery) Validate() error {
	if q.Query == "" {
		return errInvalidChunk("query must not be empty")
	}
	if q.TopK <= 0 {
		q.TopK = 5
	}
	if q.TopK > 100 {
		q.TopK = 100
	}
	return nil
}

// RetrievedChunk pairs a PolicyChunk with its fused retrieval score and the
// per-side signals that produced it.
type RetrievedChunk struct {
	Chunk      *PolicyChunk
	FusedScore float64
	DenseScore float64 // cosine similarity, 0 if the chunk was sparse-only
	InDense    bool
	InSparse   bool
}

// RetrieveResult is the hybrid retriever's output for one query.
type RetrieveResult struct {
	Chunks       []*RetrievedChunk
	DenseFailed  bool
	SparseFailed bool
}
