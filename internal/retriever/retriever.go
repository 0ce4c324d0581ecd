// Package retriever implements the hybrid dense+sparse retriever:
// query-adaptive routing weights, Reciprocal Rank Fusion, filters, and the
// similarity-threshold guard that returns nothing rather than something
// wrong.
package retriever

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/clausevault/clausevault/internal/clauseerr"
	"github.com/clausevault/clausevault/internal/embedding"
	"github.com/clausevault/clausevault/internal/models"
	"github.com/clausevault/clausevault/internal/sparseindex"
	"github.com/clausevault/clausevault/internal/vectorstore"
)

// ChunkStore resolves a chunk ID to its full record, for hydrating search
// hits (which carry only IDs and scores) into RetrievedChunk.
type ChunkStore interface {
	GetChunk(ctx context.Context, id string) (*models.PolicyChunk, error)
}

// Config tunes fusion: the RRF constant (K=60 by default) and the three
// query-routing weight pairs.
type Config struct {
	RRFConstantK                  int
	NumericSparse, NumericDense   float64
	QuestionSparse, QuestionDense float64
	DefaultSparse, DefaultDense   float64
}

// DefaultConfig returns the default routing weights and K=60.
func DefaultConfig() Config {
	return Config{
		RRFConstantK:   60,
		NumericSparse:  0.8, NumericDense: 0.2,
		QuestionSparse: 0.2, QuestionDense: 0.8,
		DefaultSparse:  0.4, DefaultDense: 0.6,
	}
}

// Retriever fuses dense (vectorstore) and sparse (sparseindex) search.
type Retriever struct {
	dense    vectorstore.VectorStore
	sparse   sparseindex.SparseIndex
	embedder embedding.Embedder
	chunks   ChunkStore
	cfg      Config
	logger   *zap.Logger
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithLogger attaches a zap logger; nil-safe if never set.
func WithLogger(l *zap.Logger) Option {
	return func(r *Retriever) { r.logger = l }
}

// New builds a Retriever from its index dependencies and cfg (use
// DefaultConfig() for the defaults).
func New(dense vectorstore.VectorStore, sparse sparseindex.SparseIndex, embedder embedding.Embedder, chunks ChunkStore, cfg Config, opts ...Option) *Retriever {
	r := &Retriever{dense: dense, sparse: sparse, embedder: embedder, chunks: chunks, cfg: cfg}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var (
	dottedSectionPattern = regexp.MustCompile(`\d+\.\d+(\.\d+)?`)
	digitTokenPattern    = regexp.MustCompile(`\d+`)
)

var questionMarkers = []string{"如何", "怎么", "什么", "为什么", "哪", "多少", "吗", "呢", "?", "？"}

// routeWeights picks the (sparse, dense) weight pair for query:
// numeric/section-id queries favor sparse, question-like queries favor
// dense, otherwise a balanced default.
func (r *Retriever) routeWeights(query string) (sparseWeight, denseWeight float64) {
	if dottedSectionPattern.MatchString(query) || len(digitTokenPattern.FindAllString(query, -1)) >= 2 {
		return r.cfg.NumericSparse, r.cfg.NumericDense
	}
	for _, marker := range questionMarkers {
		if strings.Contains(query, marker) {
			return r.cfg.QuestionSparse, r.cfg.QuestionDense
		}
	}
	return r.cfg.DefaultSparse, r.cfg.DefaultDense
}

func isQuestionLike(query string) bool {
	for _, marker := range questionMarkers {
		if strings.Contains(query, marker) {
			return true
		}
	}
	return false
}

// Retrieve runs the hybrid dense+sparse search for q and returns the fused,
// ranked result. A dense- or sparse-side failure degrades to the surviving
// side rather than failing the call; both sides failing is an error.
func (r *Retriever) Retrieve(ctx context.Context, q models.RetrieveQuery) (*models.RetrieveResult, error) {
	if err := q.Validate(); err != nil {
		return nil, clauseerr.New(clauseerr.InvalidInput, "retriever.Retrieve", err)
	}

	sparseWeight, denseWeight := r.routeWeights(q.Query)
	candidateK := q.TopK * 2
	if candidateK < 20 {
		candidateK = 20
	}

	minSimilarity := q.MinSimilarity
	if minSimilarity <= 0 {
		minSimilarity = 0.7
	}

	var (
		denseHits  []vectorstore.Result
		sparseHits []sparseindex.Result
		denseErr   error
		sparseErr  error
		wg         sync.WaitGroup
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		vec, err := r.embedder.Embed(ctx, q.Query)
		if err != nil {
			denseErr = fmt.Errorf("embed query: %w", err)
			return
		}
		denseHits, denseErr = r.dense.Search(ctx, vec, candidateK, denseFilter(q.Filters))
	}()
	go func() {
		defer wg.Done()
		sparseHits, sparseErr = r.sparse.Search(ctx, q.Query, candidateK)
	}()
	wg.Wait()

	result := &models.RetrieveResult{}
	if denseErr != nil {
		result.DenseFailed = true
		if r.logger != nil {
			r.logger.Warn("retriever: dense search failed, degrading to sparse-only", zap.Error(denseErr))
		}
	}
	if sparseErr != nil {
		result.SparseFailed = true
		if r.logger != nil {
			r.logger.Warn("retriever: sparse search failed, degrading to dense-only", zap.Error(sparseErr))
		}
	}
	if denseErr != nil && sparseErr != nil {
		kind := clauseerr.InternalError
		if ctx.Err() != nil {
			kind = clauseerr.Timeout
		}
		return nil, clauseerr.New(kind, "retriever.Retrieve",
			fmt.Errorf("both sides failed: dense=%v sparse=%v", denseErr, sparseErr))
	}

	denseHits = filterByMinSimilarity(denseHits, minSimilarity)
	if len(denseHits) == 0 && isQuestionLike(q.Query) && !result.DenseFailed {
		// All dense results fell below threshold on a question-like query:
		// return empty rather than risk a hallucinated citation.
		return result, nil
	}

	fused := fuse(denseHits, sparseHits, sparseWeight, denseWeight, r.cfg.RRFConstantK)

	chunks := make([]*models.RetrievedChunk, 0, len(fused))
	for _, f := range fused {
		chunk, err := r.chunks.GetChunk(ctx, f.id)
		if err != nil {
			continue
		}
		if !q.Filters.Match(chunk) {
			continue
		}
		chunks = append(chunks, &models.RetrievedChunk{
			Chunk:      chunk,
			FusedScore: f.score,
			DenseScore: f.denseScore,
			InDense:    f.inDense,
			InSparse:   f.inSparse,
		})
	}

	// Final ordering with the chunk_index tiebreak, which needs hydrated
	// chunks and so cannot happen inside fuse.
	sort.SliceStable(chunks, func(i, j int) bool {
		if chunks[i].FusedScore != chunks[j].FusedScore {
			return chunks[i].FusedScore > chunks[j].FusedScore
		}
		if chunks[i].DenseScore != chunks[j].DenseScore {
			return chunks[i].DenseScore > chunks[j].DenseScore
		}
		return chunks[i].Chunk.ChunkIndex < chunks[j].Chunk.ChunkIndex
	})
	if len(chunks) > q.TopK {
		chunks = chunks[:q.TopK]
	}

	result.Chunks = chunks
	return result, nil
}

func denseFilter(f models.Filters) vectorstore.Filter {
	filter := vectorstore.Filter{}
	if f.Company != "" {
		filter["company"] = f.Company
	}
	if f.ProductCode != "" {
		filter["product_code"] = f.ProductCode
	}
	if f.ProductName != "" {
		filter["product_name"] = f.ProductName
	}
	if f.DocType != "" {
		filter["doc_type"] = f.DocType
	}
	if f.Category != "" {
		filter["category"] = f.Category
	}
	if len(filter) == 0 {
		return nil
	}
	return filter
}

func filterByMinSimilarity(hits []vectorstore.Result, min float64) []vectorstore.Result {
	out := hits[:0]
	for _, h := range hits {
		if h.Score >= min {
			out = append(out, h)
		}
	}
	return out
}

type fusedCandidate struct {
	id         string
	score      float64
	denseScore float64
	inDense    bool
	inSparse   bool
}

// fuse applies Reciprocal Rank Fusion: score(d) = sum_i w_i/(K+rank_i),
// ranks are 1-based within each side's candidate list. Output is ordered
// by score, ties broken by higher dense similarity; the chunk_index
// tiebreak is Retrieve's job, after hydration.
func fuse(dense []vectorstore.Result, sparse []sparseindex.Result, sparseWeight, denseWeight float64, k int) []fusedCandidate {
	scores := make(map[string]*fusedCandidate)
	order := make([]string, 0, len(dense)+len(sparse))

	get := func(id string) *fusedCandidate {
		c, ok := scores[id]
		if !ok {
			c = &fusedCandidate{id: id}
			scores[id] = c
			order = append(order, id)
		}
		return c
	}

	for i, d := range dense {
		c := get(d.ID)
		c.inDense = true
		c.denseScore = d.Score
		c.score += denseWeight / float64(k+i+1)
	}
	for i, s := range sparse {
		c := get(s.ID)
		c.inSparse = true
		c.score += sparseWeight / float64(k+i+1)
	}

	out := make([]fusedCandidate, len(order))
	for i, id := range order {
		out[i] = *scores[id]
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		return out[i].denseScore > out[j].denseScore
	})
	return out
}
