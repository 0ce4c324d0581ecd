//go:build cgo
// +build cgo

// Package embedding provides ONNX-based embedding (requires CGO and onnxruntime library).
package embedding

import (
	"context"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// ONNXEmbedder runs a local BERT-style sentence-embedding model (e.g.
// bge-small-zh) through ONNX Runtime. Inference is serialized over one
// pre-allocated tensor set; the query cache absorbs the repeat traffic the
// online path generates, so the single-session bottleneck only matters
// during bulk reindex, which is offline anyway.
type ONNXEmbedder struct {
	session    *ort.AdvancedSession
	tensors    *sessionTensors
	dimensions int
	maxTokens  int
	modelID    string
	cache      *VectorCache
	tokenizer  Tokenizer
	mu         sync.Mutex
}

// sessionTensors owns the pre-allocated input/output tensors a session runs
// against. Grouping them gives construction one cleanup path instead of a
// destroy chain per allocation failure.
type sessionTensors struct {
	inputIDs      *ort.Tensor[int64]
	attentionMask *ort.Tensor[int64]
	tokenTypeIDs  *ort.Tensor[int64]
	output        *ort.Tensor[float32]
}

func newSessionTensors(maxTokens, dimensions int) (*sessionTensors, error) {
	st := &sessionTensors{}
	seqShape := ort.NewShape(1, int64(maxTokens))

	var err error
	if st.inputIDs, err = ort.NewTensor(seqShape, make([]int64, maxTokens)); err == nil {
		if st.attentionMask, err = ort.NewTensor(seqShape, make([]int64, maxTokens)); err == nil {
			if st.tokenTypeIDs, err = ort.NewTensor(seqShape, make([]int64, maxTokens)); err == nil {
				st.output, err = ort.NewTensor(ort.NewShape(1, int64(dimensions)), make([]float32, dimensions))
			}
		}
	}
	if err != nil {
		st.destroy()
		return nil, err
	}
	return st, nil
}

func (st *sessionTensors) destroy() {
	for _, t := range []ort.ArbitraryTensor{st.inputIDs, st.attentionMask, st.tokenTypeIDs, st.output} {
		if t != nil {
			_ = t.Destroy()
		}
	}
	st.inputIDs, st.attentionMask, st.tokenTypeIDs, st.output = nil, nil, nil, nil
}

// NewONNXEmbedder creates an ONNX embedder. InitializeEnvironment is called if not already done.
func NewONNXEmbedder(modelPath string, modelID string, dimensions, maxTokens, cacheSize int) (*ONNXEmbedder, error) {
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX runtime: %w", err)
	}

	tensors, err := newSessionTensors(maxTokens, dimensions)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate tensors: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		modelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{"output"},
		[]ort.ArbitraryTensor{tensors.inputIDs, tensors.attentionMask, tensors.tokenTypeIDs},
		[]ort.ArbitraryTensor{tensors.output},
		nil,
	)
	if err != nil {
		tensors.destroy()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &ONNXEmbedder{
		session:    session,
		tensors:    tensors,
		dimensions: dimensions,
		maxTokens:  maxTokens,
		modelID:    modelID,
		cache:      NewVectorCache(cacheSize),
		tokenizer:  &SimpleTokenizer{},
	}, nil
}

// Embed returns the L2-normalized embedding for text, serving repeats from
// the query cache.
func (e *ONNXEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if cached, ok := e.cache.Lookup(text); ok {
		return cached, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	inputIDs, attentionMask, tokenTypeIDs := e.tokenizer.Tokenize(text, e.maxTokens)
	copy(e.tensors.inputIDs.GetData(), inputIDs)
	copy(e.tensors.attentionMask.GetData(), attentionMask)
	copy(e.tensors.tokenTypeIDs.GetData(), tokenTypeIDs)

	if err := e.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	vector := make([]float32, e.dimensions)
	copy(vector, e.tensors.output.GetData()[:e.dimensions])

	NormalizeL2Slice(vector)
	e.cache.Store(text, vector)
	return vector, nil
}

// EmbedBatch embeds texts sequentially, checking ctx between items so a
// cancelled reindex stops between chunks instead of grinding through the
// whole document.
func (e *ONNXEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed item %d: %w", i, err)
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}

// Dimensions returns the embedding dimension.
func (e *ONNXEmbedder) Dimensions() int {
	return e.dimensions
}

// ModelID identifies the loaded model, as configured at construction.
func (e *ONNXEmbedder) ModelID() string {
	return e.modelID
}

// Close destroys the session and tensors.
func (e *ONNXEmbedder) Close() error {
	var err error
	if e.session != nil {
		err = e.session.Destroy()
		e.session = nil
	}
	if e.tensors != nil {
		e.tensors.destroy()
		e.tensors = nil
	}
	return err
}
