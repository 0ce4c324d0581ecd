// Package ingest orchestrates the offline pipeline: verified PDF → parse →
// chunk → enrich → embed → catalog + dense index + sparse index.
package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/clausevault/clausevault/internal/catalog"
	"github.com/clausevault/clausevault/internal/chunk"
	"github.com/clausevault/clausevault/internal/clauseerr"
	"github.com/clausevault/clausevault/internal/embedding"
	"github.com/clausevault/clausevault/internal/enrich"
	"github.com/clausevault/clausevault/internal/models"
	"github.com/clausevault/clausevault/internal/parse"
	"github.com/clausevault/clausevault/internal/ratetable"
	"github.com/clausevault/clausevault/internal/sparseindex"
	"github.com/clausevault/clausevault/internal/vectorstore"
)

// Pipeline wires the offline ingestion stages together.
type Pipeline struct {
	catalog         *catalog.Catalog
	embedder        embedding.Embedder
	dense           vectorstore.VectorStore
	sparse          sparseindex.SparseIndex
	chunker         *chunk.Chunker
	sidecars        *ratetable.Store
	exportDir       string
	processedDir    string
	tableSeparation bool
	logger          *zap.Logger

	// parseFn defaults to parse.ParseToMarkdown; replaced in tests to feed
	// pre-rendered Markdown through the rest of the pipeline.
	parseFn func(pdfPath string, opts parse.Options) (string, []*models.RateTable, error)
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a logger for debug output (document ingested, document
// deleted, per-document failures during batch rebuild).
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithTableSeparation toggles rate-table sidecar extraction
// (ENABLE_TABLE_SEPARATION; default on).
func WithTableSeparation(enabled bool) Option {
	return func(p *Pipeline) { p.tableSeparation = enabled }
}

// New creates a Pipeline. exportDir is the rate-table sidecar directory;
// processedDir receives the generated Markdown per document.
func New(
	cat *catalog.Catalog,
	embedder embedding.Embedder,
	dense vectorstore.VectorStore,
	sparse sparseindex.SparseIndex,
	chunker *chunk.Chunker,
	exportDir, processedDir string,
	opts ...Option,
) *Pipeline {
	p := &Pipeline{
		catalog:         cat,
		embedder:        embedder,
		dense:           dense,
		sparse:          sparse,
		chunker:         chunker,
		sidecars:        ratetable.NewStore(exportDir),
		exportDir:       exportDir,
		processedDir:    processedDir,
		tableSeparation: true,
		parseFn:         parse.ParseToMarkdown,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// IngestDocument runs the full pipeline for one document. The document must
// be VERIFIED; anything else is refused so the indices never contain chunks
// from PENDING or REJECTED documents. A parse failure is recorded on the
// document's reviewer_notes and surfaced as clauseerr.ParseFailure; nothing
// partial is committed.
func (p *Pipeline) IngestDocument(ctx context.Context, documentID string) error {
	doc, err := p.catalog.GetDocument(ctx, documentID)
	if err != nil {
		return err
	}
	if doc.VerificationStatus != models.StatusVerified {
		return clauseerr.New(clauseerr.InvalidInput, "ingest.IngestDocument",
			fmt.Errorf("document %s is %s, only VERIFIED documents may be indexed", documentID, doc.VerificationStatus))
	}
	product, err := p.catalog.GetProduct(ctx, doc.ProductID)
	if err != nil {
		return err
	}

	markdown, tables, err := p.parseFn(doc.LocalPath, parse.Options{
		ExportDir:              p.exportDir,
		TableSeparationEnabled: p.tableSeparation,
		SourceDocumentID:       doc.ID,
		ProductCode:            product.ProductCode,
	})
	if err != nil {
		if noteErr := p.catalog.RecordParseFailure(ctx, doc.ID, err); noteErr != nil && p.logger != nil {
			p.logger.Warn("ingest: failed to record parse failure", zap.Error(noteErr))
		}
		return err
	}

	if p.processedDir != "" {
		if err := writeProcessedMarkdown(p.processedDir, doc.ID, markdown); err != nil {
			return fmt.Errorf("write processed markdown: %w", err)
		}
	}
	for _, rt := range tables {
		if err := p.catalog.SaveRateTable(ctx, rt); err != nil {
			return fmt.Errorf("save rate table %s: %w", rt.UUID, err)
		}
	}

	chunks, err := p.chunker.Chunk(markdown, chunk.Context{
		DocumentID:  doc.ID,
		Company:     product.Company,
		ProductCode: product.ProductCode,
		ProductName: product.Name,
		DocType:     doc.DocType,
	})
	if err != nil {
		return fmt.Errorf("chunk document %s: %w", doc.ID, err)
	}
	for _, ch := range chunks {
		enrich.Enrich(ch)
	}

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Content
	}
	embeddings, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}
	for i := range chunks {
		chunks[i].Embedding = embeddings[i]
	}

	if err := p.catalog.ReplaceChunks(ctx, doc.ID, chunks); err != nil {
		return fmt.Errorf("store chunks: %w", err)
	}

	// Both indices must end up with the same id set: remove this document's
	// previous entries, then insert the new ones on both sides.
	if err := p.removeFromIndices(ctx, doc.ID); err != nil {
		return err
	}
	for _, ch := range chunks {
		if err := p.dense.Upsert(ctx, ch.ID, ch.Embedding, denseMetadata(ch)); err != nil {
			return fmt.Errorf("index vectors: %w", err)
		}
		if err := p.sparse.Index(ctx, ch.ID, sparseindex.Document{
			ID:      ch.ID,
			Title:   ch.SectionTitle,
			Content: ch.Content,
		}); err != nil {
			return fmt.Errorf("index keywords: %w", err)
		}
	}

	if p.logger != nil {
		p.logger.Debug("ingest: document indexed",
			zap.String("document_id", doc.ID),
			zap.Int("chunks", len(chunks)),
			zap.Int("rate_tables", len(tables)))
	}
	return nil
}

// denseMetadata flattens a chunk's filterable fields into the scalar-only
// metadata the vector store admits. Keywords are comma-joined; list fields
// are reconstructed from the catalog on hydration, not from here.
func denseMetadata(ch *models.PolicyChunk) map[string]string {
	meta := map[string]string{
		"document_id":  ch.DocumentID,
		"company":      ch.Company,
		"product_code": ch.ProductCode,
		"product_name": ch.ProductName,
		"doc_type":     ch.DocType,
		"category":     string(ch.Category),
		"is_table":     fmt.Sprintf("%t", ch.IsTable),
	}
	if ch.SectionID != "" {
		meta["section_id"] = ch.SectionID
	}
	if len(ch.Keywords) > 0 {
		meta["keywords"] = strings.Join(ch.Keywords, ",")
	}
	return meta
}

func writeProcessedMarkdown(dir, documentID, markdown string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	// The id's "doc:" prefix is not filesystem-friendly; colons and slashes
	// become underscores.
	name := filepath.Join(dir, sanitizeID(documentID)+".md")
	return os.WriteFile(name, []byte(markdown), 0o644)
}

func sanitizeID(id string) string {
	out := make([]rune, 0, len(id))
	for _, r := range id {
		if r == ':' || r == '/' {
			r = '_'
		}
		out = append(out, r)
	}
	return string(out)
}

// DeleteDocument removes a document everywhere: both indices, the chunk
// store, its rate-table sidecars, and finally the catalog record.
func (p *Pipeline) DeleteDocument(ctx context.Context, documentID string) error {
	doc, err := p.catalog.GetDocument(ctx, documentID)
	if err != nil {
		return err
	}
	if err := p.removeFromIndices(ctx, documentID); err != nil {
		return err
	}
	if err := p.catalog.DeleteChunksByDocumentID(ctx, documentID); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	if err := p.sidecars.DeleteBySourcePDF(doc.LocalPath); err != nil {
		return fmt.Errorf("delete rate-table sidecars: %w", err)
	}
	if err := p.catalog.DeleteDocument(ctx, documentID); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if p.logger != nil {
		p.logger.Debug("ingest: document deleted", zap.String("document_id", documentID))
	}
	return nil
}

// removeFromIndices drops a document's chunks from both indices, keeping
// the dense/sparse id sets aligned.
func (p *Pipeline) removeFromIndices(ctx context.Context, documentID string) error {
	chunks, err := p.catalog.GetChunksByDocumentID(ctx, documentID)
	if err != nil {
		return fmt.Errorf("list chunks: %w", err)
	}
	for _, ch := range chunks {
		if err := p.dense.Delete(ctx, ch.ID); err != nil {
			return fmt.Errorf("delete from dense index: %w", err)
		}
		if err := p.sparse.Delete(ctx, ch.ID); err != nil {
			return fmt.Errorf("delete from sparse index: %w", err)
		}
	}
	return nil
}

// RebuildAll re-ingests every VERIFIED document. Per-document failures do
// not abort the batch; they are logged and reported in the summary. After
// the batch, the dense/sparse id-set invariant is checked.
func (p *Pipeline) RebuildAll(ctx context.Context) (indexed, failed int, err error) {
	docs, err := p.catalog.ListDocumentsByStatus(ctx, models.StatusVerified)
	if err != nil {
		return 0, 0, err
	}
	for _, doc := range docs {
		if err := p.IngestDocument(ctx, doc.ID); err != nil {
			failed++
			if p.logger != nil {
				p.logger.Warn("ingest: document failed during rebuild",
					zap.String("document_id", doc.ID), zap.Error(err))
			}
			continue
		}
		indexed++
	}
	if err := p.CheckIndexConsistency(ctx); err != nil {
		return indexed, failed, err
	}
	return indexed, failed, nil
}

// CheckIndexConsistency verifies that the dense and sparse indices hold the
// same chunk id set.
func (p *Pipeline) CheckIndexConsistency(ctx context.Context) error {
	denseIDs, err := p.dense.IDs(ctx)
	if err != nil {
		return fmt.Errorf("list dense ids: %w", err)
	}
	sparseIDs, err := p.sparse.IDs(ctx)
	if err != nil {
		return fmt.Errorf("list sparse ids: %w", err)
	}
	if len(denseIDs) != len(sparseIDs) {
		return clauseerr.New(clauseerr.InternalError, "ingest.CheckIndexConsistency",
			fmt.Errorf("dense has %d ids, sparse has %d", len(denseIDs), len(sparseIDs)))
	}
	sparseSet := make(map[string]bool, len(sparseIDs))
	for _, id := range sparseIDs {
		sparseSet[id] = true
	}
	for _, id := range denseIDs {
		if !sparseSet[id] {
			return clauseerr.New(clauseerr.InternalError, "ingest.CheckIndexConsistency",
				fmt.Errorf("id %s present in dense but not sparse", id))
		}
	}
	return nil
}
