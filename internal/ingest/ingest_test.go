package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/clausevault/clausevault/internal/catalog"
	"github.com/clausevault/clausevault/internal/chunk"
	"github.com/clausevault/clausevault/internal/clauseerr"
	"github.com/clausevault/clausevault/internal/embedding"
	"github.com/clausevault/clausevault/internal/models"
	"github.com/clausevault/clausevault/internal/parse"
	"github.com/clausevault/clausevault/internal/sparseindex"
	"github.com/clausevault/clausevault/internal/vectorstore"
)

const sampleMarkdown = `# 1 保险责任

## 1.1 身故保险金

被保险人身故的，我们按基本保险金额给付身故保险金。

## 1.2 保险期间

本合同的保险期间为终身。

[rate-table: 3f2b8c1e-5d4a-4b6f-9c7e-1a2b3c4d5e6f]

# 2 责任免除

因被保险人酒后驾驶导致身故的，我们不承担给付保险金的责任。
`

type testPipeline struct {
	*Pipeline
	catalog *catalog.Catalog
	dense   vectorstore.VectorStore
	sparse  sparseindex.SparseIndex
	docID   string
}

func newTestPipeline(t *testing.T) *testPipeline {
	t.Helper()
	ctx := context.Background()
	root := t.TempDir()

	cat, err := catalog.Open(filepath.Join(root, "db", "metadata.db"))
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	t.Cleanup(func() { cat.Close() })

	dense, err := vectorstore.NewMemoryStore(384)
	if err != nil {
		t.Fatalf("NewMemoryStore: %v", err)
	}
	sparse, err := sparseindex.NewBleveIndex(filepath.Join(root, "bm25_index.bleve"))
	if err != nil {
		t.Fatalf("NewBleveIndex: %v", err)
	}
	t.Cleanup(func() { sparse.Close() })

	p := New(cat, embedding.NewMockEmbedder(384), dense, sparse,
		chunk.New(chunk.DefaultConfig()),
		filepath.Join(root, "assets", "tables"),
		filepath.Join(root, "processed"))
	p.parseFn = func(_ string, _ parse.Options) (string, []*models.RateTable, error) {
		return sampleMarkdown, nil, nil
	}

	if err := cat.CreateProduct(ctx, &models.Product{
		ID: "prod-1", ProductCode: "FUYAO-2023", Name: "平安福耀年金保险", Company: "平安人寿",
	}); err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	pdfPath := filepath.Join(root, "raw", "平安人寿", "FUYAO-2023", "clause.pdf")
	if err := os.MkdirAll(filepath.Dir(pdfPath), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(pdfPath, []byte("%PDF-1.4 placeholder"), 0o644); err != nil {
		t.Fatal(err)
	}
	doc := &models.PolicyDocument{
		ID: "doc-1", ProductID: "prod-1", DocType: "clause",
		Filename: "clause.pdf", LocalPath: pdfPath,
	}
	if err := cat.CreateDocument(ctx, doc); err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}

	return &testPipeline{Pipeline: p, catalog: cat, dense: dense, sparse: sparse, docID: doc.ID}
}

func TestIngestRefusesUnverified(t *testing.T) {
	tp := newTestPipeline(t)
	ctx := context.Background()

	err := tp.IngestDocument(ctx, tp.docID)
	if !clauseerr.Is(err, clauseerr.InvalidInput) {
		t.Errorf("PENDING document: err=%v, want InvalidInput", err)
	}
	ids, _ := tp.dense.IDs(ctx)
	if len(ids) != 0 {
		t.Errorf("no chunks may be indexed from a PENDING document, got %d", len(ids))
	}
}

func TestIngestDocument(t *testing.T) {
	tp := newTestPipeline(t)
	ctx := context.Background()
	if err := tp.catalog.MarkVerified(ctx, tp.docID, ""); err != nil {
		t.Fatal(err)
	}

	if err := tp.IngestDocument(ctx, tp.docID); err != nil {
		t.Fatalf("IngestDocument: %v", err)
	}

	chunks, err := tp.catalog.GetChunksByDocumentID(ctx, tp.docID)
	if err != nil || len(chunks) == 0 {
		t.Fatalf("stored chunks: %v, %v", len(chunks), err)
	}
	for i, ch := range chunks {
		if ch.ChunkIndex != i {
			t.Errorf("chunk_index out of order at %d: %d", i, ch.ChunkIndex)
		}
		if ch.Company != "平安人寿" || ch.ProductCode != "FUYAO-2023" {
			t.Errorf("context fields not inherited: %+v", ch)
		}
		if ch.Category == "" {
			t.Error("category must be total")
		}
	}

	var sawExclusion, sawTableRef bool
	for _, ch := range chunks {
		if ch.Category == models.CategoryExclusion {
			sawExclusion = true
		}
		for _, ref := range ch.TableRefs {
			if ref == "3f2b8c1e-5d4a-4b6f-9c7e-1a2b3c4d5e6f" {
				sawTableRef = true
			}
		}
	}
	if !sawExclusion {
		t.Error("责任免除 region should be classified Exclusion")
	}
	if !sawTableRef {
		t.Error("rate-table placeholder should surface in table_refs")
	}

	if err := tp.CheckIndexConsistency(ctx); err != nil {
		t.Errorf("index id sets diverged after ingest: %v", err)
	}

	// Re-ingest is idempotent on the id set (delete-then-insert).
	if err := tp.IngestDocument(ctx, tp.docID); err != nil {
		t.Fatalf("second IngestDocument: %v", err)
	}
	again, _ := tp.catalog.GetChunksByDocumentID(ctx, tp.docID)
	if len(again) != len(chunks) {
		t.Errorf("reindex changed chunk count: %d -> %d", len(chunks), len(again))
	}
	for i := range again {
		if again[i].ID != chunks[i].ID || again[i].Content != chunks[i].Content {
			t.Errorf("reindex not deterministic at %d", i)
		}
	}

	// Processed Markdown was written.
	entries, err := os.ReadDir(tp.processedDir)
	if err != nil || len(entries) != 1 {
		t.Errorf("processed markdown: entries=%v err=%v", entries, err)
	}
}

func TestIngestParseFailureLeavesNotes(t *testing.T) {
	tp := newTestPipeline(t)
	ctx := context.Background()
	if err := tp.catalog.MarkVerified(ctx, tp.docID, ""); err != nil {
		t.Fatal(err)
	}
	tp.parseFn = parse.ParseToMarkdown // the placeholder file is not a real PDF

	err := tp.IngestDocument(ctx, tp.docID)
	if !clauseerr.Is(err, clauseerr.ParseFailure) {
		t.Fatalf("err=%v, want ParseFailure", err)
	}
	doc, _ := tp.catalog.GetDocument(ctx, tp.docID)
	if !strings.Contains(doc.ReviewerNotes, "parse failure") {
		t.Errorf("reviewer_notes not populated: %q", doc.ReviewerNotes)
	}
	n, _ := tp.catalog.CountChunks(ctx)
	if n != 0 {
		t.Errorf("partial results committed: %d chunks", n)
	}
}

func TestDeleteDocument(t *testing.T) {
	tp := newTestPipeline(t)
	ctx := context.Background()
	if err := tp.catalog.MarkVerified(ctx, tp.docID, ""); err != nil {
		t.Fatal(err)
	}
	if err := tp.IngestDocument(ctx, tp.docID); err != nil {
		t.Fatal(err)
	}

	if err := tp.DeleteDocument(ctx, tp.docID); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
	denseIDs, _ := tp.dense.IDs(ctx)
	sparseCount, _ := tp.sparse.DocCount()
	if len(denseIDs) != 0 || sparseCount != 0 {
		t.Errorf("indices not emptied: dense=%d sparse=%d", len(denseIDs), sparseCount)
	}
	if _, err := tp.catalog.GetDocument(ctx, tp.docID); !clauseerr.Is(err, clauseerr.NotFound) {
		t.Errorf("document record should be gone, err=%v", err)
	}
}

func TestRebuildAll(t *testing.T) {
	tp := newTestPipeline(t)
	ctx := context.Background()
	if err := tp.catalog.MarkVerified(ctx, tp.docID, ""); err != nil {
		t.Fatal(err)
	}

	indexed, failed, err := tp.RebuildAll(ctx)
	if err != nil {
		t.Fatalf("RebuildAll: %v", err)
	}
	if indexed != 1 || failed != 0 {
		t.Errorf("indexed=%d failed=%d", indexed, failed)
	}
}

func TestRegisterPDF(t *testing.T) {
	tp := newTestPipeline(t)
	ctx := context.Background()
	root := t.TempDir()
	pdfPath := filepath.Join(root, "raw", "泰康人寿", "TK-AN-01", "manual.pdf")
	if err := os.MkdirAll(filepath.Dir(pdfPath), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(pdfPath, []byte("%PDF-1.4"), 0o644); err != nil {
		t.Fatal(err)
	}

	id, err := tp.RegisterPDF(ctx, pdfPath)
	if err != nil {
		t.Fatalf("RegisterPDF: %v", err)
	}
	doc, err := tp.catalog.GetDocument(ctx, id)
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if doc.VerificationStatus != models.StatusPending {
		t.Errorf("registered document must start PENDING, got %s", doc.VerificationStatus)
	}
	if doc.DocType != "manual" || doc.FileHash == "" || doc.FileSize == 0 {
		t.Errorf("document fields: %+v", doc)
	}
	product, err := tp.catalog.GetProductByCode(ctx, "TK-AN-01")
	if err != nil || product.Company != "泰康人寿" {
		t.Errorf("product auto-created: %+v, %v", product, err)
	}

	// Idempotent: same path, same ID, no duplicate.
	again, err := tp.RegisterPDF(ctx, pdfPath)
	if err != nil || again != id {
		t.Errorf("re-register: id=%s err=%v", again, err)
	}

	if _, err := tp.RegisterPDF(ctx, filepath.Join(root, "notes.txt")); !clauseerr.Is(err, clauseerr.InvalidInput) {
		t.Errorf("non-PDF should be refused, err=%v", err)
	}
}
