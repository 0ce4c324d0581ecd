package tools

import (
	"context"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/clausevault/clausevault/internal/catalog"
	"github.com/clausevault/clausevault/internal/clauseerr"
	"github.com/clausevault/clausevault/internal/models"
	"github.com/clausevault/clausevault/internal/retriever"
	"github.com/clausevault/clausevault/internal/sparseindex"
	"github.com/clausevault/clausevault/internal/vectorstore"
)

const dims = 128

// charEmbedder embeds text as a normalized bag-of-characters vector, so
// chunks sharing vocabulary with a query get high cosine similarity. It is
// deterministic, which is all the retrieval contract needs in tests.
type charEmbedder struct{}

func (charEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	v := make([]float32, dims)
	for _, r := range text {
		v[int(r)%dims]++
	}
	var sum float64
	for _, x := range v {
		sum += float64(x * x)
	}
	if sum > 0 {
		norm := float32(1 / math.Sqrt(sum))
		for i := range v {
			v[i] *= norm
		}
	}
	return v, nil
}

func (e charEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, _ := e.Embed(ctx, t)
		out[i] = v
	}
	return out, nil
}
func (charEmbedder) Dimensions() int  { return dims }
func (charEmbedder) ModelID() string  { return "test-char-embedder" }
func (charEmbedder) Close() error     { return nil }

type fixture struct {
	svc     *Service
	catalog *catalog.Catalog
}

var seedChunks = []struct {
	index     int
	sectionID string
	title     string
	category  models.Category
	content   string
	tableRefs []string
}{
	{0, "1.4", "保险期间", models.CategoryLiability,
		"[section: 保险责任 > 保险期间]\n\n1.4 保险期间 本合同的保险期间为本合同生效之日起至被保险人身故之日止，保险保多久以本条约定为准。", nil},
	{1, "2.1.3", "酒后驾驶", models.CategoryExclusion,
		"[section: 责任免除 > 酒后驾驶]\n\n2.1.3 被保险人酒后驾驶、醉酒、受酒精毒品影响期间出事的，我们不承担给付保险金的责任。", nil},
	{2, "5.2", "退保", models.CategoryProcess,
		"[section: 合同解除 > 退保]\n\n5.2 退保 您申请解除本合同的，须提供保险合同及身份证明，我们自收到申请之日起三十日内按现金价值退还；合同效力终止。", []string{"uuid-cash-value"}},
	{3, "6.4", "减额交清", models.CategoryProcess,
		"[section: 保费与交费 > 减额交清]\n\n6.4 减额交清 您可申请以现金价值办理减额交清，基本保险金额降低，合同继续有效，不再交纳保费。", []string{"uuid-cash-value"}},
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	root := t.TempDir()

	cat, err := catalog.Open(filepath.Join(root, "metadata.db"))
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	t.Cleanup(func() { cat.Close() })

	dense, err := vectorstore.NewMemoryStore(dims)
	if err != nil {
		t.Fatal(err)
	}
	sparse, err := sparseindex.NewBleveIndex(filepath.Join(root, "bm25_index.bleve"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { sparse.Close() })

	if err := cat.CreateProduct(ctx, &models.Product{
		ID: "prod-1", ProductCode: "FUYAO-2023", Name: "平安福耀年金保险", Company: "平安人寿", Category: "annuity",
	}); err != nil {
		t.Fatal(err)
	}
	doc := &models.PolicyDocument{
		ID: "doc-1", ProductID: "prod-1", DocType: "clause",
		Filename: "clause.pdf", LocalPath: "/raw/clause.pdf",
		SourceURL: "https://example.com/clause.pdf",
	}
	if err := cat.CreateDocument(ctx, doc); err != nil {
		t.Fatal(err)
	}
	if err := cat.MarkVerified(ctx, doc.ID, ""); err != nil {
		t.Fatal(err)
	}

	emb := charEmbedder{}
	var chunks []*models.PolicyChunk
	for _, s := range seedChunks {
		ch := &models.PolicyChunk{
			ID:           "doc-1_" + s.sectionID,
			DocumentID:   doc.ID,
			ChunkIndex:   s.index,
			Content:      s.content,
			Company:      "平安人寿",
			ProductCode:  "FUYAO-2023",
			ProductName:  "平安福耀年金保险",
			DocType:      "clause",
			SectionID:    s.sectionID,
			SectionTitle: s.title,
			Level:        2,
			SectionPath:  s.title,
			Category:     s.category,
			TableRefs:    s.tableRefs,
		}
		chunks = append(chunks, ch)
	}
	if err := cat.ReplaceChunks(ctx, doc.ID, chunks); err != nil {
		t.Fatal(err)
	}
	for _, ch := range chunks {
		vec, _ := emb.Embed(ctx, ch.Content)
		meta := map[string]string{
			"company": ch.Company, "product_code": ch.ProductCode,
			"product_name": ch.ProductName, "doc_type": ch.DocType,
			"category": string(ch.Category),
		}
		if err := dense.Upsert(ctx, ch.ID, vec, meta); err != nil {
			t.Fatal(err)
		}
		if err := sparse.Index(ctx, ch.ID, sparseindex.Document{
			ID: ch.ID, Title: ch.SectionTitle, Content: ch.Content,
		}); err != nil {
			t.Fatal(err)
		}
	}

	r := retriever.New(dense, sparse, emb, cat, retriever.DefaultConfig())
	// Bag-of-characters cosine runs lower than a real sentence model, so the
	// fixture's floors are scaled down; the negative case still uses 0.7.
	svc := NewService(r, cat, Config{DefaultMinSimilarity: 0.05, ExclusionMinSimilarity: 0.1})
	return &fixture{svc: svc, catalog: cat}
}

func TestSearchPolicyClause_PlainQuestion(t *testing.T) {
	f := newFixture(t)
	results, err := f.svc.SearchPolicyClause(context.Background(), models.SearchPolicyClauseInput{
		Query: "这个保险保多久？", Company: "平安人寿", TopK: 5, MinSimilarity: -1,
	})
	if err != nil {
		t.Fatalf("SearchPolicyClause: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected results")
	}
	if !strings.Contains(results[0].SectionTitle, "保险期间") {
		t.Errorf("top result section = %q, want 保险期间", results[0].SectionTitle)
	}
	for _, r := range results {
		if r.SourceReference.ProductName == "" || r.SourceReference.DocType == "" {
			t.Errorf("missing source reference fields: %+v", r.SourceReference)
		}
		if r.SourceReference.SourceURL == "" {
			t.Errorf("source reference should point back to the document: %+v", r.SourceReference)
		}
	}
}

func TestSearchPolicyClause_NumericLookup(t *testing.T) {
	f := newFixture(t)
	results, err := f.svc.SearchPolicyClause(context.Background(), models.SearchPolicyClauseInput{
		Query: "2.1.3", TopK: 3, MinSimilarity: 0.0001,
	})
	if err != nil {
		t.Fatalf("SearchPolicyClause: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected results for clause-number query")
	}
	if !strings.HasPrefix(results[0].SectionID, "2.1.3") {
		t.Errorf("top result section_id = %q", results[0].SectionID)
	}
}

func TestSearchPolicyClause_CategoryFilterHonored(t *testing.T) {
	f := newFixture(t)
	results, err := f.svc.SearchPolicyClause(context.Background(), models.SearchPolicyClauseInput{
		Query: "保险金 给付 责任", Category: "Exclusion", TopK: 5, MinSimilarity: 0.0001,
	})
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range results {
		ch, err := f.catalog.GetChunk(context.Background(), r.ChunkID)
		if err != nil {
			t.Fatal(err)
		}
		if ch.Category != models.CategoryExclusion {
			t.Errorf("filter leak: chunk %s category %s", ch.ID, ch.Category)
		}
	}
}

func TestSearchPolicyClause_NegativeCase(t *testing.T) {
	f := newFixture(t)
	results, err := f.svc.SearchPolicyClause(context.Background(), models.SearchPolicyClauseInput{
		Query: "火星上的骑行保障如何", TopK: 5, MinSimilarity: 0.7,
	})
	if err != nil {
		t.Fatalf("negative case must not error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected empty result, got %d", len(results))
	}
}

func TestSearchPolicyClause_InvalidCategory(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.SearchPolicyClause(context.Background(), models.SearchPolicyClauseInput{
		Query: "保险", Category: "Bogus", TopK: 5,
	})
	if !clauseerr.Is(err, clauseerr.InvalidInput) {
		t.Errorf("err = %v, want InvalidInput", err)
	}
}

func TestCheckExclusionRisk(t *testing.T) {
	f := newFixture(t)
	// Strict is deliberately omitted: the stricter floor must be the default.
	result, err := f.svc.CheckExclusionRisk(context.Background(), models.CheckExclusionRiskInput{
		ScenarioDescription: "酒驾出事",
	})
	if err != nil {
		t.Fatalf("CheckExclusionRisk: %v", err)
	}
	if result.Disclaimer != Disclaimer {
		t.Errorf("disclaimer must be the fixed string, got %q", result.Disclaimer)
	}
	if len(result.RelevantClauses) == 0 {
		t.Fatal("expected the 酒后驾驶 exclusion clause to surface")
	}
	var saw213 bool
	for _, c := range result.RelevantClauses {
		ch, err := f.catalog.GetChunk(context.Background(), c.ChunkID)
		if err != nil {
			t.Fatal(err)
		}
		if ch.Category != models.CategoryExclusion {
			t.Errorf("non-exclusion clause surfaced: %s", ch.ID)
		}
		if strings.HasPrefix(c.SectionID, "2.1.3") {
			saw213 = true
		}
	}
	if !saw213 {
		t.Error("section 2.1.3 should be present")
	}
	if !result.RiskDetected {
		t.Error("risk should be detected for 酒驾")
	}
}

func TestCheckExclusionRisk_StrictDefaultsToTrue(t *testing.T) {
	in := models.CheckExclusionRiskInput{ScenarioDescription: "酒驾出事"}
	if !in.StrictOrDefault() {
		t.Error("omitted strict flag must default to the stricter floor")
	}
	strict := false
	in.Strict = &strict
	if in.StrictOrDefault() {
		t.Error("explicit strict=false must select the looser floor")
	}
}

func TestExpandScenario(t *testing.T) {
	expanded := ExpandScenario("酒驾出事")
	for _, term := range []string{"酒后驾驶", "饮酒", "醉酒", "酒精"} {
		if !strings.Contains(expanded, term) {
			t.Errorf("expansion missing %q: %q", term, expanded)
		}
	}
	if ExpandScenario("普通的疑问") != "普通的疑问" {
		t.Error("unrecognized scenario should pass through unchanged")
	}
	if ExpandScenario("酒驾出事") != ExpandScenario("酒驾出事") {
		t.Error("expansion must be deterministic")
	}
}

func TestCalculateSurrenderValueLogic(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	surrender, err := f.svc.CalculateSurrenderValueLogic(ctx, models.CalculateSurrenderValueLogicInput{
		ProductCode: "FUYAO-2023", Operation: models.OperationSurrender,
	})
	if err != nil {
		t.Fatalf("surrender: %v", err)
	}
	reduced, err := f.svc.CalculateSurrenderValueLogic(ctx, models.CalculateSurrenderValueLogicInput{
		ProductCode: "FUYAO-2023", Operation: models.OperationReducedPaidUp,
	})
	if err != nil {
		t.Fatalf("reduced_paid_up: %v", err)
	}

	if len(surrender.SourceReferences) == 0 || len(reduced.SourceReferences) == 0 {
		t.Error("source_references must not be empty")
	}
	sectionIDs := make(map[string]bool)
	for _, res := range []*models.CalculateSurrenderValueLogicResult{surrender, reduced} {
		for _, rule := range res.CalculationRules {
			if i := strings.Index(rule, " "); i > 1 {
				sectionIDs[rule[1:i]] = true
			}
		}
	}
	if !sectionIDs["5.2"] || !sectionIDs["6.4"] {
		t.Errorf("sections 5.2 and 6.4 should appear across the two responses: %v", sectionIDs)
	}

	if len(surrender.RelatedTables) == 0 || surrender.RelatedTables[0] != "uuid-cash-value" {
		t.Errorf("related_tables should reference the cash-value sidecar: %v", surrender.RelatedTables)
	}
	if surrender.ComparisonNote == "" || reduced.ComparisonNote == "" {
		t.Error("comparison_note must be non-empty")
	}

	_, err = f.svc.CalculateSurrenderValueLogic(ctx, models.CalculateSurrenderValueLogicInput{
		ProductCode: "NO-SUCH", Operation: models.OperationSurrender,
	})
	if !clauseerr.Is(err, clauseerr.NotFound) {
		t.Errorf("unknown product: err=%v, want NotFound", err)
	}
	_, err = f.svc.CalculateSurrenderValueLogic(ctx, models.CalculateSurrenderValueLogicInput{
		ProductCode: "FUYAO-2023", Operation: "liquidate",
	})
	if !clauseerr.Is(err, clauseerr.InvalidInput) {
		t.Errorf("unknown operation: err=%v, want InvalidInput", err)
	}
}

func TestLookupProduct(t *testing.T) {
	f := newFixture(t)
	products, err := f.svc.LookupProduct(context.Background(), models.LookupProductInput{
		ProductName: "福耀", TopK: 5,
	})
	if err != nil {
		t.Fatalf("LookupProduct: %v", err)
	}
	if len(products) == 0 {
		t.Fatal("expected a fuzzy match for 福耀")
	}
	if !strings.Contains(products[0].ProductName, "福耀") {
		t.Errorf("top product = %q", products[0].ProductName)
	}
}
