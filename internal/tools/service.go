// Package tools implements the four retrieval tools exposed over MCP:
// search_policy_clause, check_exclusion_risk, calculate_surrender_value_logic,
// and lookup_product. Every surfaced chunk carries a source reference; an
// empty result is always a valid response and nothing is ever synthesized.
package tools

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/clausevault/clausevault/internal/catalog"
	"github.com/clausevault/clausevault/internal/clauseerr"
	"github.com/clausevault/clausevault/internal/models"
	"github.com/clausevault/clausevault/internal/retriever"
)

// Disclaimer is the fixed reference-only string attached to every
// exclusion-risk response. It is not configurable.
const Disclaimer = "以上内容仅为保险条款原文检索结果，供参考，不构成理赔结论或法律意见。具体赔付以保险公司核定为准。"

// Config carries the tool layer's similarity floors, both exposed as knobs.
type Config struct {
	DefaultMinSimilarity   float64 // general retrieval floor, default 0.7
	ExclusionMinSimilarity float64 // stricter floor for risk detection, default 0.75
}

// DefaultConfig returns the default thresholds.
func DefaultConfig() Config {
	return Config{DefaultMinSimilarity: 0.7, ExclusionMinSimilarity: 0.75}
}

// Service implements the tool handlers over the hybrid retriever and the
// catalog.
type Service struct {
	retriever *retriever.Retriever
	catalog   *catalog.Catalog
	cfg       Config
	logger    *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger attaches a zap logger; nil-safe if never set.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService builds the tool layer.
func NewService(r *retriever.Retriever, c *catalog.Catalog, cfg Config, opts ...Option) *Service {
	s := &Service{retriever: r, catalog: c, cfg: cfg}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SearchPolicyClause returns literal clause chunks matching the query. A
// min_similarity of -1 selects the configured default floor; an empty list
// is a valid result, never an error.
func (s *Service) SearchPolicyClause(ctx context.Context, in models.SearchPolicyClauseInput) ([]models.ClauseResult, error) {
	if in.Query == "" {
		return nil, clauseerr.New(clauseerr.InvalidInput, "tools.SearchPolicyClause",
			fmt.Errorf("query is required"))
	}
	if in.Category != "" && !validCategory(in.Category) {
		return nil, clauseerr.New(clauseerr.InvalidInput, "tools.SearchPolicyClause",
			fmt.Errorf("unknown category %q", in.Category))
	}
	minSim := in.MinSimilarity
	if minSim < 0 {
		minSim = s.cfg.DefaultMinSimilarity
	}

	result, err := s.retriever.Retrieve(ctx, models.RetrieveQuery{
		Query: in.Query,
		Filters: models.Filters{
			Company:     in.Company,
			ProductCode: in.ProductCode,
			ProductName: in.ProductName,
			DocType:     in.DocType,
			Category:    in.Category,
		},
		TopK:          in.TopK,
		MinSimilarity: minSim,
	})
	if err != nil {
		return nil, err
	}

	results := make([]models.ClauseResult, 0, len(result.Chunks))
	for _, rc := range result.Chunks {
		ref, err := s.sourceRef(ctx, rc.Chunk)
		if err != nil {
			return nil, err
		}
		results = append(results, models.ClauseResult{
			ChunkID:         rc.Chunk.ID,
			Content:         rc.Chunk.Content,
			SectionID:       rc.Chunk.SectionID,
			SectionTitle:    rc.Chunk.SectionTitle,
			SimilarityScore: similarityOf(rc),
			SourceReference: ref,
		})
	}
	return results, nil
}

// CheckExclusionRisk expands the scenario through the curated synonym map,
// searches exclusion clauses only, and reports whether any clause clears
// the stricter risk floor. The disclaimer is fixed and always present.
func (s *Service) CheckExclusionRisk(ctx context.Context, in models.CheckExclusionRiskInput) (*models.CheckExclusionRiskResult, error) {
	if in.ScenarioDescription == "" {
		return nil, clauseerr.New(clauseerr.InvalidInput, "tools.CheckExclusionRisk",
			fmt.Errorf("scenario_description is required"))
	}

	query := ExpandScenario(in.ScenarioDescription)
	clauses, err := s.SearchPolicyClause(ctx, models.SearchPolicyClauseInput{
		Query:         query,
		ProductCode:   in.ProductCode,
		Category:      string(models.CategoryExclusion),
		TopK:          5,
		MinSimilarity: s.cfg.DefaultMinSimilarity,
	})
	if err != nil {
		return nil, err
	}

	riskFloor := s.cfg.ExclusionMinSimilarity
	if !in.StrictOrDefault() {
		riskFloor = s.cfg.DefaultMinSimilarity
	}
	risk := false
	for _, c := range clauses {
		if c.SimilarityScore >= riskFloor {
			risk = true
			break
		}
	}

	summary := fmt.Sprintf("检索到 %d 条相关责任免除条款。", len(clauses))
	if len(clauses) == 0 {
		summary = "未检索到与该情形相关的责任免除条款。"
	} else if risk {
		summary = fmt.Sprintf("该情形可能触及责任免除条款，共检索到 %d 条相关条款，请逐条核对原文。", len(clauses))
	}

	return &models.CheckExclusionRiskResult{
		RiskDetected:    risk,
		RelevantClauses: clauses,
		Summary:         summary,
		Disclaimer:      Disclaimer,
	}, nil
}

// surrenderQueries maps each operation to its retrieval query and display
// name. Both operations are Process-category lookups scoped to the product.
var surrenderQueries = map[models.SurrenderOperation]struct {
	name  string
	query string
}{
	models.OperationSurrender:     {name: "退保", query: "退保 现金价值 退还 申请 手续"},
	models.OperationReducedPaidUp: {name: "减额交清", query: "减额交清 现金价值 保险金额 办理"},
}

// comparisonNote is the fixed template composed into every surrender-logic
// response.
const comparisonNote = "退保将终止合同并按现金价值退还；减额交清保留合同效力但降低基本保险金额。两种方式的金额均以条款和现金价值表为准，请结合保单实际年度核算后再做决定。"

// scheduleNote is included in calculation_rules when no cash-value rate
// table is referenced by the retrieved clauses.
const scheduleNote = "条款未附现金价值数值表，具体金额请查阅保险单所附的现金价值表或咨询保险公司。"

// CalculateSurrenderValueLogic retrieves the clauses governing surrender or
// reduced paid-up for a product and composes their literal rules. It never
// computes a value; rate tables are referenced, not evaluated.
func (s *Service) CalculateSurrenderValueLogic(ctx context.Context, in models.CalculateSurrenderValueLogicInput) (*models.CalculateSurrenderValueLogicResult, error) {
	spec, ok := surrenderQueries[in.Operation]
	if !ok {
		return nil, clauseerr.New(clauseerr.InvalidInput, "tools.CalculateSurrenderValueLogic",
			fmt.Errorf("unknown operation %q", in.Operation))
	}
	if in.ProductCode == "" {
		return nil, clauseerr.New(clauseerr.InvalidInput, "tools.CalculateSurrenderValueLogic",
			fmt.Errorf("product_code is required"))
	}
	if _, err := s.catalog.GetProductByCode(ctx, in.ProductCode); err != nil {
		return nil, err
	}

	result, err := s.retriever.Retrieve(ctx, models.RetrieveQuery{
		Query: spec.query,
		Filters: models.Filters{
			ProductCode: in.ProductCode,
			Category:    string(models.CategoryProcess),
		},
		TopK:          5,
		MinSimilarity: s.cfg.DefaultMinSimilarity,
	})
	if err != nil {
		return nil, err
	}

	out := &models.CalculateSurrenderValueLogicResult{
		OperationName:    spec.name,
		CalculationRules: []string{},
		Conditions:       []string{},
		Consequences:     []string{},
		RelatedTables:    []string{},
		ComparisonNote:   comparisonNote,
		SourceReferences: []models.SourceReference{},
	}

	seenTables := make(map[string]bool)
	for i, rc := range result.Chunks {
		ch := rc.Chunk
		if i == 0 {
			out.Definition = ch.Content
		}
		out.CalculationRules = append(out.CalculationRules, ruleLine(ch))
		for _, line := range splitClauses(ch.Content) {
			switch {
			case strings.Contains(line, "申请") || strings.Contains(line, "须") || strings.Contains(line, "提供"):
				out.Conditions = append(out.Conditions, line)
			case strings.Contains(line, "终止") || strings.Contains(line, "降低") || strings.Contains(line, "不再"):
				out.Consequences = append(out.Consequences, line)
			}
		}
		for _, ref := range ch.TableRefs {
			if !seenTables[ref] {
				seenTables[ref] = true
				out.RelatedTables = append(out.RelatedTables, ref)
			}
		}
		srcRef, err := s.sourceRef(ctx, ch)
		if err != nil {
			return nil, err
		}
		out.SourceReferences = append(out.SourceReferences, srcRef)
	}

	if len(out.RelatedTables) == 0 {
		out.CalculationRules = append(out.CalculationRules, scheduleNote)
	}
	return out, nil
}

// LookupProduct fuzzy-matches products by name. It never touches the
// vector index.
func (s *Service) LookupProduct(ctx context.Context, in models.LookupProductInput) ([]models.ProductInfo, error) {
	if in.ProductName == "" {
		return nil, clauseerr.New(clauseerr.InvalidInput, "tools.LookupProduct",
			fmt.Errorf("product_name is required"))
	}
	infos, err := s.catalog.FindProductsByName(ctx, in.ProductName, in.Company, in.TopK)
	if err != nil {
		return nil, err
	}
	out := make([]models.ProductInfo, 0, len(infos))
	for _, p := range infos {
		out = append(out, *p)
	}
	return out, nil
}

// sourceRef builds the mandatory provenance block for a chunk from its
// owning document.
func (s *Service) sourceRef(ctx context.Context, ch *models.PolicyChunk) (models.SourceReference, error) {
	ref := models.SourceReference{
		ProductName: ch.ProductName,
		Company:     ch.Company,
		DocType:     ch.DocType,
		DocumentID:  ch.DocumentID,
		PageNumber:  ch.PageNumber,
	}
	doc, err := s.catalog.GetDocument(ctx, ch.DocumentID)
	if err != nil {
		// The chunk's own context fields are still a valid citation when the
		// document record is momentarily unavailable.
		if s.logger != nil {
			s.logger.Warn("tools: document lookup failed for source reference",
				zap.String("document_id", ch.DocumentID), zap.Error(err))
		}
		return ref, nil
	}
	ref.SourceURL = doc.SourceURL
	return ref, nil
}

// similarityOf reports the chunk's user-facing similarity: cosine when the
// dense side saw it, otherwise the fused score (sparse-only hits have no
// cosine to report).
func similarityOf(rc *models.RetrievedChunk) float64 {
	if rc.InDense {
		return rc.DenseScore
	}
	return rc.FusedScore
}

func splitClauses(content string) []string {
	var out []string
	for _, line := range strings.FieldsFunc(content, func(r rune) bool {
		return r == '\n' || r == '。' || r == '；'
	}) {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

func ruleLine(ch *models.PolicyChunk) string {
	if ch.SectionID != "" {
		return fmt.Sprintf("[%s %s] %s", ch.SectionID, ch.SectionTitle, ch.Content)
	}
	return ch.Content
}

func validCategory(c string) bool {
	switch models.Category(c) {
	case models.CategoryLiability, models.CategoryExclusion, models.CategoryProcess,
		models.CategoryDefinition, models.CategoryGeneral:
		return true
	}
	return false
}
