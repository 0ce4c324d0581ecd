package models

// SourceReference is the mandatory provenance block attached to every
// surfaced chunk.
type SourceReference struct {
	ProductName string `json:"product_name"`
	Company     string `json:"company"`
	DocType     string `json:"doc_type"`
	DocumentID  string `json:"document_id"`
	SourceURL   string `json:"source_url,omitempty"`
	PageNumber  int    `json:"page_number,omitempty"`
}

// ClauseResult is the result shape of search_policy_clause.
type ClauseResult struct {
	ChunkID         string          `json:"chunk_id"`
	Content         string          `json:"content"`
	SectionID       string          `json:"section_id,omitempty"`
	SectionTitle    string          `json:"section_title"`
	SimilarityScore float64         `json:"similarity_score"`
	SourceReference SourceReference `json:"source_reference"`
}

// SearchPolicyClauseInput is the input to search_policy_clause.
type SearchPolicyClauseInput struct {
	Query         string  `json:"query"`
	Company       string  `json:"company,omitempty"`
	ProductCode   string  `json:"product_code,omitempty"`
	ProductName   string  `json:"product_name,omitempty"`
	DocType       string  `json:"doc_type,omitempty"`
	Category      string  `json:"category,omitempty"`
	TopK          int     `json:"top_k"`
	MinSimilarity float64 `json:"min_similarity"`
}

// CheckExclusionRiskInput is the input to check_exclusion_risk.
type CheckExclusionRiskInput struct {
	ScenarioDescription string `json:"scenario_description"`
	ProductCode         string `json:"product_code,omitempty"`
	// Strict selects the stricter risk floor. A pointer so an omitted
	// field defaults to true rather than to the looser floor.
	Strict *bool `json:"strict,omitempty"`
}

// StrictOrDefault reports whether the stricter risk floor applies;
// defaults to true when unset.
func (in *CheckExclusionRiskInput) StrictOrDefault() bool {
	if in.Strict != nil {
		return *in.Strict
	}
	return true
}

// CheckExclusionRiskResult is the result shape of check_exclusion_risk.
type CheckExclusionRiskResult struct {
	RiskDetected    bool           `json:"risk_detected"`
	RelevantClauses []ClauseResult `json:"relevant_clauses"`
	Summary         string         `json:"summary"`
	Disclaimer      string         `json:"disclaimer"`
}

// SurrenderOperation is the operation kind for calculate_surrender_value_logic.
type SurrenderOperation string

const (
	OperationSurrender     SurrenderOperation = "surrender"
	OperationReducedPaidUp SurrenderOperation = "reduced_paid_up"
)

// CalculateSurrenderValueLogicInput is the input to
// calculate_surrender_value_logic.
type CalculateSurrenderValueLogicInput struct {
	ProductCode string             `json:"product_code"`
	PolicyYear  int                `json:"policy_year,omitempty"`
	Operation   SurrenderOperation `json:"operation"`
}

// CalculateSurrenderValueLogicResult is the result shape of
// calculate_surrender_value_logic.
type CalculateSurrenderValueLogicResult struct {
	OperationName     string            `json:"operation_name"`
	Definition        string            `json:"definition"`
	CalculationRules  []string          `json:"calculation_rules"`
	Conditions        []string          `json:"conditions"`
	Consequences      []string          `json:"consequences"`
	RelatedTables     []string          `json:"related_tables"`
	ComparisonNote    string            `json:"comparison_note"`
	SourceReferences []SourceReference `json:"source_references"`
}

// LookupProductInput is the input to lookup_product.
type LookupProductInput struct {
	ProductName string `json:"product_name"`
	Company     string `json:"company,omitempty"`
	TopK        int    `json:"top_k"`
}

// ProductInfo is the result shape of lookup_product.
type ProductInfo struct {
	ProductID   string  `json:"product_id"`
	ProductCode string  `json:"product_code"`
	ProductName string  `json:"product_name"`
	Company     string  `json:"company"`
	Category    string  `json:"category"`
	PublishTime string  `json:"publish_time"`
	Similarity  float64 `json:"-"`
}
