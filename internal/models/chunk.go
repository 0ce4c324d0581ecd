package models

// Category is the semantic classification of a PolicyChunk. It is total:
// General is the sink for anything not otherwise classified.
type Category string

const (
	CategoryLiability  Category = "Liability"
	CategoryExclusion  Category = "Exclusion"
	CategoryProcess    Category = "Process"
	CategoryDefinition Category = "Definition"
	CategoryGeneral    Category = "General"
)

// EntityRole is the subject role a chunk is written about, if any.
type EntityRole string

const (
	RoleInsurer     EntityRole = "Insurer"
	RoleInsured     EntityRole = "Insured"
	RoleBeneficiary EntityRole = "Beneficiary"
	RoleNone        EntityRole = ""
)

// TableRow is one structured row of an inline preserved table.
type TableRow []string

// PolicyChunk is the retrieval unit: a slice of a VERIFIED PolicyDocument,
// either textual prose or a single preserved inline table, never both.
type PolicyChunk struct {
	// identity
	ID         string `json:"id"`
	DocumentID string `json:"document_id"`
	ChunkIndex int    `json:"chunk_index"`

	// content: includes the prepended breadcrumb "[section: A > B > C]"
	Content string `json:"content"`

	// context: required, mirrored from the owning Product/PolicyDocument
	Company     string `json:"company"`
	ProductCode string `json:"product_code"`
	ProductName string `json:"product_name"`
	DocType     string `json:"doc_type"`

	// structural fields
	SectionID     string `json:"section_id,omitempty"`
	SectionTitle  string `json:"section_title"`
	ParentSection string `json:"parent_section,omitempty"`
	Level         int    `json:"level"`
	SectionPath   string `json:"section_path"`
	PageNumber    int    `json:"page_number,omitempty"`

	// semantic fields
	Category   Category   `json:"category"`
	EntityRole EntityRole `json:"entity_role,omitempty"`
	Keywords   []string   `json:"keywords"`

	// table fields
	IsTable   bool       `json:"is_table"`
	TableData []TableRow `json:"table_data,omitempty"`
	TableRefs []string   `json:"table_refs,omitempty"`

	// vector: omitted from JSON views that round-trip metadata only; callers
	// that need the vector read it from the vector store directly.
	Embedding []float32 `json:"-"`
}

// Validate checks the chunk invariants from the data model that are cheap to
// check locally (cross-document invariants are checked by the catalog).
func (c *PolicyChunk) Validate() error {
	if c.Company == "" || c.ProductCode == "" {
		return errInvalidChunk("company and product_code are required")
	}
	if c.IsTable && len(c.TableData) == 0 {
		return errInvalidChunk("is_table chunk requires table_data")
	}
	if !c.IsTable && c.Content == "" {
		return errInvalidChunk("non-table chunk requires content")
	}
	if c.Level < 1 || c.Level > 5 {
		return errInvalidChunk("level must be within [1,5]")
	}
	switch c.Category {
	case CategoryLiability, CategoryExclusion, CategoryProcess, CategoryDefinition, CategoryGeneral:
	default:
		return errInvalidChunk("category must be a recognized value")
	}
	return nil
}

type chunkValidationError string

func (e chunkValidationError) Error() string { return string(e) }

func errInvalidChunk(msg string) error { return chunkValidationError(msg) }
