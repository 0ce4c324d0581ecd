package enrich

import "github.com/clausevault/clausevault/internal/models"

// Enrich populates a PolicyChunk's Category, EntityRole, Keywords,
// SectionID, and ParentSection by running the rule cascades in this
// package against its Content and SectionTitle. It is the single call site
// the ingest pipeline uses between chunking and embedding; table
// chunks are enriched from their rendered Content the same as prose.
func Enrich(chunk *models.PolicyChunk) {
	chunk.Category = ClassifyCategory(chunk.Content)
	chunk.EntityRole = ClassifyEntityRole(chunk.Content)
	chunk.Keywords = ExtractKeywords(chunk.Content, DefaultKeywordCount)

	sectionID, parentSection := ParseSectionID(chunk.SectionTitle)
	chunk.SectionID = sectionID
	chunk.ParentSection = parentSection
}
