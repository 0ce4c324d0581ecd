package enrich

import (
	"testing"

	"github.com/clausevault/clausevault/internal/models"
)

func TestEnrich(t *testing.T) {
	chunk := &models.PolicyChunk{
		Content:      "责任免除：被保险人因下列情形之一导致身故的，我们不承担给付保险金的责任。",
		SectionTitle: "2.3 责任免除",
	}
	Enrich(chunk)

	if chunk.Category != models.CategoryExclusion {
		t.Errorf("Category = %s, want %s", chunk.Category, models.CategoryExclusion)
	}
	if chunk.SectionID != "2.3" {
		t.Errorf("SectionID = %q, want 2.3", chunk.SectionID)
	}
	if chunk.ParentSection != "2" {
		t.Errorf("ParentSection = %q, want 2", chunk.ParentSection)
	}
	if len(chunk.Keywords) == 0 {
		t.Error("Keywords should be non-empty")
	}
}
