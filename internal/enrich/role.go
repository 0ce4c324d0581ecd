package enrich

import (
	"strings"

	"github.com/clausevault/clausevault/internal/models"
)

var roleKeywordSets = map[models.EntityRole][]string{
	models.RoleInsurer:     {"我们", "本公司", "保险人"},
	models.RoleInsured:     {"被保险人", "受保人", "您的孩子"},
	models.RoleBeneficiary: {"受益人", "继承人"},
}

// roleOrder fixes iteration order so ties resolve deterministically (all
// tie outcomes map to RoleNone regardless of order, but a stable order
// keeps the counting loop reproducible for auditing).
var roleOrder = []models.EntityRole{models.RoleInsurer, models.RoleInsured, models.RoleBeneficiary}

// ClassifyEntityRole counts occurrences of each role's keyword set in
// content and returns the role with the strictly largest count. Ties
// (including all-zero) resolve to RoleNone.
func ClassifyEntityRole(content string) models.EntityRole {
	counts := make(map[models.EntityRole]int, len(roleOrder))
	for _, role := range roleOrder {
		counts[role] = countAny(content, roleKeywordSets[role])
	}

	best := models.RoleNone
	bestCount := 0
	tie := false
	for _, role := range roleOrder {
		c := counts[role]
		switch {
		case c > bestCount:
			best = role
			bestCount = c
			tie = false
		case c == bestCount && c > 0:
			tie = true
		}
	}
	if tie || bestCount == 0 {
		return models.RoleNone
	}
	return best
}

func countAny(content string, keywords []string) int {
	total := 0
	for _, kw := range keywords {
		total += strings.Count(content, kw)
	}
	return total
}
