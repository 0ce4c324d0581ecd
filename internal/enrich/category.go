// Package enrich classifies each PolicyChunk's category, entity_role,
// section_id, parent_section, and keywords via deterministic rule
// cascades. No machine-learned classifier is involved: classification must
// be a total, auditable rule order, with General as the sink.
package enrich

import (
	"strings"

	"github.com/clausevault/clausevault/internal/models"
)

// categoryRule is one (predicate, label) pair in the ordered cascade.
type categoryRule struct {
	label    models.Category
	keywords []string
}

// categoryCascade is evaluated top to bottom; the first matching rule wins.
// General is the unconditional sink, making the cascade total by
// construction.
var categoryCascade = []categoryRule{
	{models.CategoryExclusion, []string{"责任免除", "我们不承担", "除外", "不负责", "免除责任", "不予给付"}},
	{models.CategoryLiability, []string{"保险责任", "我们给付", "保险金", "我们支付", "承担责任", "给付"}},
	{models.CategoryDefinition, []string{"本合同所称", "定义", "是指", "本条款中", "以下简称"}},
	{models.CategoryProcess, []string{"申请", "理赔", "手续", "流程", "提交材料", "审核", "办理"}},
}

// ClassifyCategory evaluates the rule cascade against content and returns
// the matched category, defaulting to General.
func ClassifyCategory(content string) models.Category {
	for _, rule := range categoryCascade {
		if containsAny(content, rule.keywords) {
			return rule.label
		}
	}
	return models.CategoryGeneral
}

func containsAny(content string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(content, kw) {
			return true
		}
	}
	return false
}
