package tools

import "strings"

// scenarioExpansions is the curated synonym map applied to exclusion-check
// scenarios before retrieval. Colloquial phrasings ("酒驾出事") rarely match
// clause vocabulary ("酒后驾驶"), so each recognized trigger appends the
// terms the clauses actually use.
var scenarioExpansions = []struct {
	trigger string
	terms   []string
}{
	{"酒驾", []string{"酒后驾驶", "饮酒", "醉酒", "酒精"}},
	{"醉驾", []string{"酒后驾驶", "醉酒", "酒精"}},
	{"无证驾驶", []string{"无合法有效驾驶证", "无有效行驶证"}},
	{"吸毒", []string{"毒品", "麻醉药品", "精神药品"}},
	{"自杀", []string{"故意自伤", "自杀"}},
	{"打架", []string{"斗殴", "故意行为", "犯罪"}},
	{"犯罪", []string{"故意犯罪", "抗拒依法采取的刑事强制措施"}},
	{"战争", []string{"战争", "军事冲突", "暴乱", "武装叛乱"}},
	{"核辐射", []string{"核爆炸", "核辐射", "核污染"}},
	{"艾滋", []string{"艾滋病", "感染艾滋病病毒", "HIV"}},
	{"怀孕", []string{"妊娠", "流产", "分娩"}},
	{"整容", []string{"美容", "整形手术"}},
	{"高风险运动", []string{"潜水", "跳伞", "攀岩", "探险"}},
}

// ExpandScenario appends the expansion terms for every trigger present in
// the scenario description. The expansion list is ordered so the same
// scenario always produces the same query. Unrecognized scenarios pass
// through unchanged.
func ExpandScenario(scenario string) string {
	var extra []string
	seen := make(map[string]bool)
	for _, e := range scenarioExpansions {
		if !strings.Contains(scenario, e.trigger) {
			continue
		}
		for _, term := range e.terms {
			if !seen[term] && !strings.Contains(scenario, term) {
				seen[term] = true
				extra = append(extra, term)
			}
		}
	}
	if len(extra) == 0 {
		return scenario
	}
	return scenario + " " + strings.Join(extra, " ")
}
