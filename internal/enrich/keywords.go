package enrich

import (
	"sort"
	"strings"
	"unicode"
)

// DefaultKeywordCount is the number of keywords returned per chunk unless
// overridden.
const DefaultKeywordCount = 5

// domainBoost multiplies the weight of a recognized domain noun relative to
// a plain bigram hit.
const domainBoost = 3

// domainNouns are weighted up during keyword extraction, reflecting terms
// that matter disproportionately for a policy-clause retrieval corpus.
var domainNouns = []string{
	"保险责任", "保险金", "被保险人", "受益人", "身故", "现金价值", "保费",
	"责任免除", "犹豫期", "等待期", "保险期间", "保单", "理赔", "投保人",
	"保险人", "重大疾病", "退保", "减额交清", "保险金额", "给付",
}

var stopwordBigrams = map[string]bool{
	"的是": true, "是的": true, "了的": true, "之一": true, "以及": true,
	"根据": true, "按照": true, "对于": true, "以下": true, "如下": true,
}

var stopwordWords = map[string]bool{
	"the": true, "and": true, "of": true, "to": true, "a": true, "in": true, "is": true,
}

// ExtractKeywords tokenizes content and returns the top-k tokens by
// (domain-boosted) frequency. Chinese text is tokenized as overlapping
// character bigrams, the same lightweight scheme the sparse index's Bleve
// CJK analyzer uses internally; domain nouns are additionally matched as
// whole terms and weighted up.
func ExtractKeywords(content string, k int) []string {
	if k <= 0 {
		k = DefaultKeywordCount
	}
	weights := make(map[string]int)
	order := make([]string, 0)
	bump := func(tok string, by int) {
		if _, ok := weights[tok]; !ok {
			order = append(order, tok)
		}
		weights[tok] += by
	}

	for _, noun := range domainNouns {
		if n := strings.Count(content, noun); n > 0 {
			bump(noun, n*domainBoost)
		}
	}

	for _, tok := range bigramTokenize(content) {
		if stopwordBigrams[tok] {
			continue
		}
		bump(tok, 1)
	}
	for _, tok := range latinWordTokenize(content) {
		if stopwordWords[tok] {
			continue
		}
		bump(tok, 1)
	}

	sort.SliceStable(order, func(i, j int) bool {
		return weights[order[i]] > weights[order[j]]
	})
	if len(order) > k {
		order = order[:k]
	}
	return order
}

// bigramTokenize yields overlapping 2-character tokens from maximal runs of
// Han characters.
func bigramTokenize(content string) []string {
	var tokens []string
	var run []rune
	flush := func() {
		for i := 0; i+1 < len(run); i++ {
			tokens = append(tokens, string(run[i:i+2]))
		}
		run = run[:0]
	}
	for _, r := range content {
		if unicode.Is(unicode.Han, r) {
			run = append(run, r)
			continue
		}
		flush()
	}
	flush()
	return tokens
}

// latinWordTokenize yields lowercased alphanumeric words, for mixed-script
// content (product codes, clause IDs written in Latin digits/letters).
func latinWordTokenize(content string) []string {
	var tokens []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, strings.ToLower(cur.String()))
			cur.Reset()
		}
	}
	for _, r := range content {
		if unicode.IsLetter(r) && !unicode.Is(unicode.Han, r) || unicode.IsDigit(r) {
			cur.WriteRune(r)
			continue
		}
		flush()
	}
	flush()
	return tokens
}
