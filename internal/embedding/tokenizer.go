package embedding

import "unicode"

// Tokenizer produces token IDs for BERT-style models (input_ids, attention_mask, token_type_ids).
type Tokenizer interface {
	Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64)
}

// SimpleTokenizer segments text with hash-based token IDs (for testing or as
// a fallback when no model vocabulary is shipped). CJK characters are
// emitted one token per rune, since policy clause text has no whitespace
// word boundaries, while runs of Latin letters and digits (product codes,
// clause numbers like "1.2.6") stay together as single tokens.
type SimpleTokenizer struct{}

// Tokenize segments text and produces padded token IDs up to maxTokens.
func (t *SimpleTokenizer) Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64) {
	tokens := Segment(text)
	if maxTokens <= 0 {
		maxTokens = 256
	}
	inputIDs = make([]int64, maxTokens)
	attentionMask = make([]int64, maxTokens)
	tokenTypeIDs = make([]int64, maxTokens)

	inputIDs[0] = 101 // [CLS]
	attentionMask[0] = 1

	pos := 1
	for _, tok := range tokens {
		if pos >= maxTokens-1 {
			break
		}
		inputIDs[pos] = int64(HashString(tok) % 30000)
		attentionMask[pos] = 1
		pos++
	}
	if pos < maxTokens {
		inputIDs[pos] = 102 // [SEP]
		attentionMask[pos] = 1
	}
	return inputIDs, attentionMask, tokenTypeIDs
}

// Segment splits text into tokens: one token per CJK rune, one token per
// maximal run of Latin letters/digits/'.', everything else a separator.
// Keeping '.' inside Latin runs preserves dotted clause numbers ("1.2.6")
// as single tokens, which exact-match lookups rely on.
func Segment(text string) []string {
	var tokens []string
	var run []rune
	flush := func() {
		if len(run) > 0 {
			tokens = append(tokens, string(run))
			run = run[:0]
		}
	}
	for _, r := range text {
		switch {
		case unicode.Is(unicode.Han, r):
			flush()
			tokens = append(tokens, string(r))
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.':
			run = append(run, r)
		default:
			flush()
		}
	}
	flush()
	return tokens
}

// HashString returns a deterministic hash for use as a simple token ID.
func HashString(s string) int {
	h := 0
	for _, c := range s {
		h = 31*h + int(c)
	}
	if h < 0 {
		h = -h
	}
	return h
}
