package sparseindex

// stopTokens is the short stop list removed from the token stream at both
// index and query time (the stop filter sits in the field analyzer, and
// match queries analyze query text with the same analyzer, so the two
// sides stay symmetric). Entries must match post-analysis token shapes:
// bigrams for function-word pairs inside Han runs, single characters for
// isolated particles (a one-rune Han run passes the bigram filter intact),
// and lowercased words for Latin text.
var stopTokens = []interface{}{
	// isolated particles
	"的", "了", "是", "在", "和", "与", "或", "及",
	// function-word bigrams that carry no clause meaning
	"的是", "是的", "了的", "之一", "以及", "或者", "并且",
	"如果", "但是", "因为", "所以", "对于", "根据", "按照",
	// Latin stopwords (clause text mixes in English product terms)
	"the", "and", "of", "to", "a", "in", "is", "for", "or",
}
