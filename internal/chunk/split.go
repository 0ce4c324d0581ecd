package chunk

// splitProse packs paragraphs into chunks of up to cfg.MaxTokens, cutting
// only at a paragraph boundary once the next paragraph would overflow the
// max; cfg.TargetTokens does not move the cut point. Consecutive chunks overlap by carrying the previous chunk's trailing
// paragraphs (totaling cfg.OverlapMinToken..OverlapMaxToken tokens) into the
// head of the next chunk.
func (c *Chunker) splitProse(paragraphs []string) []string {
	if len(paragraphs) == 0 {
		return nil
	}

	var chunks []string
	var current []string
	currentTokens := 0

	flush := func() {
		if len(current) > 0 {
			chunks = append(chunks, joinParagraphs(current))
		}
	}

	for _, p := range paragraphs {
		pTokens := EstimateTokens(p)
		if len(current) > 0 && currentTokens+pTokens > c.cfg.MaxTokens {
			flush()
			overlap := selectOverlapTail(current, c.cfg.OverlapMinToken, c.cfg.OverlapMaxToken)
			current = append(append([]string(nil), overlap...), p)
			currentTokens = sumTokens(current)
			continue
		}
		current = append(current, p)
		currentTokens += pTokens
	}
	flush()

	if len(chunks) == 0 {
		return []string{joinParagraphs(paragraphs)}
	}
	return chunks
}

func joinParagraphs(paragraphs []string) string {
	out := paragraphs[0]
	for _, p := range paragraphs[1:] {
		out += "\n\n" + p
	}
	return out
}

func sumTokens(paragraphs []string) int {
	total := 0
	for _, p := range paragraphs {
		total += EstimateTokens(p)
	}
	return total
}

// selectOverlapTail walks paragraphs backward accumulating tokens until it
// reaches at least min tokens, capped at max, and returns them in original
// order. If even the single last paragraph exceeds max, it is still
// returned alone (overlap degrades gracefully rather than dropping context).
func selectOverlapTail(paragraphs []string, min, max int) []string {
	var tail []string
	total := 0
	for i := len(paragraphs) - 1; i >= 0; i-- {
		t := EstimateTokens(paragraphs[i])
		if total > 0 && total+t > max {
			break
		}
		tail = append([]string{paragraphs[i]}, tail...)
		total += t
		if total >= min {
			break
		}
	}
	return tail
}
