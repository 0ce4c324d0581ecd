package chunk

import (
	"regexp"
	"strings"
)

type blockKind int

const (
	blockHeading blockKind = iota
	blockParagraph
	blockTable
)

type block struct {
	kind    blockKind
	level   int      // heading only
	text    string   // heading/paragraph text
	headers []string // table only
	rows    [][]string
}

var (
	headingLinePattern = regexp.MustCompile(`^(#{1,5})\s+(.*)$`)
	tableRowPattern    = regexp.MustCompile(`^\|(.+)\|\s*$`)
	tableSepPattern    = regexp.MustCompile(`^\|[\s:|-]+\|\s*$`)
)

// parseBlocks turns rendered Markdown into a flat sequence of heading,
// paragraph, and table blocks in document order. GFM pipe tables are
// collected whole; everything else (including rate-table placeholder
// lines, which remain literal text) is treated as paragraph content,
// paragraphs being split on blank lines.
func parseBlocks(markdown string) []block {
	lines := strings.Split(markdown, "\n")
	var blocks []block
	var para []string

	flushPara := func() {
		if len(para) == 0 {
			return
		}
		text := strings.TrimSpace(strings.Join(para, "\n"))
		if text != "" {
			blocks = append(blocks, block{kind: blockParagraph, text: text})
		}
		para = para[:0]
	}

	i := 0
	for i < len(lines) {
		line := lines[i]
		trimmed := strings.TrimSpace(line)

		if m := headingLinePattern.FindStringSubmatch(line); m != nil {
			flushPara()
			blocks = append(blocks, block{kind: blockHeading, level: len(m[1]), text: strings.TrimSpace(m[2])})
			i++
			continue
		}

		if tableRowPattern.MatchString(trimmed) && i+1 < len(lines) && tableSepPattern.MatchString(strings.TrimSpace(lines[i+1])) {
			flushPara()
			headers := splitPipeRow(trimmed)
			j := i + 2
			var rows [][]string
			for j < len(lines) && tableRowPattern.MatchString(strings.TrimSpace(lines[j])) {
				rows = append(rows, splitPipeRow(strings.TrimSpace(lines[j])))
				j++
			}
			blocks = append(blocks, block{kind: blockTable, headers: headers, rows: rows})
			i = j
			continue
		}

		if trimmed == "" {
			flushPara()
			i++
			continue
		}

		para = append(para, line)
		i++
	}
	flushPara()
	return blocks
}

func splitPipeRow(line string) []string {
	trimmed := strings.Trim(line, "|")
	parts := strings.Split(trimmed, "|")
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = strings.TrimSpace(p)
	}
	return out
}

// rateTablePlaceholder matches `[rate-table: uuid]` placeholders retained
// verbatim in chunk content; its captured uuid is appended to table_refs.
var rateTablePlaceholder = regexp.MustCompile(`\[rate-table:\s*([0-9a-fA-F-]{36})\]`)

func extractTableRefs(text string) []string {
	matches := rateTablePlaceholder.FindAllStringSubmatch(text, -1)
	if matches == nil {
		return nil
	}
	refs := make([]string, 0, len(matches))
	for _, m := range matches {
		refs = append(refs, m[1])
	}
	return refs
}
