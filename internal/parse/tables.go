package parse

import "strings"

type parsedTable struct {
	Headers []string
	Rows    [][]string
}

// minTableRows is the minimum number of consistently-shaped rows required
// before a run of lines is treated as a table rather than prose.
const minTableRows = 2

// tryParseInlineTable looks for a run of lines that share a consistent
// column count when split on runs of two or more spaces (the layout PDF
// text extraction naturally produces for tabular content once columns are
// reading-order restored). It returns the parsed table and how many lines
// it consumed, or (nil, 0) if lines[0] doesn't start a table.
func tryParseInlineTable(lines []line) (*parsedTable, int) {
	if len(lines) == 0 {
		return nil, 0
	}
	first := splitColumns(lines[0].text)
	if len(first) < 2 {
		return nil, 0
	}

	rows := [][]string{first}
	consumed := 1
	for consumed < len(lines) {
		cols := splitColumns(lines[consumed].text)
		if len(cols) != len(first) {
			break
		}
		rows = append(rows, cols)
		consumed++
	}
	if len(rows) < minTableRows {
		return nil, 0
	}

	headers := rows[0]
	body := rows[1:]
	return &parsedTable{Headers: headers, Rows: body}, consumed
}

// splitColumns splits a line on runs of 2+ spaces or tab characters, the
// separator PDF table cells are rendered with once columns are aligned.
func splitColumns(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r == '\t'
	})
	if len(fields) > 1 {
		return trimAll(fields)
	}
	// fall back to runs of 2+ spaces
	var cols []string
	var cur strings.Builder
	spaceRun := 0
	for _, r := range text {
		if r == ' ' {
			spaceRun++
			if spaceRun == 2 {
				if cur.Len() > 0 {
					cols = append(cols, cur.String())
					cur.Reset()
				}
			} else if spaceRun < 2 {
				cur.WriteRune(r)
			}
			continue
		}
		spaceRun = 0
		cur.WriteRune(r)
	}
	if cur.Len() > 0 {
		cols = append(cols, cur.String())
	}
	return trimAll(cols)
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		t := strings.TrimSpace(s)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
