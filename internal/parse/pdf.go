package parse

import (
	"bytes"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/clausevault/clausevault/internal/clauseerr"
)

// headingPattern recognizes a numbered Chinese-policy heading such as
// "1.2.6 身故保险金" at the start of a line.
var headingPattern = regexp.MustCompile(`^(\d+(\.\d+){0,4})\s*[\.、]?\s*(.{0,40})$`)

// columnGapFactor is how much wider than the median inter-run gap a
// horizontal gap must be to be treated as a column boundary.
const columnGapFactor = 3.0

// ParsePDF reads the PDF at path and returns its ordered element sequence.
// It attempts an empty-password decrypt once for locked documents before
// failing with clauseerr.ParseFailure.
func ParsePDF(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, clauseerr.New(clauseerr.ParseFailure, "parse.ParsePDF", err)
	}
	return ParsePDFBytes(data)
}

// ParsePDFBytes parses PDF content already held in memory.
func ParsePDFBytes(data []byte) (*Document, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		reader, err = pdf.NewReaderEncrypted(bytes.NewReader(data), int64(len(data)), func() string { return "" })
		if err != nil {
			return nil, clauseerr.New(clauseerr.ParseFailure, "parse.ParsePDFBytes", fmt.Errorf("open (incl. empty-password retry): %w", err))
		}
	}

	doc := &Document{}
	numPages := reader.NumPage()
	for pageIndex := 1; pageIndex <= numPages; pageIndex++ {
		page := reader.Page(pageIndex)
		if page.V.IsNull() {
			continue
		}
		lines, err := orderedLinesForPage(page)
		if err != nil {
			// fall back to the page's own reading order via plain text
			text, perr := page.GetPlainText(nil)
			if perr != nil {
				continue
			}
			lines = splitPlainTextLines(text)
		}
		doc.Elements = append(doc.Elements, elementsFromLines(lines, pageIndex)...)
	}
	if len(doc.Elements) == 0 {
		return nil, clauseerr.New(clauseerr.ParseFailure, "parse.ParsePDFBytes", fmt.Errorf("no extractable text"))
	}
	return doc, nil
}

type textRun struct {
	X, Y float64
	S    string
}

// line is one reconstructed reading-order line: the concatenated text runs
// that share a Y band, read left to right within their column.
type line struct {
	text string
}

// orderedLinesForPage restores the multi-column reading order of a page by
// clustering glyph runs into columns by X position, then reading each
// column top-to-bottom before moving to the next column to the right. This
// matters because naive stream order breaks down on two-column clause
// layouts.
func orderedLinesForPage(page pdf.Page) ([]line, error) {
	content := page.Content()
	if len(content.Text) == 0 {
		return nil, fmt.Errorf("no text runs")
	}
	runs := make([]textRun, 0, len(content.Text))
	for _, t := range content.Text {
		s := t.S
		if strings.TrimSpace(s) == "" {
			continue
		}
		runs = append(runs, textRun{X: t.X, Y: t.Y, S: s})
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("no non-blank text runs")
	}

	columns := splitIntoColumns(runs)
	var lines []line
	for _, col := range columns {
		lines = append(lines, linesFromColumn(col)...)
	}
	return lines, nil
}

// splitIntoColumns detects at most two reading columns by looking for a
// single dominant horizontal gap in the distribution of run X coordinates.
// Pages that don't exhibit a dominant gap are treated as single-column.
func splitIntoColumns(runs []textRun) [][]textRun {
	xs := make([]float64, len(runs))
	for i, r := range runs {
		xs[i] = r.X
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)

	var gaps []float64
	for i := 1; i < len(sorted); i++ {
		gaps = append(gaps, sorted[i]-sorted[i-1])
	}
	if len(gaps) < 2 {
		return [][]textRun{runs}
	}
	medianGap := median(gaps)

	splitAt := -1.0
	maxGap := 0.0
	for i, g := range gaps {
		if g > medianGap*columnGapFactor && g > maxGap {
			maxGap = g
			splitAt = (sorted[i] + sorted[i+1]) / 2
		}
	}
	if splitAt < 0 {
		return [][]textRun{runs}
	}

	var left, right []textRun
	for _, r := range runs {
		if r.X < splitAt {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return [][]textRun{runs}
	}
	return [][]textRun{left, right}
}

func median(vals []float64) float64 {
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// linesFromColumn groups a column's runs into lines by Y band (PDF space is
// bottom-up, so higher Y means earlier in reading order) then concatenates
// runs left to right within a line.
func linesFromColumn(runs []textRun) []line {
	sort.SliceStable(runs, func(i, j int) bool {
		if yBand(runs[i].Y) != yBand(runs[j].Y) {
			return runs[i].Y > runs[j].Y
		}
		return runs[i].X < runs[j].X
	})

	var lines []line
	var cur strings.Builder
	var lastY float64
	first := true
	for _, r := range runs {
		if first {
			cur.WriteString(r.S)
			lastY = r.Y
			first = false
			continue
		}
		if yBand(r.Y) != yBand(lastY) {
			lines = append(lines, line{text: strings.TrimSpace(cur.String())})
			cur.Reset()
		} else if cur.Len() > 0 && !strings.HasSuffix(cur.String(), " ") {
			cur.WriteByte(' ')
		}
		cur.WriteString(r.S)
		lastY = r.Y
	}
	if cur.Len() > 0 {
		lines = append(lines, line{text: strings.TrimSpace(cur.String())})
	}
	return lines
}

// yBand buckets a Y coordinate to a coarse band so glyphs on the same visual
// line (but with small per-glyph jitter) land together.
func yBand(y float64) int {
	const bandHeight = 2.0
	return int(y / bandHeight)
}

func splitPlainTextLines(text string) []line {
	var lines []line
	for _, raw := range strings.Split(text, "\n") {
		t := strings.TrimSpace(raw)
		if t != "" {
			lines = append(lines, line{text: t})
		}
	}
	return lines
}

// elementsFromLines walks the reconstructed lines of a page and classifies
// each into a Heading, Paragraph, or (start of) Table element. Table
// detection is line-shape based: tryParseInlineTable in tables.go splits
// the reconstructed lines into cells.
func elementsFromLines(lines []line, pageIndex int) []Element {
	var elements []Element
	i := 0
	for i < len(lines) {
		text := lines[i].text
		if text == "" {
			i++
			continue
		}
		if m := headingPattern.FindStringSubmatch(text); m != nil && looksLikeHeading(text) {
			level := strings.Count(m[1], ".") + 1
			if level > 5 {
				level = 5
			}
			elements = append(elements, Element{Kind: KindHeading, Page: pageIndex, Level: level, Text: text})
			i++
			continue
		}
		if tbl, consumed := tryParseInlineTable(lines[i:]); tbl != nil {
			elements = append(elements, Element{Kind: KindTable, Page: pageIndex, Headers: tbl.Headers, Rows: tbl.Rows})
			i += consumed
			continue
		}
		elements = append(elements, Element{Kind: KindParagraph, Page: pageIndex, Text: text})
		i++
	}
	return elements
}

// looksLikeHeading guards against false positives like a rate table row
// that happens to start with digits: a heading line is short and does not
// end with a delimiter-separated numeric run (which indicates a table row).
func looksLikeHeading(text string) bool {
	if len(text) > 60 {
		return false
	}
	fields := strings.Fields(text)
	numericFields := 0
	for _, f := range fields {
		if isMostlyNumeric(f) {
			numericFields++
		}
	}
	return numericFields <= 1
}

func isMostlyNumeric(s string) bool {
	digits := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	return len(s) > 0 && float64(digits)/float64(len([]rune(s))) > 0.5
}
