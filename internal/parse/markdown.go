package parse

import (
	"fmt"
	"strings"

	"github.com/clausevault/clausevault/internal/models"
)

// Options configures rendering of a parsed Document to Markdown with rate
// tables extracted to sidecar CSVs.
type Options struct {
	ExportDir              string
	TableSeparationEnabled bool // ENABLE_TABLE_SEPARATION, default true
	SourceDocumentID       string
	SourcePDFPath          string
	ProductCode            string
}

// Render walks doc's elements and produces GitHub-flavored Markdown:
// headings map to `#`..`#####`, ordinary tables render inline, rate tables
// are extracted to sidecar CSVs and replaced by a `[rate-table: {uuid}]`
// placeholder, and figures are dropped with a comment marker.
func Render(doc *Document, opts Options) (markdown string, tables []*models.RateTable, err error) {
	var sb strings.Builder
	for _, el := range doc.Elements {
		switch el.Kind {
		case KindHeading:
			sb.WriteString(strings.Repeat("#", el.Level))
			sb.WriteString(" ")
			sb.WriteString(el.Text)
			sb.WriteString("\n\n")
		case KindParagraph:
			sb.WriteString(el.Text)
			sb.WriteString("\n\n")
		case KindFigure:
			sb.WriteString(fmt.Sprintf("<!-- figure: %s -->\n\n", el.Caption))
		case KindTable:
			isRate := opts.TableSeparationEnabled && ClassifyTable(el.Headers, el.Rows)
			if isRate {
				rt, werr := WriteRateTableSidecar(opts.ExportDir, opts.SourceDocumentID, opts.SourcePDFPath, opts.ProductCode, el.Page, el.Headers, el.Rows, rateConfidence(el.Headers, el.Rows))
				if werr != nil {
					return "", nil, werr
				}
				tables = append(tables, rt)
				sb.WriteString(fmt.Sprintf("[rate-table: %s]\n\n", rt.UUID))
			} else {
				sb.WriteString(renderMarkdownTable(el.Headers, el.Rows))
				sb.WriteString("\n\n")
			}
		}
	}
	return strings.TrimRight(sb.String(), "\n") + "\n", tables, nil
}

func renderMarkdownTable(headers []string, rows [][]string) string {
	var sb strings.Builder
	sb.WriteString("| ")
	sb.WriteString(strings.Join(headers, " | "))
	sb.WriteString(" |\n|")
	for range headers {
		sb.WriteString(" --- |")
	}
	sb.WriteString("\n")
	for _, row := range rows {
		sb.WriteString("| ")
		sb.WriteString(strings.Join(padRow(row, len(headers)), " | "))
		sb.WriteString(" |\n")
	}
	return sb.String()
}

func padRow(row []string, n int) []string {
	if len(row) >= n {
		return row[:n]
	}
	out := append([]string(nil), row...)
	for len(out) < n {
		out = append(out, "")
	}
	return out
}

// rateConfidence is recorded in the sidecar metadata for auditability,
// since the classifier's constants may need tuning against labeled
// samples; it is simply the numeric-cell ratio that drove the decision.
func rateConfidence(headers []string, rows [][]string) float64 {
	return numericCellRatio(rows)
}
