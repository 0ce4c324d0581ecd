package parse

import "github.com/clausevault/clausevault/internal/models"

// ParseToMarkdown parses the PDF at pdfPath and renders it to Markdown,
// extracting rate tables to sidecar CSVs under opts.ExportDir. This is the
// entrypoint the offline ingestion pipeline calls.
func ParseToMarkdown(pdfPath string, opts Options) (markdown string, tables []*models.RateTable, err error) {
	doc, err := ParsePDF(pdfPath)
	if err != nil {
		return "", nil, err
	}
	opts.SourcePDFPath = pdfPath
	return Render(doc, opts)
}
