// Package parse converts a verified PDF into an ordered sequence of typed
// document elements, extracted tables, and a Markdown rendering with rate
// tables replaced by placeholders.
package parse

// ElementKind discriminates the typed document element stream.
type ElementKind string

const (
	KindHeading   ElementKind = "heading"
	KindParagraph ElementKind = "paragraph"
	KindTable     ElementKind = "table"
	KindFigure    ElementKind = "figure"
)

// Element is one node in the reading-order sequence produced by the parser.
// Exactly one of the kind-specific fields is meaningful, selected by Kind.
type Element struct {
	Kind ElementKind
	Page int

	// Heading
	Level int
	Text  string

	// Table
	Headers []string
	Rows    [][]string

	// Figure
	Caption string
}

// Document is the full ordered output of parsing one PDF.
type Document struct {
	Elements []Element
}
