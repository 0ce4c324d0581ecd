package parse

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRender_HeadingsAndParagraph(t *testing.T) {
	doc := &Document{Elements: []Element{
		{Kind: KindHeading, Level: 1, Text: "1 保险责任"},
		{Kind: KindParagraph, Text: "在本合同保险期间内..."},
		{Kind: KindHeading, Level: 2, Text: "1.1 身故保险金"},
	}}
	md, tables, err := Render(doc, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(tables) != 0 {
		t.Fatalf("expected no rate tables, got %d", len(tables))
	}
	if !strings.Contains(md, "# 1 保险责任") {
		t.Errorf("missing h1: %q", md)
	}
	if !strings.Contains(md, "## 1.1 身故保险金") {
		t.Errorf("missing h2: %q", md)
	}
}

func TestRender_OrdinaryTableInline(t *testing.T) {
	doc := &Document{Elements: []Element{
		{Kind: KindTable, Headers: []string{"条款", "说明"}, Rows: [][]string{{"1.1", "本合同的构成"}}},
	}}
	md, tables, err := Render(doc, Options{TableSeparationEnabled: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(tables) != 0 {
		t.Fatalf("expected ordinary table to stay inline, got %d sidecars", len(tables))
	}
	if !strings.Contains(md, "| 条款 | 说明 |") {
		t.Errorf("expected GFM table header, got %q", md)
	}
}

func TestRender_RateTableExtractedToSidecar(t *testing.T) {
	dir := t.TempDir()
	doc := &Document{Elements: []Element{
		{Kind: KindTable, Page: 3, Headers: []string{"年龄", "费率"}, Rows: [][]string{{"30", "0.012"}, {"40", "0.018"}}},
	}}
	opts := Options{
		ExportDir:              dir,
		TableSeparationEnabled: true,
		SourceDocumentID:       "doc-1",
		SourcePDFPath:          "raw/x.pdf",
		ProductCode:            "P001",
	}
	md, tables, err := Render(doc, opts)
	if err != nil {
		t.Fatal(err)
	}
	if len(tables) != 1 {
		t.Fatalf("expected 1 rate table, got %d", len(tables))
	}
	rt := tables[0]
	if !strings.Contains(md, "[rate-table: "+rt.UUID+"]") {
		t.Errorf("markdown missing placeholder: %q", md)
	}
	headers, rows, err := ReadRateTableCSV(rt.CSVPath)
	if err != nil {
		t.Fatal(err)
	}
	if len(headers) != 2 || len(rows) != 2 {
		t.Fatalf("round-trip mismatch: headers=%v rows=%v", headers, rows)
	}
	metaPath := filepath.Join(dir, "metadata.json")
	if _, err := os.Stat(metaPath); err != nil {
		t.Errorf("expected metadata.json to exist: %v", err)
	}
}
