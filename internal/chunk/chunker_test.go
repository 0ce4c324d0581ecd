package chunk

import (
	"strings"
	"testing"
)

func testContext() Context {
	return Context{DocumentID: "doc-1", Company: "平安人寿", ProductCode: "P001", ProductName: "福耀年金", DocType: "clause"}
}

func TestChunk_BreadcrumbAndSectionPath(t *testing.T) {
	md := "# 1 保险责任\n\n## 1.1 身故保险金\n\n在本合同保险期间内，若被保险人身故，我们按约定给付身故保险金。\n"
	chunks, err := New(DefaultConfig()).Chunk(md, testContext())
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	ch := chunks[0]
	if ch.SectionPath != "1 保险责任 > 1.1 身故保险金" {
		t.Errorf("unexpected section_path: %q", ch.SectionPath)
	}
	if !strings.HasPrefix(ch.Content, "[section: 1 保险责任 > 1.1 身故保险金]") {
		t.Errorf("missing breadcrumb prefix: %q", ch.Content)
	}
	if ch.SectionTitle != "1.1 身故保险金" {
		t.Errorf("unexpected section_title: %q", ch.SectionTitle)
	}
	if ch.Level != 2 {
		t.Errorf("expected level 2, got %d", ch.Level)
	}
}

func TestChunk_TableIsOwnChunkNeverMergedWithProse(t *testing.T) {
	md := "# 1 现金价值表\n\n以下为现金价值表：\n\n| 年度 | 现金价值 |\n| --- | --- |\n| 1 | 100 |\n| 2 | 200 |\n\n说明：以上仅供参考。\n"
	chunks, err := New(DefaultConfig()).Chunk(md, testContext())
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks (prose, table, prose), got %d", len(chunks))
	}
	if !chunks[1].IsTable {
		t.Fatalf("expected middle chunk to be a table chunk")
	}
	if chunks[0].IsTable || chunks[2].IsTable {
		t.Errorf("prose chunks incorrectly marked as tables")
	}
	if len(chunks[1].TableData) != 3 { // header + 2 rows
		t.Errorf("expected 3 table_data rows (header+2), got %d", len(chunks[1].TableData))
	}
	// Table chunks carry the breadcrumb prefix exactly like text chunks.
	if !strings.HasPrefix(chunks[1].Content, "[section: 1 现金价值表]") {
		t.Errorf("table chunk missing breadcrumb prefix: %q", chunks[1].Content)
	}
}

func TestChunk_IndexIsSequentialAcrossTextAndTable(t *testing.T) {
	md := "# 1 条款\n\n段落一。\n\n| a | b |\n| --- | --- |\n| 1 | 2 |\n\n段落二。\n"
	chunks, _ := New(DefaultConfig()).Chunk(md, testContext())
	for i, ch := range chunks {
		if ch.ChunkIndex != i {
			t.Errorf("chunk %d has chunk_index %d", i, ch.ChunkIndex)
		}
	}
}

func TestChunk_RateTablePlaceholderTracked(t *testing.T) {
	md := "# 1 费率\n\n本条款对应费率详见下表。\n\n[rate-table: 11111111-1111-1111-1111-111111111111]\n"
	chunks, err := New(DefaultConfig()).Chunk(md, testContext())
	if err != nil {
		t.Fatal(err)
	}
	var found bool
	for _, ch := range chunks {
		for _, ref := range ch.TableRefs {
			if ref == "11111111-1111-1111-1111-111111111111" {
				found = true
			}
		}
	}
	if !found {
		t.Error("expected rate-table placeholder uuid to be tracked in table_refs")
	}
}

func TestChunk_DeterministicIDFromDocumentAndIndex(t *testing.T) {
	md := "# 1 条款\n\n内容。\n"
	chunks1, _ := New(DefaultConfig()).Chunk(md, testContext())
	chunks2, _ := New(DefaultConfig()).Chunk(md, testContext())
	if chunks1[0].ID != chunks2[0].ID {
		t.Errorf("expected deterministic chunk id, got %q vs %q", chunks1[0].ID, chunks2[0].ID)
	}
}

func TestSplitProse_OverlapBetweenChunks(t *testing.T) {
	c := New(Config{TargetTokens: 10, MaxTokens: 20, OverlapMinToken: 3, OverlapMaxToken: 8})
	paragraphs := []string{
		strings.Repeat("一二三四五 ", 10),
		strings.Repeat("六七八九十 ", 10),
		strings.Repeat("十一十二十三 ", 10),
	}
	chunks := c.splitProse(paragraphs)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks from oversized paragraphs, got %d", len(chunks))
	}
	for i := 1; i < len(chunks); i++ {
		if !strings.HasPrefix(chunks[i], paragraphs[i-1]) {
			t.Errorf("chunk %d does not open with the previous chunk's last paragraph: %q", i, chunks[i])
		}
	}
}

func TestChunk_ValidateInvariantsHold(t *testing.T) {
	md := "# 1 条款\n\n内容文本。\n"
	chunks, _ := New(DefaultConfig()).Chunk(md, testContext())
	for _, ch := range chunks {
		if err := ch.Validate(); err != nil {
			t.Errorf("chunk failed validation: %v", err)
		}
	}
}
