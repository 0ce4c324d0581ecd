package chunk

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/clausevault/clausevault/internal/models"
)

// Config tunes the split policy. Defaults: target ~750 tokens, grow to
// preserve a logical unit up to 2048, overlap 100-200 tokens (~20% of
// target) between consecutive chunks in the same region.
type Config struct {
	TargetTokens    int
	MaxTokens       int
	OverlapMinToken int
	OverlapMaxToken int
}

// DefaultConfig returns the default split policy.
func DefaultConfig() Config {
	return Config{TargetTokens: 750, MaxTokens: 2048, OverlapMinToken: 100, OverlapMaxToken: 200}
}

// Context carries the PolicyDocument-level fields every chunk inherits.
type Context struct {
	DocumentID  string
	Company     string
	ProductCode string
	ProductName string
	DocType     string
}

// Chunker splits rendered Markdown into PolicyChunks by walking the
// heading tree, so each chunk stays one logical unit with its heading
// context attached.
type Chunker struct {
	cfg    Config
	logger *zap.Logger
}

// Option configures a Chunker.
type Option func(*Chunker)

// WithLogger attaches a zap logger; nil-safe if never set.
func WithLogger(l *zap.Logger) Option {
	return func(c *Chunker) { c.logger = l }
}

// New builds a Chunker with cfg (use DefaultConfig() for the defaults).
func New(cfg Config, opts ...Option) *Chunker {
	c := &Chunker{cfg: cfg}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type headingFrame struct {
	level int
	text  string
}

// regionItem is one contiguous run of body content belonging to the heading
// stack active when it was collected: either a run of paragraphs or a
// single table block, in document order.
type regionItem struct {
	isTable    bool
	paragraphs []string
	table      block
}

// Chunk splits markdown into ordered PolicyChunks carrying ctx's document
// identity. chunk_index is assigned in document reading order across both
// text and table chunks; a table block always becomes its own chunk and is
// never merged with surrounding prose.
func (c *Chunker) Chunk(markdown string, ctx Context) ([]*models.PolicyChunk, error) {
	blocks := parseBlocks(markdown)

	var out []*models.PolicyChunk
	index := 0
	var stack []headingFrame
	var regionItems []regionItem
	var paraBuf []string

	flushParaBuf := func() {
		if len(paraBuf) > 0 {
			regionItems = append(regionItems, regionItem{paragraphs: append([]string(nil), paraBuf...)})
			paraBuf = nil
		}
	}
	flushRegionItems := func() {
		for _, item := range regionItems {
			if item.isTable {
				out = append(out, c.buildTableChunk(ctx, stack, item.table, index))
				index++
				continue
			}
			for _, text := range c.splitProse(item.paragraphs) {
				out = append(out, c.buildTextChunk(ctx, stack, text, index))
				index++
			}
		}
		regionItems = nil
	}

	for _, b := range blocks {
		switch b.kind {
		case blockHeading:
			flushParaBuf()
			flushRegionItems()
			for len(stack) > 0 && stack[len(stack)-1].level >= b.level {
				stack = stack[:len(stack)-1]
			}
			stack = append(stack, headingFrame{level: b.level, text: b.text})
		case blockParagraph:
			paraBuf = append(paraBuf, b.text)
		case blockTable:
			flushParaBuf()
			regionItems = append(regionItems, regionItem{isTable: true, table: b})
		}
	}
	flushParaBuf()
	flushRegionItems()

	return out, nil
}

func breadcrumb(stack []headingFrame) string {
	parts := make([]string, len(stack))
	for i, f := range stack {
		parts[i] = f.text
	}
	return strings.Join(parts, " > ")
}

func stackTop(stack []headingFrame) (level int, title string) {
	if len(stack) == 0 {
		return 1, ""
	}
	top := stack[len(stack)-1]
	return clipLevel(top.level), top.text
}

func (c *Chunker) buildTextChunk(ctx Context, stack []headingFrame, text string, index int) *models.PolicyChunk {
	path := breadcrumb(stack)
	content := text
	if path != "" {
		content = fmt.Sprintf("[section: %s]\n\n%s", path, text)
	}
	level, title := stackTop(stack)
	return &models.PolicyChunk{
		ID:           fmt.Sprintf("%s_%04d", ctx.DocumentID, index),
		DocumentID:   ctx.DocumentID,
		ChunkIndex:   index,
		Content:      content,
		Company:      ctx.Company,
		ProductCode:  ctx.ProductCode,
		ProductName:  ctx.ProductName,
		DocType:      ctx.DocType,
		SectionTitle: title,
		Level:        level,
		SectionPath:  path,
		Category:     models.CategoryGeneral,
		TableRefs:    extractTableRefs(content),
	}
}

func (c *Chunker) buildTableChunk(ctx Context, stack []headingFrame, tbl block, index int) *models.PolicyChunk {
	path := breadcrumb(stack)
	content := renderTableAsText(tbl)
	if path != "" {
		content = fmt.Sprintf("[section: %s]\n\n%s", path, content)
	}
	level, title := stackTop(stack)

	data := make([]models.TableRow, 0, len(tbl.rows)+1)
	data = append(data, models.TableRow(tbl.headers))
	for _, r := range tbl.rows {
		data = append(data, models.TableRow(r))
	}
	return &models.PolicyChunk{
		ID:           fmt.Sprintf("%s_%04d", ctx.DocumentID, index),
		DocumentID:   ctx.DocumentID,
		ChunkIndex:   index,
		Content:      content,
		Company:      ctx.Company,
		ProductCode:  ctx.ProductCode,
		ProductName:  ctx.ProductName,
		DocType:      ctx.DocType,
		SectionTitle: title,
		Level:        level,
		SectionPath:  path,
		Category:     models.CategoryGeneral,
		IsTable:      true,
		TableData:    data,
	}
}

func renderTableAsText(tbl block) string {
	var sb strings.Builder
	sb.WriteString(strings.Join(tbl.headers, " | "))
	for _, r := range tbl.rows {
		sb.WriteString("\n")
		sb.WriteString(strings.Join(r, " | "))
	}
	return sb.String()
}

func clipLevel(level int) int {
	if level < 1 {
		return 1
	}
	if level > 5 {
		return 5
	}
	return level
}
