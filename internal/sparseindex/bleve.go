package sparseindex

import (
	"context"
	"fmt"
	"os"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/lang/cjk"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/token/stop"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/analysis/tokenmap"
	"github.com/blevesearch/bleve/v2/mapping"
)

// clauseAnalyzer is the custom analyzer for clause text: the CJK bigram
// pipeline (unicode tokenizer, lowercase, width normalization, Han bigrams)
// with a stop-token filter appended. Bleve's stock CJK analyzer does not
// filter stopwords; clause text is dense with particles that would
// otherwise dominate BM25 term frequencies.
const clauseAnalyzer = "clause_cjk"

// BleveIndex implements SparseIndex over Bleve with the clause analyzer on
// title and content; the id field stays a keyword field so exact lookups
// never go through the analyzer. Because the same analyzer is bound to the
// fields, match queries apply the stop list at query time too.
type BleveIndex struct {
	index bleve.Index
}

func clauseIndexMapping() (*mapping.IndexMappingImpl, error) {
	im := bleve.NewIndexMapping()
	if err := im.AddCustomTokenMap("clause_stop_words", map[string]interface{}{
		"type":   tokenmap.Name,
		"tokens": stopTokens,
	}); err != nil {
		return nil, fmt.Errorf("register stop token map: %w", err)
	}
	if err := im.AddCustomTokenFilter("clause_stop_filter", map[string]interface{}{
		"type":           stop.Name,
		"stop_token_map": "clause_stop_words",
	}); err != nil {
		return nil, fmt.Errorf("register stop filter: %w", err)
	}
	// Stop filtering runs after bigram formation so both function-word
	// bigrams and isolated particles are dropped.
	if err := im.AddCustomAnalyzer(clauseAnalyzer, map[string]interface{}{
		"type":      custom.Name,
		"tokenizer": unicode.Name,
		"token_filters": []interface{}{
			lowercase.Name,
			cjk.WidthName,
			cjk.BigramName,
			"clause_stop_filter",
		},
	}); err != nil {
		return nil, fmt.Errorf("register clause analyzer: %w", err)
	}

	docMapping := bleve.NewDocumentMapping()

	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = clauseAnalyzer
	docMapping.AddFieldMappingsAt("content", textFieldMapping)
	docMapping.AddFieldMappingsAt("title", textFieldMapping)

	keywordFieldMapping := bleve.NewKeywordFieldMapping()
	docMapping.AddFieldMappingsAt("id", keywordFieldMapping)

	im.AddDocumentMapping("_default", docMapping)
	im.DefaultMapping = docMapping
	return im, nil
}

// NewBleveIndex creates or opens a Bleve index at path. If the path already
// exists, the existing index is reused (supporting incremental reindex);
// changing the mapping or stop list in code requires deleting the index
// directory to force a rebuild.
func NewBleveIndex(path string) (*BleveIndex, error) {
	if _, err := os.Stat(path); err == nil {
		index, err := bleve.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open bleve index: %w", err)
		}
		return &BleveIndex{index: index}, nil
	}

	im, err := clauseIndexMapping()
	if err != nil {
		return nil, err
	}
	index, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("create bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

func (b *BleveIndex) Index(_ context.Context, id string, doc Document) error {
	return b.index.Index(id, doc)
}

func (b *BleveIndex) Delete(_ context.Context, id string) error {
	return b.index.Delete(id)
}

// Search runs a title+content match query, boosting title hits 2x as a
// fixed, undocumented-but-stable heuristic (clause section titles are short
// and highly discriminative for keyword queries).
const titleBoost = 2.0

func (b *BleveIndex) Search(_ context.Context, query string, limit int) ([]Result, error) {
	titleQuery := bleve.NewMatchQuery(query)
	titleQuery.SetField("title")
	titleQuery.SetBoost(titleBoost)

	contentQuery := bleve.NewMatchQuery(query)
	contentQuery.SetField("content")

	disjunct := bleve.NewDisjunctionQuery(titleQuery, contentQuery)
	req := bleve.NewSearchRequest(disjunct)
	req.Size = limit

	res, err := b.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("bleve search: %w", err)
	}
	out := make([]Result, len(res.Hits))
	for i, hit := range res.Hits {
		out[i] = Result{ID: hit.ID, Score: hit.Score}
	}
	return out, nil
}

func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// IDs walks every document ID via a match-all query, used only by offline
// reindex-invariant checks.
func (b *BleveIndex) IDs(_ context.Context) ([]string, error) {
	count, err := b.index.DocCount()
	if err != nil {
		return nil, fmt.Errorf("doc count: %w", err)
	}
	req := bleve.NewSearchRequest(bleve.NewMatchAllQuery())
	req.Size = int(count)
	req.Fields = nil
	res, err := b.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("match-all search: %w", err)
	}
	out := make([]string, len(res.Hits))
	for i, hit := range res.Hits {
		out[i] = hit.ID
	}
	return out, nil
}

func (b *BleveIndex) Close() error {
	return b.index.Close()
}
