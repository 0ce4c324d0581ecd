package catalog

import (
	"context"
	"sort"
	"strings"

	"github.com/clausevault/clausevault/internal/models"
)

// minSimilarity is the floor below which a candidate is not considered a
// name match at all.
const minSimilarity = 0.2

// FindProductsByName fuzzy-matches products by name: substring containment
// plus normalized edit distance, optionally narrowed to a company. Results
// are ordered by descending similarity; scores below minSimilarity are
// dropped.
func (c *Catalog) FindProductsByName(ctx context.Context, name, company string, topK int) ([]*models.ProductInfo, error) {
	if topK <= 0 {
		topK = 5
	}
	products, err := c.ListProducts(ctx)
	if err != nil {
		return nil, err
	}

	var infos []*models.ProductInfo
	for _, p := range products {
		if company != "" && p.Company != company {
			continue
		}
		sim := NameSimilarity(name, p.Name)
		if sim < minSimilarity {
			continue
		}
		publish := ""
		if !p.PublishTime.IsZero() {
			publish = p.PublishTime.Format("2006-01-02")
		}
		infos = append(infos, &models.ProductInfo{
			ProductID:   p.ID,
			ProductCode: p.ProductCode,
			ProductName: p.Name,
			Company:     p.Company,
			Category:    p.Category,
			PublishTime: publish,
			Similarity:  sim,
		})
	}

	sort.SliceStable(infos, func(i, j int) bool {
		return infos[i].Similarity > infos[j].Similarity
	})
	if len(infos) > topK {
		infos = infos[:topK]
	}
	return infos, nil
}

// NameSimilarity scores how well query matches name in [0,1]. A substring
// hit scores by coverage (query length over name length, floored at 0.5 so
// short queries against long official names still rank above pure
// edit-distance matches); otherwise 1 - dist/maxLen.
func NameSimilarity(query, name string) float64 {
	if query == "" || name == "" {
		return 0
	}
	if query == name {
		return 1
	}
	qRunes := len([]rune(query))
	nRunes := len([]rune(name))
	if strings.Contains(name, query) {
		coverage := float64(qRunes) / float64(nRunes)
		if coverage < 0.5 {
			coverage = 0.5
		}
		return coverage
	}
	maxLen := qRunes
	if nRunes > maxLen {
		maxLen = nRunes
	}
	dist := levenshteinDistance(query, name)
	sim := 1 - float64(dist)/float64(maxLen)
	if sim < 0 {
		sim = 0
	}
	return sim
}

// levenshteinDistance is the minimum number of single-rune edits
// (insertions, deletions, or substitutions) to change a into b. Rune-based
// so CJK product names are compared per character, not per byte. One
// rolling row plus a diagonal carry; the row is allocated for the shorter
// string, which for product-name matching is almost always the query.
func levenshteinDistance(a, b string) int {
	if a == b {
		return 0
	}
	long, short := []rune(a), []rune(b)
	if len(long) < len(short) {
		long, short = short, long
	}
	if len(short) == 0 {
		return len(long)
	}

	row := make([]int, len(short)+1)
	for j := range row {
		row[j] = j
	}
	for i := 1; i <= len(long); i++ {
		diag := row[0] // row[i-1][j-1] before this row overwrites it
		row[0] = i
		for j := 1; j <= len(short); j++ {
			above := row[j]
			best := diag // substitution (free when runes match)
			if long[i-1] != short[j-1] {
				best++
			}
			if above+1 < best {
				best = above + 1 // deletion from the longer string
			}
			if row[j-1]+1 < best {
				best = row[j-1] + 1 // insertion
			}
			row[j] = best
			diag = above
		}
	}
	return row[len(short)]
}
