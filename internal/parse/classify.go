package parse

import "strings"

// rateHeaderKeywords are header tokens that, combined with a majority-numeric
// body, mark a table as a rate table.
var rateHeaderKeywords = []string{
	"age", "年龄", "premium", "保费", "rate", "费率",
	"cash value", "现金价值", "benefit", "利益",
}

const (
	rateNumericRatioWithKeyword    = 0.5
	rateNumericRatioWithoutKeyword = 0.8
)

// ClassifyTable reports whether headers+rows should be classified as a rate
// table: header tokens matching a rate keyword AND numeric-cell ratio > 0.5,
// OR numeric-cell ratio > 0.8 regardless of headers.
func ClassifyTable(headers []string, rows [][]string) bool {
	ratio := numericCellRatio(rows)
	if hasRateHeaderKeyword(headers) && ratio > rateNumericRatioWithKeyword {
		return true
	}
	return ratio > rateNumericRatioWithoutKeyword
}

func hasRateHeaderKeyword(headers []string) bool {
	for _, h := range headers {
		lower := strings.ToLower(h)
		for _, kw := range rateHeaderKeywords {
			if strings.Contains(lower, strings.ToLower(kw)) || strings.Contains(h, kw) {
				return true
			}
		}
	}
	return false
}

func numericCellRatio(rows [][]string) float64 {
	total := 0
	numeric := 0
	for _, row := range rows {
		for _, cell := range row {
			total++
			if isNumericCell(cell) {
				numeric++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(numeric) / float64(total)
}

// isNumericCell treats a cell as numeric if, after stripping common
// thousands separators, currency symbols and percent signs, it parses as a
// number.
func isNumericCell(cell string) bool {
	s := strings.TrimSpace(cell)
	s = strings.NewReplacer(",", "", "，", "", "¥", "", "%", "", "％", "", " ", "").Replace(s)
	if s == "" {
		return false
	}
	sawDigit := false
	sawDot := false
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9':
			sawDigit = true
		case r == '.' && !sawDot:
			sawDot = true
		case (r == '-' || r == '+') && i == 0:
			// sign, fine
		default:
			return false
		}
	}
	return sawDigit
}
