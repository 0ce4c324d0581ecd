package parse

import "testing"

func TestClassifyTable_RateWithKeyword(t *testing.T) {
	headers := []string{"年龄", "费率"}
	rows := [][]string{
		{"30", "0.012"},
		{"40", "0.018"},
		{"50", "0.025"},
	}
	if !ClassifyTable(headers, rows) {
		t.Fatal("expected rate table classification")
	}
}

func TestClassifyTable_OrdinaryTable(t *testing.T) {
	headers := []string{"条款", "说明"}
	rows := [][]string{
		{"1.1", "本合同的构成"},
		{"1.2", "保险期间"},
	}
	if ClassifyTable(headers, rows) {
		t.Fatal("expected ordinary table classification")
	}
}

func TestClassifyTable_HighNumericRatioWithoutKeyword(t *testing.T) {
	headers := []string{"项目A", "项目B"}
	rows := [][]string{
		{"1", "2"},
		{"3", "4"},
		{"5", "6"},
	}
	if !ClassifyTable(headers, rows) {
		t.Fatal("expected rate classification from numeric ratio alone")
	}
}

func TestIsNumericCell(t *testing.T) {
	cases := map[string]bool{
		"30":      true,
		"0.012":   true,
		"1,234":   true,
		"-5":      true,
		"12%":     true,
		"¥1,000":  true,
		"保险期间": false,
		"":        false,
	}
	for input, want := range cases {
		if got := isNumericCell(input); got != want {
			t.Errorf("isNumericCell(%q) = %v, want %v", input, got, want)
		}
	}
}
