package docid

import (
	"strings"
	"testing"
)

func TestFromPath(t *testing.T) {
	a := FromPath("/data/raw/平安人寿/FUYAO-2023/clause.pdf")
	b := FromPath("/data/raw/平安人寿/FUYAO-2023/clause.pdf")
	if a != b {
		t.Error("same path should yield same ID")
	}
	if !strings.HasPrefix(a, "doc:") {
		t.Errorf("ID %q should carry the doc: prefix", a)
	}
	if FromPath("/data/raw/other.pdf") == a {
		t.Error("different paths should yield different IDs")
	}
	// Clean-equivalent paths resolve to the same document.
	if FromPath("/data/raw/./平安人寿/FUYAO-2023/clause.pdf") != a {
		t.Error("path cleaning should normalize equivalent paths")
	}
}
