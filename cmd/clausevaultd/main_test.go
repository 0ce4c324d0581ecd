package main

import (
	"path/filepath"
	"reflect"
	"testing"

	"github.com/clausevault/clausevault/internal/clauseerr"
	"github.com/clausevault/clausevault/internal/embedding"
)

func TestSearchArgsReorder(t *testing.T) {
	tests := []struct {
		in   []string
		want []string
	}{
		{[]string{"保险期间", "-top-k", "3"}, []string{"-top-k", "3", "保险期间"}},
		{[]string{"-top-k", "3", "保险期间"}, []string{"-top-k", "3", "保险期间"}},
		{[]string{"保险期间"}, []string{"保险期间"}},
		{nil, nil},
	}
	for _, tt := range tests {
		if got := searchArgsReorder(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("searchArgsReorder(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestCheckModelMarker(t *testing.T) {
	dir := t.TempDir()
	emb := embedding.NewMockEmbedder(384)

	// First run writes the marker.
	if err := checkModelMarker(dir, emb); err != nil {
		t.Fatalf("first check: %v", err)
	}
	if _, err := filepath.Glob(filepath.Join(dir, "model.json")); err != nil {
		t.Fatal(err)
	}
	// Same model passes.
	if err := checkModelMarker(dir, emb); err != nil {
		t.Errorf("same model: %v", err)
	}
	// A different dimension is refused with IndexMismatch.
	other := embedding.NewMockEmbedder(512)
	if err := checkModelMarker(dir, other); !clauseerr.Is(err, clauseerr.IndexMismatch) {
		t.Errorf("mismatched model: err=%v, want IndexMismatch", err)
	}
}
