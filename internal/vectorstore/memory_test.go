package vectorstore

import (
	"context"
	"testing"
)

func TestMemoryStore_SearchRanksByCosineSimilarity(t *testing.T) {
	ctx := context.Background()
	store, err := NewMemoryStore(2)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Upsert(ctx, "a", []float32{1, 0}, map[string]string{"company": "泰康"}); err != nil {
		t.Fatal(err)
	}
	if err := store.Upsert(ctx, "b", []float32{0, 1}, map[string]string{"company": "平安"}); err != nil {
		t.Fatal(err)
	}

	results, err := store.Search(ctx, []float32{0.9, 0.1}, 2, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 || results[0].ID != "a" {
		t.Fatalf("expected a ranked first, got %+v", results)
	}
}

func TestMemoryStore_SearchAppliesFilter(t *testing.T) {
	ctx := context.Background()
	store, _ := NewMemoryStore(2)
	store.Upsert(ctx, "a", []float32{1, 0}, map[string]string{"company": "泰康"})
	store.Upsert(ctx, "b", []float32{0.9, 0.1}, map[string]string{"company": "平安"})

	results, err := store.Search(ctx, []float32{1, 0}, 5, Filter{"company": "平安"})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].ID != "b" {
		t.Fatalf("expected only b to match filter, got %+v", results)
	}
}

func TestMemoryStore_DimensionMismatchErrors(t *testing.T) {
	ctx := context.Background()
	store, _ := NewMemoryStore(3)
	if err := store.Upsert(ctx, "a", []float32{1, 0}, nil); err == nil {
		t.Fatal("expected dimension mismatch error")
	}
}

func TestMemoryStore_DeleteRemovesFromIDs(t *testing.T) {
	ctx := context.Background()
	store, _ := NewMemoryStore(2)
	store.Upsert(ctx, "a", []float32{1, 0}, nil)
	store.Upsert(ctx, "b", []float32{0, 1}, nil)
	if err := store.Delete(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	ids, _ := store.IDs(ctx)
	if len(ids) != 1 || ids[0] != "b" {
		t.Fatalf("expected only b remaining, got %v", ids)
	}
}
