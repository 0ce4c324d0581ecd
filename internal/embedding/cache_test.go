package embedding

import (
	"testing"
)

func TestVectorCache_LookupStore(t *testing.T) {
	c := NewVectorCache(2)
	if v, ok := c.Lookup("保险期间"); ok || v != nil {
		t.Fatal("expected miss")
	}
	c.Store("保险期间", []float32{1, 2, 3})
	v, ok := c.Lookup("保险期间")
	if !ok || len(v) != 3 || v[0] != 1 {
		t.Errorf("Lookup: got %v, %v", v, ok)
	}
	c.Store("退保", []float32{4, 5})
	c.Store("现金价值", []float32{6}) // evicts the least recently used
	if _, ok := c.Lookup("保险期间"); ok {
		t.Error("expected oldest entry to be evicted")
	}
	if _, ok := c.Lookup("退保"); !ok {
		t.Error("expected second entry to remain")
	}
	if _, ok := c.Lookup("现金价值"); !ok {
		t.Error("expected newest entry to be present")
	}
}

func TestVectorCache_KeyNormalization(t *testing.T) {
	c := NewVectorCache(4)
	c.Store("保险期间 多久", []float32{1})
	// Same query with a trailing newline and a full-width space must hit.
	if _, ok := c.Lookup("保险期间　多久\n"); !ok {
		t.Error("whitespace-variant query should hit the same entry")
	}
}

func TestVectorCache_Stats(t *testing.T) {
	c := NewVectorCache(2)
	c.Lookup("a")
	c.Store("a", []float32{1})
	c.Lookup("a")
	hits, misses := c.Stats()
	if hits != 1 || misses != 1 {
		t.Errorf("stats = %d hits, %d misses", hits, misses)
	}
}

func TestVectorCache_Disabled(t *testing.T) {
	c := NewVectorCache(0)
	c.Store("a", []float32{1})
	if _, ok := c.Lookup("a"); ok {
		t.Error("capacity 0 must disable caching")
	}
}
