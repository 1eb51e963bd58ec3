package recognition

import (
	"fmt"
	"testing"
)

func TestCache_GetPut(t *testing.T) {
	c := NewCache(10, nil)

	if _, ok := c.Get("a"); ok {
		t.Error("expected miss on empty cache")
	}

	c.Put("a", "1001")
	got, ok := c.Get("a")
	if !ok || got != "1001" {
		t.Errorf("Get() = %q, %v; want 1001, true", got, ok)
	}

	c.Put("a", "1002")
	if got, _ := c.Get("a"); got != "1002" {
		t.Errorf("expected overwrite, got %q", got)
	}
	if c.Len() != 1 {
		t.Errorf("expected 1 entry, got %d", c.Len())
	}
}

func TestCache_Bound(t *testing.T) {
	c := NewCache(DefaultCacheSize, nil)

	for i := range 2500 {
		c.Put(fmt.Sprintf("key-%d", i), "label")
		if c.Len() > DefaultCacheSize {
			t.Fatalf("cache grew to %d entries after put %d", c.Len(), i)
		}
	}
}

func TestCache_ClearAllOnOverflow(t *testing.T) {
	c := NewCache(DefaultCacheSize, nil)
	for i := range DefaultCacheSize {
		c.Put(fmt.Sprintf("key-%d", i), "label")
	}
	if c.Len() != DefaultCacheSize {
		t.Fatalf("expected full cache, got %d", c.Len())
	}

	c.Put("new", "1001")

	if c.Len() != 1 {
		t.Errorf("expected only the new entry after overflow, got %d entries", c.Len())
	}
	if got, ok := c.Get("new"); !ok || got != "1001" {
		t.Errorf("new entry missing after overflow")
	}
	if _, ok := c.Get("key-0"); ok {
		t.Error("old entry survived overflow")
	}
}

func TestCache_OverwriteDoesNotEvict(t *testing.T) {
	c := NewCache(2, nil)
	c.Put("a", "1")
	c.Put("b", "2")
	c.Put("a", "3")

	if c.Len() != 2 {
		t.Errorf("expected overwrite of existing key to keep both entries, got %d", c.Len())
	}
}

type dropOne struct{ calls int }

func (d *dropOne) Evict(entries map[string]string, _ int) {
	d.calls++
	for k := range entries {
		delete(entries, k)
		return
	}
}

type dropNothing struct{}

func (dropNothing) Evict(map[string]string, int) {}

func TestCache_CustomStrategy(t *testing.T) {
	strategy := &dropOne{}
	c := NewCache(3, strategy)
	for i := range 5 {
		c.Put(fmt.Sprintf("k%d", i), "x")
	}

	if strategy.calls != 2 {
		t.Errorf("expected strategy to run twice, ran %d times", strategy.calls)
	}
	if c.Len() != 3 {
		t.Errorf("expected cache to stay full at 3, got %d", c.Len())
	}
}

func TestCache_MisbehavingStrategyStillBounded(t *testing.T) {
	c := NewCache(3, dropNothing{})
	for i := range 10 {
		c.Put(fmt.Sprintf("k%d", i), "x")
		if c.Len() > 3 {
			t.Fatalf("cache exceeded bound: %d", c.Len())
		}
	}
}
