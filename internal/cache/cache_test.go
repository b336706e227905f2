package cache

import (
	"testing"
	"time"
)

func TestCacheSetGet(t *testing.T) {
	c := New[string](4, time.Minute)
	if _, ok := c.Get("a"); ok {
		t.Fatalf("expected miss on empty cache")
	}
	c.Set("a", "one")
	v, ok := c.Get("a")
	if !ok || v != "one" {
		t.Fatalf("expected hit with %q, got %q ok=%v", "one", v, ok)
	}
}

func TestCacheExpiry(t *testing.T) {
	c := New[int](4, 20*time.Millisecond)
	c.Set("n", 42)
	if _, ok := c.Get("n"); !ok {
		t.Fatalf("expected fresh entry to hit")
	}
	time.Sleep(50 * time.Millisecond)
	if _, ok := c.Get("n"); ok {
		t.Fatalf("expected entry to expire")
	}
}

func TestCacheCapacityEviction(t *testing.T) {
	c := New[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)
	if c.Len() != 2 {
		t.Fatalf("expected 2 live entries, got %d", c.Len())
	}
	if _, ok := c.Get("a"); ok {
		t.Fatalf("expected oldest entry to be evicted")
	}
}

func TestCacheInvalidateAll(t *testing.T) {
	c := New[int](4, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	c.InvalidateAll()
	if c.Len() != 0 {
		t.Fatalf("expected empty cache after purge, got %d", c.Len())
	}
}

func TestCacheDelete(t *testing.T) {
	c := New[int](4, time.Minute)
	c.Set("a", 1)
	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Fatalf("expected deleted entry to miss")
	}
}
