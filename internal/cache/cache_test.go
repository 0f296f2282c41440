package cache

import (
	"context"
	"sync"
	"testing"
)

func TestMemoryGetSet(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()

	if _, ok, _ := c.Get(ctx, 1, "week"); ok {
		t.Fatal("expected miss on empty cache")
	}

	if err := c.Set(ctx, 1, 0, "week", []byte(`{"1":10}`)); err != nil {
		t.Fatalf("set: %v", err)
	}
	v, ok, err := c.Get(ctx, 1, "week")
	if err != nil || !ok {
		t.Fatalf("get: ok = %v, err = %v", ok, err)
	}
	if string(v) != `{"1":10}` {
		t.Errorf("value = %s, want {\"1\":10}", v)
	}
}

func TestMemoryInvalidateIsPerCircle(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()
	c.Set(ctx, 1, 0, "day", []byte("a"))
	c.Set(ctx, 1, 0, "week", []byte("b"))
	c.Set(ctx, 2, 0, "week", []byte("c"))

	if err := c.Invalidate(ctx, 1); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if got := c.Len(1); got != 0 {
		t.Errorf("circle 1 entries = %d, want 0", got)
	}
	if got := c.Len(2); got != 1 {
		t.Errorf("circle 2 entries = %d, want 1", got)
	}
}

func TestMemorySetCopiesValue(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()
	buf := []byte("abc")
	c.Set(ctx, 1, 0, "k", buf)
	buf[0] = 'x'

	v, _, _ := c.Get(ctx, 1, "k")
	if string(v) != "abc" {
		t.Errorf("value = %s, want abc", v)
	}
}

func TestMemoryConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := int64(i % 5)
			gen, _ := c.Generation(ctx, id)
			c.Set(ctx, id, gen, "week", []byte("v"))
			c.Get(ctx, id, "week")
			if i%7 == 0 {
				c.Invalidate(ctx, id)
			}
		}(i)
	}
	wg.Wait()
}

func TestMemorySetAfterInvalidateIsDropped(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()

	gen, err := c.Generation(ctx, 1)
	if err != nil {
		t.Fatalf("generation: %v", err)
	}
	// A ledger write lands between the read and the write-back.
	c.Invalidate(ctx, 1)

	if err := c.Set(ctx, 1, gen, "week", []byte("stale")); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, ok, _ := c.Get(ctx, 1, "week"); ok {
		t.Error("stale value was cached after invalidation")
	}

	fresh, _ := c.Generation(ctx, 1)
	if fresh != gen+1 {
		t.Errorf("generation = %d, want %d", fresh, gen+1)
	}
	c.Set(ctx, 1, fresh, "week", []byte("fresh"))
	if v, ok, _ := c.Get(ctx, 1, "week"); !ok || string(v) != "fresh" {
		t.Errorf("value = %q (ok %v), want fresh", v, ok)
	}
	if g2, _ := c.Generation(ctx, 2); g2 != 0 {
		t.Errorf("circle 2 generation = %d, want 0", g2)
	}
}
