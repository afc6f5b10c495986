package cache

import (
	"context"
	"testing"
)

type entry struct {
	Amounts map[string]float64 `json:"amounts"`
}

func TestInMemoryCache(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache()

	var got entry
	ok, err := c.Get(ctx, "missing", &got)
	if err != nil || ok {
		t.Fatalf("Get(missing) = %v, %v; want false, nil", ok, err)
	}

	want := entry{Amounts: map[string]float64{"alice": 25}}
	if err := c.Set(ctx, AllocationKey("e1"), want); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	// Mutating the original must not leak into the cache.
	want.Amounts["alice"] = 99

	ok, err = c.Get(ctx, AllocationKey("e1"), &got)
	if err != nil || !ok {
		t.Fatalf("Get = %v, %v; want true, nil", ok, err)
	}
	if got.Amounts["alice"] != 25 {
		t.Errorf("cached amount = %v, want 25", got.Amounts["alice"])
	}

	if err := c.Delete(ctx, AllocationKey("e1"), StatsKey("nobody")); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if c.Len() != 0 {
		t.Errorf("Len = %d after delete, want 0", c.Len())
	}
}

func TestKeys(t *testing.T) {
	if AllocationKey("x") == StatsKey("x") {
		t.Error("allocation and stats keys must not collide")
	}
}
