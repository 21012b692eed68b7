package cache

import (
	"context"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func TestLRUCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	if _, ok := c.Get("a"); !ok {
		t.Fatal("a missing")
	}
	c.Set("c", 3) // evicts b, the least recently used

	if _, ok := c.Get("b"); ok {
		t.Fatal("b should have been evicted")
	}
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("a = %v, %v", v, ok)
	}
	if c.Size() != 2 {
		t.Fatalf("size = %d, want 2", c.Size())
	}
}

func TestLRUCacheExpiry(t *testing.T) {
	clk := &clock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache[string](10, time.Second).WithClock(clk.now)

	c.Set("k", "v")
	c.Set("other", "w")
	clk.t = clk.t.Add(500 * time.Millisecond)
	if _, ok := c.Get("k"); !ok {
		t.Fatal("entry expired too early")
	}

	clk.t = clk.t.Add(time.Second)
	if n := c.CleanExpired(); n != 2 {
		t.Fatalf("cleaned %d, want 2", n)
	}
	if c.Size() != 0 {
		t.Fatalf("size = %d after cleanup", c.Size())
	}
}

func TestLRUCacheOverwriteAndDelete(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("a", 2)
	if v, _ := c.Get("a"); v != 2 || c.Size() != 1 {
		t.Fatalf("overwrite failed: v=%d size=%d", v, c.Size())
	}
	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Fatal("delete failed")
	}
}

func TestLRUCacheRefreshOnSet(t *testing.T) {
	clk := &clock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache[int](3, time.Second).WithClock(clk.now)

	c.Set("a", 1)
	clk.t = clk.t.Add(800 * time.Millisecond)
	c.Set("a", 2)
	clk.t = clk.t.Add(800 * time.Millisecond)
	if v, ok := c.Get("a"); !ok || v != 2 {
		t.Fatalf("rewritten entry expired with its old ttl: %v %v", v, ok)
	}

	// Eviction order follows reads as well as writes.
	c.Set("b", 1)
	c.Set("c", 1)
	c.Get("a")
	c.Set("d", 1)
	if _, ok := c.Get("b"); ok {
		t.Fatal("b should have been evicted")
	}
	for _, k := range []string{"a", "c", "d"} {
		if _, ok := c.Get(k); !ok {
			t.Fatalf("%s missing", k)
		}
	}
}

func TestLRUCacheZeroCapacity(t *testing.T) {
	c := NewLRUCache[int](0, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	if c.Size() != 1 {
		t.Fatalf("size = %d, want 1", c.Size())
	}
	if _, ok := c.Get("b"); !ok {
		t.Fatal("latest entry should survive")
	}
}

func TestManagerSweepReportsPerCache(t *testing.T) {
	clk := &clock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	responses := NewLRUCache[string](10, time.Second).WithClock(clk.now)
	snapshots := NewLRUCache[int](10, time.Hour).WithClock(clk.now)
	responses.Set("POST /api/goals k-1", "created")
	responses.Set("POST /api/goals k-2", "created")
	snapshots.Set("g-1", 1)
	clk.t = clk.t.Add(time.Minute)

	m := NewManager(time.Minute, nil)
	m.Register("idempotency", responses)
	m.Register("goals", snapshots)

	got := m.Sweep()
	if len(got) != 1 || got["idempotency"] != 2 {
		t.Fatalf("unexpected sweep result %v", got)
	}
	if snapshots.Size() != 1 {
		t.Fatal("live snapshot was swept")
	}
}

func TestManagerRunStopsOnCancel(t *testing.T) {
	clk := &clock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache[int](10, time.Second).WithClock(clk.now)
	c.Set("a", 1)
	clk.t = clk.t.Add(time.Hour)

	m := NewManager(5*time.Millisecond, nil)
	m.Register("goals", c)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for c.Size() != 0 {
		select {
		case <-deadline:
			t.Fatal("manager never swept")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}
}
