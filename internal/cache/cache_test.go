package cache

import (
	"context"
	"testing"
	"time"
)

func TestLRUCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	if _, ok := c.Get("a"); !ok {
		t.Fatal("expected a to be present")
	}
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Errorf("Get(a) = %v, %v", v, ok)
	}
	if c.Size() != 2 {
		t.Errorf("Size() = %d, want 2", c.Size())
	}
}

func TestLRUCacheUpdateRefreshesRecency(t *testing.T) {
	c := NewLRUCache[string](3, time.Minute)
	for _, k := range []string{"pune", "mumbai", "delhi"} {
		c.Set(k, k)
	}
	c.Set("pune", "Pune, Maharashtra")
	c.Set("chennai", "chennai")

	if _, ok := c.Get("mumbai"); ok {
		t.Error("mumbai was least recently used and should be evicted")
	}
	if v, _ := c.Get("pune"); v != "Pune, Maharashtra" {
		t.Errorf("Get(pune) = %q", v)
	}
	if c.Size() != 3 {
		t.Errorf("Size() = %d, want 3", c.Size())
	}
}

func TestLRUCacheExpiry(t *testing.T) {
	c := NewLRUCache[string](10, time.Minute)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set("k", "v")
	c.Set("other", "v")
	now = now.Add(30 * time.Second)
	c.Set("other", "refreshed")
	now = now.Add(45 * time.Second)

	if _, ok := c.Get("k"); ok {
		t.Error("k should have expired")
	}
	if removed := c.CleanExpired(); removed != 0 {
		t.Errorf("CleanExpired() = %d, want 0 after lazy removal", removed)
	}
	now = now.Add(time.Minute)
	if removed := c.CleanExpired(); removed != 1 {
		t.Errorf("CleanExpired() = %d, want 1", removed)
	}
	if c.Size() != 0 {
		t.Errorf("Size() = %d, want 0", c.Size())
	}
}

func TestLRUCacheDelete(t *testing.T) {
	c := NewLRUCache[int](4, time.Minute)
	c.Set("a", 1)
	c.Delete("a")
	c.Delete("missing")
	if _, ok := c.Get("a"); ok {
		t.Fatal("a should be gone")
	}
}

func TestLocalStore(t *testing.T) {
	ctx := context.Background()
	s := NewLocalStore(4, time.Minute)
	defer s.Close()

	if _, ok, err := s.Get(ctx, "pune"); ok || err != nil {
		t.Fatalf("Get() on empty store = %v, %v", ok, err)
	}
	if err := s.Set(ctx, "pune", "18.52,73.85"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	v, ok, err := s.Get(ctx, "pune")
	if err != nil || !ok || v != "18.52,73.85" {
		t.Fatalf("Get() = %q, %v, %v", v, ok, err)
	}
}

func TestManagerSweep(t *testing.T) {
	a := NewLRUCache[int](4, time.Minute)
	b := NewLocalStore(4, time.Minute)
	past := time.Now().Add(-2 * time.Minute)
	a.now = func() time.Time { return past }
	a.Set("x", 1)
	a.now = time.Now

	m := NewManager(nil)
	m.Register(a)
	m.Register(b)
	if n := m.Sweep(); n != 1 {
		t.Fatalf("Sweep() = %d, want 1", n)
	}

	m.StartCleanup(time.Hour)
	m.Stop()
}

func TestNewRedisStoreRejectsBadURL(t *testing.T) {
	if _, err := NewRedisStore(context.Background(), "not-a-url", "geo:", time.Minute); err == nil {
		t.Fatal("expected error for malformed url")
	}
}
