package floodgate

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

// manualClock lets tests advance time explicitly.
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Unix(1700000000, 0)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestTTLCache_PutGet(t *testing.T) {
	clock := newManualClock()
	cache := NewTTLCache[string](30*time.Second, 10, WithClock(clock.Now))

	cache.Put("a", "value-a")

	got, ok := cache.Get("a")
	if !ok {
		t.Fatal("Get() should hit immediately after Put()")
	}
	if got != "value-a" {
		t.Errorf("Get() = %q, want %q", got, "value-a")
	}

	// Still fresh just before the TTL boundary
	clock.Advance(29 * time.Second)
	if _, ok := cache.Get("a"); !ok {
		t.Error("Get() should hit while age < ttl")
	}
}

func TestTTLCache_GetMissing(t *testing.T) {
	cache := NewTTLCache[int](time.Second, 10)

	if _, ok := cache.Get("nope"); ok {
		t.Error("Get() on unknown key should miss")
	}
	if _, ok := cache.GetStale("nope"); ok {
		t.Error("GetStale() on unknown key should miss")
	}
}

func TestTTLCache_Expiry(t *testing.T) {
	clock := newManualClock()
	cache := NewTTLCache[string](time.Second, 10, WithClock(clock.Now))

	cache.Put("a", "v1")
	clock.Advance(2 * time.Second)

	if _, ok := cache.Get("a"); ok {
		t.Error("Get() should miss once age >= ttl")
	}

	// Expired entries are invisible to fresh reads but stay available to
	// stale reads, even after a fresh read missed on them, until a sweep or
	// eviction removes them.
	if stale, ok := cache.GetStale("a"); !ok || stale != "v1" {
		t.Errorf("GetStale() = %q, %v; want %q, true", stale, ok, "v1")
	}
	if cache.Len() != 1 {
		t.Errorf("Len() = %d, want 1", cache.Len())
	}

	cache.Cleanup()
	if _, ok := cache.GetStale("a"); ok {
		t.Error("GetStale() should miss once the entry has been swept")
	}
}

func TestTTLCache_PutRefreshesTimestamp(t *testing.T) {
	clock := newManualClock()
	cache := NewTTLCache[string](10*time.Second, 10, WithClock(clock.Now))

	cache.Put("a", "v1")
	clock.Advance(8 * time.Second)
	cache.Put("a", "v2")
	clock.Advance(8 * time.Second)

	// 16s since the first write, 8s since the second: still fresh
	got, ok := cache.Get("a")
	if !ok {
		t.Fatal("Get() should hit, Put() refreshes insertedAt")
	}
	if got != "v2" {
		t.Errorf("Get() = %q, want %q", got, "v2")
	}
}

func TestTTLCache_CapacityNeverExceeded(t *testing.T) {
	cache := NewTTLCache[int](time.Minute, 5)

	for i := 0; i < 50; i++ {
		cache.Put(fmt.Sprintf("key-%d", i), i)
		if cache.Len() > 5 {
			t.Fatalf("Len() = %d after %d puts, must never exceed 5", cache.Len(), i+1)
		}
	}
	if cache.Len() != 5 {
		t.Errorf("Len() = %d, want 5", cache.Len())
	}
}

func TestTTLCache_NonPositiveMaxSize(t *testing.T) {
	// A degenerate size is clamped rather than disabling the ceiling
	for _, size := range []int{0, -5} {
		cache := NewTTLCache[int](time.Minute, size)
		cache.Put("a", 1)
		cache.Put("b", 2)

		if cache.Len() != 1 {
			t.Errorf("maxSize=%d: Len() = %d, want 1", size, cache.Len())
		}
	}
}

func TestTTLCache_LRUEviction(t *testing.T) {
	clock := newManualClock()
	cache := NewTTLCache[int](time.Minute, 3, WithClock(clock.Now))

	cache.Put("a", 1)
	cache.Put("b", 2)
	cache.Put("c", 3)

	// Touch a so b becomes least recently used
	if _, ok := cache.Get("a"); !ok {
		t.Fatal("Get(a) should hit")
	}

	cache.Put("d", 4)

	if _, ok := cache.Get("b"); ok {
		t.Error("b should have been evicted as least recently touched")
	}
	for _, key := range []string{"a", "c", "d"} {
		if _, ok := cache.Get(key); !ok {
			t.Errorf("%s should still be cached", key)
		}
	}
}

func TestTTLCache_EvictionOrder(t *testing.T) {
	// maxSize=2: inserting a third key evicts the oldest untouched one
	clock := newManualClock()
	cache := NewTTLCache[int](time.Second, 2, WithClock(clock.Now))

	cache.Put("a", 1)
	clock.Advance(100 * time.Millisecond)
	cache.Put("b", 2)
	clock.Advance(100 * time.Millisecond)
	cache.Put("c", 3)

	if _, ok := cache.Get("a"); ok {
		t.Error("a should have been evicted")
	}
	if got, _ := cache.Get("b"); got != 2 {
		t.Errorf("Get(b) = %d, want 2", got)
	}
	if got, _ := cache.Get("c"); got != 3 {
		t.Errorf("Get(c) = %d, want 3", got)
	}
}

func TestTTLCache_CleanupThrottled(t *testing.T) {
	clock := newManualClock()
	cache := NewTTLCache[string](time.Second, 10,
		WithClock(clock.Now),
		WithCleanupInterval(60*time.Second),
	)

	cache.Put("a", "v1")
	clock.Advance(2 * time.Second)

	// Interval has not elapsed: the inline sweep is a no-op and the expired
	// entry is still present for stale reads.
	cache.Put("b", "v2")
	if _, ok := cache.GetStale("a"); !ok {
		t.Fatal("expired entry should survive until the sweep interval elapses")
	}

	clock.Advance(59 * time.Second)
	cache.Put("c", "v3")

	if _, ok := cache.GetStale("a"); ok {
		t.Error("expired entry should be swept once the interval has elapsed")
	}
	if _, ok := cache.GetStale("b"); ok {
		t.Error("b expired as well and should be swept")
	}
}

func TestTTLCache_ForcedCleanup(t *testing.T) {
	clock := newManualClock()
	cache := NewTTLCache[string](time.Second, 10, WithClock(clock.Now))

	cache.Put("a", "v1")
	cache.Put("b", "v2")
	clock.Advance(2 * time.Second)
	cache.Put("c", "v3")

	cache.Cleanup()

	if cache.Len() != 1 {
		t.Errorf("Len() = %d after Cleanup(), want 1", cache.Len())
	}
	if _, ok := cache.Get("c"); !ok {
		t.Error("c is still fresh and should survive Cleanup()")
	}
}

func TestTTLCache_Clear(t *testing.T) {
	cache := NewTTLCache[int](time.Minute, 10)

	cache.Put("a", 1)
	cache.Put("b", 2)
	cache.Clear()

	if cache.Len() != 0 {
		t.Errorf("Len() = %d after Clear(), want 0", cache.Len())
	}
	if _, ok := cache.GetStale("a"); ok {
		t.Error("Clear() should remove entries from stale reads too")
	}
}

func TestTTLCache_Stats(t *testing.T) {
	clock := newManualClock()
	cache := NewTTLCache[string](10*time.Second, 100, WithClock(clock.Now))

	cache.Put("a", "v1")
	cache.Put("b", "v2")
	clock.Advance(11 * time.Second)
	cache.Put("c", "v3")

	stats := cache.Stats()
	if stats.TotalEntries != 3 {
		t.Errorf("TotalEntries = %d, want 3", stats.TotalEntries)
	}
	if stats.ExpiredEntries != 2 {
		t.Errorf("ExpiredEntries = %d, want 2", stats.ExpiredEntries)
	}
	if stats.ValidEntries != 1 {
		t.Errorf("ValidEntries = %d, want 1", stats.ValidEntries)
	}
	if stats.MaxSize != 100 {
		t.Errorf("MaxSize = %d, want 100", stats.MaxSize)
	}
	if stats.TTLSeconds != 10 {
		t.Errorf("TTLSeconds = %d, want 10", stats.TTLSeconds)
	}

	// Stats must not mutate: the expired entries are still there
	if cache.Len() != 3 {
		t.Errorf("Len() = %d after Stats(), want 3", cache.Len())
	}
}

func TestTTLCache_ConcurrentAccess(t *testing.T) {
	cache := NewTTLCache[int](time.Minute, 50)

	var wg sync.WaitGroup
	for g := 0; g < 10; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				key := fmt.Sprintf("key-%d", i%20)
				cache.Put(key, g*1000+i)
				cache.Get(key)
			}
		}(g)
	}
	wg.Wait()

	if cache.Len() > 50 {
		t.Errorf("Len() = %d, must never exceed maxSize 50", cache.Len())
	}
}
