package floodgate

import (
	"container/list"
	"sync"
	"time"
)

// DefaultCleanupInterval is the minimum gap between two inline sweeps of
// expired entries. Sweeps triggered more often than this are no-ops.
const DefaultCleanupInterval = 60 * time.Second

// TTLCache is a thread-safe key/value cache with time-based expiry, a hard
// entry-count ceiling and LRU eviction.
//
// Expiry is lazy: fresh reads treat an expired entry as absent, but the entry
// stays in the map until a sweep removes it or eviction claims it. GetStale
// exploits this to serve degraded-but-available data while the upstream is
// throttled.
type TTLCache[V any] struct {
	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List // front = most recently touched

	ttl     time.Duration
	maxSize int

	clock           Clock
	cleanupInterval time.Duration
	lastCleanup     time.Time
}

type cacheEntry[V any] struct {
	key        string
	value      V
	insertedAt time.Time
}

// CacheStats is a point-in-time view of a cache, computed without mutating it.
type CacheStats struct {
	TotalEntries   int   `json:"total_entries"`
	ValidEntries   int   `json:"valid_entries"`
	ExpiredEntries int   `json:"expired_entries"`
	MaxSize        int   `json:"max_size"`
	TTLSeconds     int64 `json:"ttl_seconds"`
}

// CacheOption configures a TTLCache.
type CacheOption func(*cacheSettings)

type cacheSettings struct {
	clock           Clock
	cleanupInterval time.Duration
}

// WithClock replaces the cache's time source. Intended for tests.
func WithClock(c Clock) CacheOption {
	return func(s *cacheSettings) { s.clock = c }
}

// WithCleanupInterval sets how often the inline expiry sweep may actually run.
func WithCleanupInterval(d time.Duration) CacheOption {
	return func(s *cacheSettings) { s.cleanupInterval = d }
}

// NewTTLCache creates a cache holding at most maxSize entries, each valid for
// ttl after its last write. A non-positive maxSize is clamped to 1 so the
// capacity bound always holds.
func NewTTLCache[V any](ttl time.Duration, maxSize int, opts ...CacheOption) *TTLCache[V] {
	if maxSize < 1 {
		maxSize = 1
	}

	settings := cacheSettings{
		clock:           systemClock,
		cleanupInterval: DefaultCleanupInterval,
	}
	for _, opt := range opts {
		opt(&settings)
	}

	return &TTLCache[V]{
		entries:         make(map[string]*list.Element),
		order:           list.New(),
		ttl:             ttl,
		maxSize:         maxSize,
		clock:           settings.clock,
		cleanupInterval: settings.cleanupInterval,
		lastCleanup:     settings.clock(),
	}
}

// Get returns the value for key if an entry exists and has not expired.
// A hit marks the entry as most recently touched. An expired entry is a miss
// but is left in place for GetStale; the sweep and eviction remove it.
func (c *TTLCache[V]) Get(key string) (V, bool) {
	var zero V

	c.mu.Lock()
	defer c.mu.Unlock()

	c.maybeCleanupLocked()

	el, ok := c.entries[key]
	if !ok {
		return zero, false
	}

	ent := el.Value.(*cacheEntry[V])
	if c.clock().Sub(ent.insertedAt) >= c.ttl {
		return zero, false
	}

	c.order.MoveToFront(el)
	return ent.value, true
}

// GetStale returns the value for key regardless of expiry. It does not touch
// recency. Used by FetchPolicy for degraded serves while the upstream is
// throttled.
func (c *TTLCache[V]) GetStale(key string) (V, bool) {
	var zero V

	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	return el.Value.(*cacheEntry[V]).value, true
}

// Put upserts the entry for key with a fresh timestamp. Inserting a new key
// into a full cache first evicts the least-recently-touched entry, so the
// entry count never exceeds maxSize.
func (c *TTLCache[V]) Put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.maybeCleanupLocked()

	now := c.clock()

	if el, ok := c.entries[key]; ok {
		ent := el.Value.(*cacheEntry[V])
		ent.value = value
		ent.insertedAt = now
		c.order.MoveToFront(el)
		return
	}

	if len(c.entries) >= c.maxSize {
		if oldest := c.order.Back(); oldest != nil {
			c.removeLocked(oldest)
		}
	}

	el := c.order.PushFront(&cacheEntry[V]{key: key, value: value, insertedAt: now})
	c.entries[key] = el
}

// Cleanup removes every expired entry immediately, regardless of the sweep
// interval. Safe to call from a caller-owned ticker.
func (c *TTLCache[V]) Cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastCleanup = c.clock()
	c.sweepLocked()
}

// Clear removes all entries.
func (c *TTLCache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*list.Element)
	c.order.Init()
}

// Len returns the current entry count, expired entries included.
func (c *TTLCache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns cache statistics without mutating any entry.
func (c *TTLCache[V]) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock()
	expired := 0
	for _, el := range c.entries {
		if now.Sub(el.Value.(*cacheEntry[V]).insertedAt) >= c.ttl {
			expired++
		}
	}

	total := len(c.entries)
	return CacheStats{
		TotalEntries:   total,
		ValidEntries:   total - expired,
		ExpiredEntries: expired,
		MaxSize:        c.maxSize,
		TTLSeconds:     int64(c.ttl / time.Second),
	}
}

// maybeCleanupLocked runs the expiry sweep if the cleanup interval has
// elapsed since the last one. Called opportunistically from Get and Put.
func (c *TTLCache[V]) maybeCleanupLocked() {
	now := c.clock()
	if now.Sub(c.lastCleanup) < c.cleanupInterval {
		return
	}
	c.lastCleanup = now
	c.sweepLocked()
}

func (c *TTLCache[V]) sweepLocked() {
	now := c.clock()
	for _, el := range c.entries {
		if now.Sub(el.Value.(*cacheEntry[V]).insertedAt) >= c.ttl {
			c.removeLocked(el)
		}
	}
}

func (c *TTLCache[V]) removeLocked(el *list.Element) {
	ent := el.Value.(*cacheEntry[V])
	c.order.Remove(el)
	delete(c.entries, ent.key)
}
