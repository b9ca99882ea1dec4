// Package floodgate provides in-process caching and admission control for
// services that sit in front of rate-limited upstreams.
//
// It combines three pieces:
//
//   - TTLCache: a bounded, thread-safe key/value cache with time-based expiry
//     and LRU eviction.
//   - SlidingWindow: a per-key rate limiter counting requests inside a rolling
//     time window.
//   - FetchPolicy: a read-through layer on top of a TTLCache that falls back
//     to stale entries when the upstream reports throttling.
//
// # Quick Start
//
// Cache with degraded-serve fallback:
//
//	cache := floodgate.NewTTLCache[[]Row](30*time.Second, 500)
//	policy := floodgate.NewFetchPolicy(cache)
//
//	rows, err := policy.Fetch(ctx, floodgate.SheetKey(sheetID, "sensors"), false,
//	    func(ctx context.Context) ([]Row, error) {
//	        return client.FetchRows(ctx, sheetID, "sensors")
//	    })
//
// If the upstream returns a throttled error and a previous value exists for
// the key, Fetch returns that value even when it has expired. Hard errors are
// returned unchanged.
//
// # Rate Limiting
//
// Sliding window limiter, 30 requests per 60 seconds:
//
//	limiter := floodgate.NewSlidingWindow(30, 60*time.Second)
//
//	allowed, retryAfter := limiter.Check("addr_10.0.0.1")
//	if !allowed {
//	    // deny with a Retry-After hint of retryAfter seconds
//	}
//
// Limits can be changed at runtime with SetLimits without resetting the
// recorded windows; the middleware package uses this to re-read configuration
// on every request.
//
// # Concurrency
//
// All operations are thread-safe and complete without blocking on I/O. The
// upstream call made by FetchPolicy happens outside the cache lock and is
// collapsed across concurrent callers with singleflight.
//
// # Testing
//
// TTL and window arithmetic depend only on an injectable clock, so expiry and
// retry behavior can be tested without sleeping:
//
//	now := time.Now()
//	cache := floodgate.NewTTLCache[string](time.Second, 10,
//	    floodgate.WithClock(func() time.Time { return now }))
package floodgate
