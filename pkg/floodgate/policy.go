package floodgate

import (
	"context"

	"golang.org/x/sync/singleflight"
)

// FetchFunc loads a value from an upstream source. Failures should be
// classified (see Classify); the function owns its own timeout policy.
type FetchFunc[V any] func(ctx context.Context) (V, error)

// FetchOutcome describes how a FetchPolicy call was satisfied.
type FetchOutcome int

const (
	// FetchHit means the value was served fresh from the cache.
	FetchHit FetchOutcome = iota
	// FetchRefresh means the upstream was called and succeeded.
	FetchRefresh
	// FetchStale means the upstream was throttled and an expired cache
	// entry was served instead.
	FetchStale
	// FetchError means the call failed with no fallback available.
	FetchError
)

// FetchPolicy composes a TTLCache with an upstream fetch, adding
// stale-on-throttle fallback. Concurrent fetches for the same key are
// collapsed into one upstream call.
type FetchPolicy[V any] struct {
	cache    *TTLCache[V]
	sf       singleflight.Group
	observer func(key string, outcome FetchOutcome)
}

// PolicyOption configures a FetchPolicy.
type PolicyOption func(*policySettings)

type policySettings struct {
	observer func(key string, outcome FetchOutcome)
}

// WithFetchObserver registers a hook called once per Fetch with the outcome.
// Used to feed metrics; must not block.
func WithFetchObserver(fn func(key string, outcome FetchOutcome)) PolicyOption {
	return func(s *policySettings) { s.observer = fn }
}

// NewFetchPolicy creates a policy over the given cache.
func NewFetchPolicy[V any](cache *TTLCache[V], opts ...PolicyOption) *FetchPolicy[V] {
	var settings policySettings
	for _, opt := range opts {
		opt(&settings)
	}
	return &FetchPolicy[V]{cache: cache, observer: settings.observer}
}

// Cache exposes the underlying cache for stats and clearing.
func (p *FetchPolicy[V]) Cache() *TTLCache[V] {
	return p.cache
}

// Fetch returns the value for key. Unless forceRefresh is set, a fresh cache
// hit is returned directly. Otherwise fn is called: on success the result is
// cached and returned; on a throttled failure the last known value is served
// if any entry exists for the key, expired or not; hard failures propagate
// unchanged.
func (p *FetchPolicy[V]) Fetch(ctx context.Context, key string, forceRefresh bool, fn FetchFunc[V]) (V, error) {
	var zero V

	if !forceRefresh {
		if v, ok := p.cache.Get(key); ok {
			p.record(key, FetchHit)
			return v, nil
		}
	}

	v, err, _ := p.sf.Do(key, func() (interface{}, error) {
		val, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		p.cache.Put(key, val)
		return val, nil
	})
	if err != nil {
		if IsThrottled(err) {
			if stale, ok := p.cache.GetStale(key); ok {
				p.record(key, FetchStale)
				return stale, nil
			}
		}
		p.record(key, FetchError)
		return zero, err
	}

	p.record(key, FetchRefresh)
	return v.(V), nil
}

func (p *FetchPolicy[V]) record(key string, outcome FetchOutcome) {
	if p.observer != nil {
		p.observer(key, outcome)
	}
}
