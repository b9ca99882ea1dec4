// Package middleware provides the request gate: HTTP middleware that
// classifies inbound requests into traffic classes and applies the matching
// sliding-window rate limiter before any handler runs.
package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/yourusername/floodgate/pkg/floodgate"
)

// MetricsRecorder receives one event per gate decision.
type MetricsRecorder interface {
	RecordDecision(class, clientKey string, allowed bool)
}

// ManagedCache is the view the gate keeps of the process's cache instances,
// enough for stats and administrative clearing without knowing value types.
type ManagedCache interface {
	Stats() floodgate.CacheStats
	Clear()
	Cleanup()
}

// Gate intercepts every inbound request, classifies its path and consults the
// matching rate limiter. Denied requests are answered with a structured 429
// and never reach a handler. Configuration is re-read from the ConfigSource
// on each evaluation, so limits can change at runtime without restarts.
type Gate struct {
	source  floodgate.ConfigSource
	keyFn   floodgate.KeyExtractor
	clock   floodgate.Clock
	metrics MetricsRecorder

	mu       sync.Mutex
	limiters map[string]*floodgate.SlidingWindow

	cacheMu sync.RWMutex
	caches  map[string]ManagedCache
}

// Rejection is the body of a rate-limit rejection response.
type Rejection struct {
	Detail        string `json:"detail"`
	RetryAfter    int    `json:"retry_after"`
	Limit         int    `json:"limit"`
	WindowSeconds int    `json:"window_seconds"`
}

// Option is a functional option for configuring a Gate.
type Option func(*Gate) error

// WithConfigSource sets where the gate reads its configuration. The source is
// consulted on every request.
func WithConfigSource(source floodgate.ConfigSource) Option {
	return func(g *Gate) error {
		if source == nil {
			return fmt.Errorf("%w: config source cannot be nil", floodgate.ErrInvalidConfig)
		}
		g.source = source
		return nil
	}
}

// WithKeyExtractor sets a custom client key extractor.
func WithKeyExtractor(extractor floodgate.KeyExtractor) Option {
	return func(g *Gate) error {
		if extractor == nil {
			return fmt.Errorf("%w: key extractor cannot be nil", floodgate.ErrInvalidConfig)
		}
		g.keyFn = extractor
		return nil
	}
}

// WithMetrics sets the decision metrics recorder.
func WithMetrics(metrics MetricsRecorder) Option {
	return func(g *Gate) error {
		g.metrics = metrics
		return nil
	}
}

// WithClock replaces the time source used by the gate's limiters.
func WithClock(clock floodgate.Clock) Option {
	return func(g *Gate) error {
		g.clock = clock
		return nil
	}
}

// NewGate creates a Gate with the given options. Without options it uses the
// default configuration and origin-address client keys.
func NewGate(opts ...Option) (*Gate, error) {
	g := &Gate{
		limiters: make(map[string]*floodgate.SlidingWindow),
		caches:   make(map[string]ManagedCache),
	}

	for _, opt := range opts {
		if err := opt(g); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if g.source == nil {
		g.source = floodgate.StaticSource(floodgate.NewConfig())
	}

	if g.keyFn == nil {
		extractor, err := floodgate.ParseKeyExtractorConfig(g.source().KeyExtractor)
		if err != nil {
			return nil, fmt.Errorf("failed to parse key extractor config: %w", err)
		}
		g.keyFn = extractor
	}

	return g, nil
}

// RegisterCache adds a cache instance to the gate's registry under name,
// making it visible to the stats and clear endpoints.
func (g *Gate) RegisterCache(name string, cache ManagedCache) {
	g.cacheMu.Lock()
	defer g.cacheMu.Unlock()
	g.caches[name] = cache
}

// CacheStats returns statistics for every registered cache.
func (g *Gate) CacheStats() map[string]floodgate.CacheStats {
	g.cacheMu.RLock()
	defer g.cacheMu.RUnlock()

	stats := make(map[string]floodgate.CacheStats, len(g.caches))
	for name, cache := range g.caches {
		stats[name] = cache.Stats()
	}
	return stats
}

// ClearCaches empties every registered cache.
func (g *Gate) ClearCaches() {
	g.cacheMu.RLock()
	defer g.cacheMu.RUnlock()
	for _, cache := range g.caches {
		cache.Clear()
	}
}

// Reset clears limiter windows for a traffic class: one client's window when
// keys are given, all of them otherwise. It reports whether the class is
// known; a configured class with no traffic yet has nothing to clear but is
// still a successful reset.
func (g *Gate) Reset(class string, keys ...string) bool {
	g.mu.Lock()
	limiter, ok := g.limiters[class]
	g.mu.Unlock()

	if ok {
		limiter.Reset(keys...)
		return true
	}

	// Limiters are created on first use, so an idle class has none.
	_, configured := g.source().Classes[class]
	return configured
}

// Middleware wraps next with admission control.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cfg := g.source()
		path := r.URL.Path

		if cfg.Bypassed(path) {
			next.ServeHTTP(w, r)
			return
		}

		name, class, ok := cfg.Classify(path)
		if !ok || !class.Enabled {
			next.ServeHTTP(w, r)
			return
		}

		key, err := g.keyFn(r)
		if err != nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		limiter := g.limiterFor(name, class)
		limiter.SetLimits(class.MaxRequests, time.Duration(class.WindowSeconds)*time.Second)

		allowed, retryAfter := limiter.Check(key)

		if g.metrics != nil {
			g.metrics.RecordDecision(name, key, allowed)
		}

		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", class.MaxRequests))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", limiter.Remaining(key)))

		if !allowed {
			g.reject(w, class, retryAfter)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// limiterFor returns the limiter bound to a traffic class, creating it on
// first use with the class's configured parameters.
func (g *Gate) limiterFor(name string, class floodgate.ClassConfig) *floodgate.SlidingWindow {
	g.mu.Lock()
	defer g.mu.Unlock()

	if limiter, ok := g.limiters[name]; ok {
		return limiter
	}

	var opts []floodgate.WindowOption
	if g.clock != nil {
		opts = append(opts, floodgate.WithWindowClock(g.clock))
	}
	limiter := floodgate.NewSlidingWindow(
		class.MaxRequests,
		time.Duration(class.WindowSeconds)*time.Second,
		opts...,
	)
	g.limiters[name] = limiter
	return limiter
}

func (g *Gate) reject(w http.ResponseWriter, class floodgate.ClassConfig, retryAfter int) {
	detail := class.Detail
	if detail == "" {
		detail = "Too many requests. Please wait."
	}

	w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)

	json.NewEncoder(w).Encode(Rejection{
		Detail:        detail,
		RetryAfter:    retryAfter,
		Limit:         class.MaxRequests,
		WindowSeconds: class.WindowSeconds,
	})
}
