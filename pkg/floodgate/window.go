package floodgate

import (
	"sync"
	"time"
)

// SlidingWindow is a per-key rate limiter counting requests inside a rolling
// [now-window, now] interval. It is thread-safe; checks for the same key are
// serialized by the lock, so the recorded count per window never exceeds the
// configured maximum.
type SlidingWindow struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	windows map[string][]time.Time
	clock   Clock
}

// WindowOption configures a SlidingWindow.
type WindowOption func(*SlidingWindow)

// WithWindowClock replaces the limiter's time source. Intended for tests.
func WithWindowClock(c Clock) WindowOption {
	return func(l *SlidingWindow) { l.clock = c }
}

// NewSlidingWindow creates a limiter allowing maxRequests per window per key.
func NewSlidingWindow(maxRequests int, window time.Duration, opts ...WindowOption) *SlidingWindow {
	l := &SlidingWindow{
		max:     maxRequests,
		window:  window,
		windows: make(map[string][]time.Time),
		clock:   systemClock,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// SetLimits updates the limiter's parameters at runtime. Existing windows are
// kept; the new values apply from the next Check on.
func (l *SlidingWindow) SetLimits(maxRequests int, window time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.max = maxRequests
	l.window = window
}

// Limits returns the current maxRequests and window.
func (l *SlidingWindow) Limits() (int, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.max, l.window
}

// Check reports whether a request for key is admitted. When denied it returns
// a strictly positive retry hint in seconds and does not record the attempt;
// when allowed it records the request and returns 0.
func (l *SlidingWindow) Check(key string) (bool, int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	window := l.pruneLocked(key, now)

	if len(window) >= l.max {
		retryAfter := int(l.window.Seconds())
		if len(window) > 0 {
			// Seconds until the oldest recorded request leaves the window.
			oldest := window[0]
			retryAfter = int(l.window.Seconds()-now.Sub(oldest).Seconds()) + 1
		}
		if retryAfter < 1 {
			retryAfter = 1
		}
		return false, retryAfter
	}

	l.windows[key] = append(window, now)
	return true, 0
}

// Remaining returns how many requests key may still make in the current
// window. It does not consume budget.
func (l *SlidingWindow) Remaining(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	window := l.pruneLocked(key, l.clock())
	if remaining := l.max - len(window); remaining > 0 {
		return remaining
	}
	return 0
}

// Reset clears the windows for the given keys, or every window when called
// with no keys.
func (l *SlidingWindow) Reset(keys ...string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(keys) == 0 {
		l.windows = make(map[string][]time.Time)
		return
	}
	for _, key := range keys {
		delete(l.windows, key)
	}
}

// pruneLocked drops timestamps older than now-window and returns the surviving
// slice. An absent key is an empty window; no entry is created until a request
// is recorded.
func (l *SlidingWindow) pruneLocked(key string, now time.Time) []time.Time {
	window, ok := l.windows[key]
	if !ok {
		return nil
	}

	cutoff := now.Add(-l.window)
	kept := window[:0]
	for _, t := range window {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	if len(kept) == 0 {
		delete(l.windows, key)
		return nil
	}
	l.windows[key] = kept
	return kept
}
