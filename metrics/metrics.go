// Package metrics tracks gate decisions and cache fetch outcomes.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/yourusername/floodgate/pkg/floodgate"
)

// Metrics tracks admission and caching statistics for the process.
type Metrics struct {
	totalRequests   atomic.Int64
	allowedRequests atomic.Int64
	blockedRequests atomic.Int64

	mu         sync.RWMutex
	classStats map[string]*ClassStats
	fetchStats map[string]*FetchStats
	startTime  time.Time
}

// ClassStats tracks decisions for one traffic class.
type ClassStats struct {
	Class           string `json:"class"`
	TotalRequests   int64  `json:"total_requests"`
	AllowedRequests int64  `json:"allowed_requests"`
	BlockedRequests int64  `json:"blocked_requests"`
	UniqueClients   int64  `json:"unique_clients"`

	clients map[string]struct{}
}

// FetchStats tracks fetch outcomes for one cache instance.
type FetchStats struct {
	Cache       string `json:"cache"`
	Hits        int64  `json:"hits"`
	Refreshes   int64  `json:"refreshes"`
	StaleServes int64  `json:"stale_serves"`
	Errors      int64  `json:"errors"`
}

// NewMetrics creates a new metrics tracker.
func NewMetrics() *Metrics {
	return &Metrics{
		classStats: make(map[string]*ClassStats),
		fetchStats: make(map[string]*FetchStats),
		startTime:  time.Now(),
	}
}

// RecordDecision records a gate decision. Implements middleware.MetricsRecorder.
func (m *Metrics) RecordDecision(class, clientKey string, allowed bool) {
	m.totalRequests.Add(1)
	if allowed {
		m.allowedRequests.Add(1)
	} else {
		m.blockedRequests.Add(1)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	stats, ok := m.classStats[class]
	if !ok {
		stats = &ClassStats{Class: class, clients: make(map[string]struct{})}
		m.classStats[class] = stats
	}

	stats.TotalRequests++
	if allowed {
		stats.AllowedRequests++
	} else {
		stats.BlockedRequests++
	}
	stats.clients[clientKey] = struct{}{}
	stats.UniqueClients = int64(len(stats.clients))
}

// FetchObserver returns an observer for a named cache, suitable for
// floodgate.WithFetchObserver.
func (m *Metrics) FetchObserver(cache string) func(key string, outcome floodgate.FetchOutcome) {
	return func(_ string, outcome floodgate.FetchOutcome) {
		m.mu.Lock()
		defer m.mu.Unlock()

		stats, ok := m.fetchStats[cache]
		if !ok {
			stats = &FetchStats{Cache: cache}
			m.fetchStats[cache] = stats
		}

		switch outcome {
		case floodgate.FetchHit:
			stats.Hits++
		case floodgate.FetchRefresh:
			stats.Refreshes++
		case floodgate.FetchStale:
			stats.StaleServes++
		case floodgate.FetchError:
			stats.Errors++
		}
	}
}

// Snapshot represents a point-in-time view of metrics.
type Snapshot struct {
	TotalRequests   int64                  `json:"total_requests"`
	AllowedRequests int64                  `json:"allowed_requests"`
	BlockedRequests int64                  `json:"blocked_requests"`
	Classes         map[string]*ClassStats `json:"classes"`
	Fetches         map[string]*FetchStats `json:"fetches"`
	UptimeSeconds   int64                  `json:"uptime_seconds"`
	StartTime       time.Time              `json:"start_time"`
}

// GetSnapshot returns a snapshot of current metrics.
func (m *Metrics) GetSnapshot() *Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	classes := make(map[string]*ClassStats, len(m.classStats))
	for name, stats := range m.classStats {
		copied := *stats
		copied.clients = nil
		classes[name] = &copied
	}

	fetches := make(map[string]*FetchStats, len(m.fetchStats))
	for name, stats := range m.fetchStats {
		copied := *stats
		fetches[name] = &copied
	}

	return &Snapshot{
		TotalRequests:   m.totalRequests.Load(),
		AllowedRequests: m.allowedRequests.Load(),
		BlockedRequests: m.blockedRequests.Load(),
		Classes:         classes,
		Fetches:         fetches,
		UptimeSeconds:   int64(time.Since(m.startTime).Seconds()),
		StartTime:       m.startTime,
	}
}
