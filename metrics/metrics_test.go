package metrics

import (
	"sync"
	"testing"

	"github.com/yourusername/floodgate/pkg/floodgate"
)

func TestRecordDecision(t *testing.T) {
	m := NewMetrics()

	m.RecordDecision("iot-data", "addr_192.0.2.1", true)
	m.RecordDecision("iot-data", "addr_192.0.2.1", true)
	m.RecordDecision("iot-data", "addr_192.0.2.2", false)
	m.RecordDecision("ai-recommendation", "addr_192.0.2.1", true)

	snap := m.GetSnapshot()

	if snap.TotalRequests != 4 {
		t.Errorf("total = %d, want 4", snap.TotalRequests)
	}
	if snap.AllowedRequests != 3 {
		t.Errorf("allowed = %d, want 3", snap.AllowedRequests)
	}
	if snap.BlockedRequests != 1 {
		t.Errorf("blocked = %d, want 1", snap.BlockedRequests)
	}

	iot := snap.Classes["iot-data"]
	if iot == nil {
		t.Fatal("missing iot-data class stats")
	}
	if iot.TotalRequests != 3 || iot.AllowedRequests != 2 || iot.BlockedRequests != 1 {
		t.Errorf("iot stats = %+v", iot)
	}
	if iot.UniqueClients != 2 {
		t.Errorf("iot unique_clients = %d, want 2", iot.UniqueClients)
	}

	ai := snap.Classes["ai-recommendation"]
	if ai == nil || ai.TotalRequests != 1 {
		t.Errorf("ai stats = %+v", ai)
	}
}

func TestFetchObserver(t *testing.T) {
	m := NewMetrics()
	observe := m.FetchObserver("standard")

	observe("k1", floodgate.FetchRefresh)
	observe("k1", floodgate.FetchHit)
	observe("k1", floodgate.FetchHit)
	observe("k2", floodgate.FetchStale)
	observe("k3", floodgate.FetchError)

	snap := m.GetSnapshot()
	stats := snap.Fetches["standard"]
	if stats == nil {
		t.Fatal("missing standard fetch stats")
	}
	if stats.Hits != 2 || stats.Refreshes != 1 || stats.StaleServes != 1 || stats.Errors != 1 {
		t.Errorf("fetch stats = %+v", stats)
	}
}

func TestSnapshotIsolation(t *testing.T) {
	m := NewMetrics()
	m.RecordDecision("iot-data", "addr_192.0.2.1", true)

	snap := m.GetSnapshot()
	snap.Classes["iot-data"].TotalRequests = 999

	if got := m.GetSnapshot().Classes["iot-data"].TotalRequests; got != 1 {
		t.Errorf("mutating a snapshot leaked into live stats: total = %d", got)
	}
}

func TestConcurrentRecording(t *testing.T) {
	m := NewMetrics()
	observe := m.FetchObserver("standard")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.RecordDecision("iot-data", "addr_192.0.2.1", j%2 == 0)
				observe("k", floodgate.FetchHit)
			}
		}()
	}
	wg.Wait()

	snap := m.GetSnapshot()
	if snap.TotalRequests != 1000 {
		t.Errorf("total = %d, want 1000", snap.TotalRequests)
	}
	if snap.Fetches["standard"].Hits != 1000 {
		t.Errorf("hits = %d, want 1000", snap.Fetches["standard"].Hits)
	}
}
