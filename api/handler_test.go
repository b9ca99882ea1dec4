package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/yourusername/floodgate/middleware"
	"github.com/yourusername/floodgate/pkg/floodgate"
)

func newTestHandler(t *testing.T) (*Handler, *middleware.Gate) {
	t.Helper()
	gate, err := middleware.NewGate()
	if err != nil {
		t.Fatalf("NewGate() failed: %v", err)
	}
	return NewHandler(gate), gate
}

func TestCacheStats(t *testing.T) {
	handler, gate := newTestHandler(t)

	cache := floodgate.NewTTLCache[string](30*time.Second, 100)
	cache.Put("a", "1")
	cache.Put("b", "2")
	gate.RegisterCache("standard", cache)

	w := httptest.NewRecorder()
	handler.CacheStats(w, httptest.NewRequest("GET", "/admin/cache/stats", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var stats map[string]floodgate.CacheStats
	if err := json.NewDecoder(w.Body).Decode(&stats); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if stats["standard"].TotalEntries != 2 {
		t.Errorf("standard total_entries = %d, want 2", stats["standard"].TotalEntries)
	}
	if stats["standard"].MaxSize != 100 {
		t.Errorf("standard max_size = %d, want 100", stats["standard"].MaxSize)
	}
}

func TestCacheStats_MethodNotAllowed(t *testing.T) {
	handler, _ := newTestHandler(t)

	w := httptest.NewRecorder()
	handler.CacheStats(w, httptest.NewRequest("POST", "/admin/cache/stats", nil))

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", w.Code)
	}
}

func TestClearCaches(t *testing.T) {
	handler, gate := newTestHandler(t)

	cache := floodgate.NewTTLCache[string](30*time.Second, 100)
	cache.Put("a", "1")
	gate.RegisterCache("standard", cache)

	w := httptest.NewRecorder()
	handler.ClearCaches(w, httptest.NewRequest("POST", "/admin/cache/clear", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if cache.Len() != 0 {
		t.Errorf("cache has %d entries after clear, want 0", cache.Len())
	}

	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["status"] != "cleared" {
		t.Errorf("status field = %q, want cleared", body["status"])
	}
}

func TestResetRateLimit(t *testing.T) {
	handler, gate := newTestHandler(t)

	// Exhaust a budget so there is a limiter to reset
	mw := gate.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	r := httptest.NewRequest("GET", "/weather/heatmap", nil)
	r.RemoteAddr = "192.0.2.1:1234"
	mw.ServeHTTP(httptest.NewRecorder(), r)

	w := httptest.NewRecorder()
	handler.ResetRateLimit(w, httptest.NewRequest("POST", "/admin/ratelimit/reset",
		strings.NewReader(`{"class":"iot-data"}`)))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", w.Code, w.Body.String())
	}

	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["status"] != "reset" || body["class"] != "iot-data" {
		t.Errorf("body = %v", body)
	}
}

func TestResetRateLimit_Errors(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		body       string
		wantStatus int
		wantError  string
	}{
		{
			name:       "wrong method",
			method:     "GET",
			body:       `{"class":"iot-data"}`,
			wantStatus: http.StatusMethodNotAllowed,
			wantError:  "method_not_allowed",
		},
		{
			name:       "invalid json",
			method:     "POST",
			body:       `{not json`,
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid_request",
		},
		{
			name:       "missing class",
			method:     "POST",
			body:       `{"key":"addr_192.0.2.1"}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "missing_class",
		},
		{
			name:       "unknown class",
			method:     "POST",
			body:       `{"class":"no-such-class"}`,
			wantStatus: http.StatusNotFound,
			wantError:  "unknown_class",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, _ := newTestHandler(t)

			w := httptest.NewRecorder()
			handler.ResetRateLimit(w, httptest.NewRequest(tt.method, "/admin/ratelimit/reset",
				strings.NewReader(tt.body)))

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}

			var resp ErrorResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode error response: %v", err)
			}
			if resp.Error != tt.wantError {
				t.Errorf("error = %q, want %q", resp.Error, tt.wantError)
			}
		})
	}
}
