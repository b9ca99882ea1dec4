// Package api exposes administrative HTTP handlers for cache statistics,
// cache clearing and rate-limit resets.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/yourusername/floodgate/middleware"
)

// Handler serves the admin endpoints backed by a request gate.
type Handler struct {
	gate *middleware.Gate
}

// NewHandler creates a new admin handler.
func NewHandler(gate *middleware.Gate) *Handler {
	return &Handler{gate: gate}
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// ResetRequest represents a rate-limit reset request.
type ResetRequest struct {
	Class string `json:"class"`         // Required: traffic class name
	Key   string `json:"key,omitempty"` // Optional: single client key to reset
}

// CacheStats handles GET /admin/cache/stats. The response maps each cache
// name to its statistics; valid_entries is total minus expired, computed
// without mutating the cache.
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.sendError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Only GET requests are allowed")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.gate.CacheStats())
}

// ClearCaches handles POST /admin/cache/clear.
func (h *Handler) ClearCaches(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.sendError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Only POST requests are allowed")
		return
	}

	h.gate.ClearCaches()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "cleared"})
}

// ResetRateLimit handles POST /admin/ratelimit/reset. With a key it resets
// one client's window; without, the whole class.
func (h *Handler) ResetRateLimit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.sendError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Only POST requests are allowed")
		return
	}

	var req ResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}
	if req.Class == "" {
		h.sendError(w, http.StatusBadRequest, "missing_class", "class is required")
		return
	}

	var ok bool
	if req.Key != "" {
		ok = h.gate.Reset(req.Class, req.Key)
	} else {
		ok = h.gate.Reset(req.Class)
	}
	if !ok {
		h.sendError(w, http.StatusNotFound, "unknown_class", "No limiter exists for that class")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "reset", "class": req.Class})
}

func (h *Handler) sendError(w http.ResponseWriter, statusCode int, errCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   errCode,
		Message: message,
	})
}
