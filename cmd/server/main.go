package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"golang.org/x/oauth2"

	"github.com/yourusername/floodgate/api"
	"github.com/yourusername/floodgate/metrics"
	"github.com/yourusername/floodgate/middleware"
	"github.com/yourusername/floodgate/pkg/floodgate"
	"github.com/yourusername/floodgate/upstream"
)

func main() {
	// Configuration
	port := getEnv("PORT", "8080")
	configPath := getEnv("FLOODGATE_CONFIG", "")

	cfg := floodgate.NewConfig()
	if configPath != "" {
		loaded, err := floodgate.LoadConfigFromFile(configPath)
		if err != nil {
			log.Fatal("failed to load config: ", err)
		}
		cfg = loaded
		fmt.Println("Loaded config from", configPath)
	}

	// Limits are re-read from the environment on every request, so they can
	// be tuned without a restart.
	source := floodgate.EnvSource(cfg)

	metricsTracker := metrics.NewMetrics()

	gate, err := middleware.NewGate(
		middleware.WithConfigSource(source),
		middleware.WithMetrics(metricsTracker),
	)
	if err != nil {
		log.Fatal("failed to create gate: ", err)
	}

	// Cache instances: short-TTL realtime, longer-TTL standard, and a
	// result cache for derived recommendations.
	caches := cfg.Caches
	standard := floodgate.NewTTLCache[[]upstream.Row](
		secs(caches.Standard.TTLSeconds), caches.Standard.MaxSize)
	realtime := floodgate.NewTTLCache[[]upstream.Row](
		secs(caches.Realtime.TTLSeconds), caches.Realtime.MaxSize)
	result := floodgate.NewTTLCache[string](
		secs(caches.Result.TTLSeconds), caches.Result.MaxSize)

	gate.RegisterCache("standard", standard)
	gate.RegisterCache("realtime", realtime)
	gate.RegisterCache("result", result)

	standardPolicy := floodgate.NewFetchPolicy(standard,
		floodgate.WithFetchObserver(metricsTracker.FetchObserver("standard")))
	realtimePolicy := floodgate.NewFetchPolicy(realtime,
		floodgate.WithFetchObserver(metricsTracker.FetchObserver("realtime")))
	resultPolicy := floodgate.NewFetchPolicy(result,
		floodgate.WithFetchObserver(metricsTracker.FetchObserver("result")))

	// Upstreams
	ctx := context.Background()
	tokenSource := oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: os.Getenv("SHEETS_ACCESS_TOKEN"),
	})
	sheets := upstream.NewSheetsClient(ctx,
		getEnv("SHEETS_BASE_URL", "https://sheets.googleapis.com"), tokenSource)
	llm := upstream.NewRecommendationClient(
		getEnv("LLM_BASE_URL", "https://api.groq.com/openai/v1"),
		os.Getenv("LLM_API_KEY"),
		getEnv("LLM_MODEL", "llama-3.1-8b-instant"),
	)

	adminHandler := api.NewHandler(gate)
	metricsHandler := api.NewMetricsHandler(metricsTracker)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/weather/heatmap", sheetsHandler(standardPolicy, sheets))
	mux.HandleFunc("/weather/realtime", sheetsHandler(realtimePolicy, sheets))
	mux.HandleFunc("/weather/recommendation", recommendationHandler(resultPolicy, llm))
	mux.HandleFunc("/admin/cache/stats", adminHandler.CacheStats)
	mux.HandleFunc("/admin/cache/clear", adminHandler.ClearCaches)
	mux.HandleFunc("/admin/ratelimit/reset", adminHandler.ResetRateLimit)
	mux.Handle("/metrics", metricsHandler)

	addr := ":" + port
	fmt.Println("floodgate server")
	fmt.Println("Listening on http://localhost" + addr)
	fmt.Println()
	fmt.Println("Endpoints:")
	fmt.Println("  GET  /weather/heatmap         - cached sheet reads (standard)")
	fmt.Println("  GET  /weather/realtime        - cached sheet reads (realtime)")
	fmt.Println("  POST /weather/recommendation  - cached LLM recommendations")
	fmt.Println("  GET  /admin/cache/stats       - cache statistics")
	fmt.Println("  POST /admin/cache/clear       - clear caches")
	fmt.Println("  POST /admin/ratelimit/reset   - reset limiter windows")
	fmt.Println("  GET  /metrics                 - gate and fetch metrics")
	fmt.Println("  GET  /health                  - health check")

	if err := http.ListenAndServe(addr, gate.Middleware(mux)); err != nil {
		log.Fatal(err)
	}
}

// sheetsHandler serves worksheet rows through a fetch policy. A throttled
// upstream with a previous value for the key degrades to that value instead
// of failing.
func sheetsHandler(policy *floodgate.FetchPolicy[[]upstream.Row], sheets *upstream.SheetsClient) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		spreadsheetID := r.URL.Query().Get("spreadsheet_id")
		worksheet := r.URL.Query().Get("worksheet")
		if spreadsheetID == "" || worksheet == "" {
			http.Error(w, "spreadsheet_id and worksheet are required", http.StatusBadRequest)
			return
		}
		forceRefresh := r.URL.Query().Get("force_refresh") == "true"

		key := floodgate.SheetKey(spreadsheetID, worksheet)
		rows, err := policy.Fetch(r.Context(), key, forceRefresh,
			func(ctx context.Context) ([]upstream.Row, error) {
				return sheets.FetchRows(ctx, spreadsheetID, worksheet)
			})
		if err != nil {
			writeUpstreamError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"rows": rows})
	}
}

// recommendationHandler serves LLM recommendations keyed by a digest of the
// input payload, so identical inputs share one generation.
func recommendationHandler(policy *floodgate.FetchPolicy[string], llm *upstream.RecommendationClient) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req struct {
			SubjectID    string         `json:"subject_id"`
			Prompt       string         `json:"prompt"`
			Data         map[string]any `json:"data"`
			ForceRefresh bool           `json:"force_refresh,omitempty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid JSON body", http.StatusBadRequest)
			return
		}
		if req.SubjectID == "" || req.Prompt == "" {
			http.Error(w, "subject_id and prompt are required", http.StatusBadRequest)
			return
		}

		key, err := floodgate.ResultKey(req.SubjectID, req.Data)
		if err != nil {
			http.Error(w, "cannot build cache key", http.StatusBadRequest)
			return
		}

		text, err := policy.Fetch(r.Context(), key, req.ForceRefresh,
			func(ctx context.Context) (string, error) {
				return llm.Generate(ctx, req.Prompt)
			})
		if err != nil {
			writeUpstreamError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"recommendation": text})
	}
}

// writeUpstreamError maps the error taxonomy onto response codes: throttled
// with no fallback means the service is temporarily unavailable.
func writeUpstreamError(w http.ResponseWriter, err error) {
	status := http.StatusBadGateway
	if floodgate.IsThrottled(err) {
		status = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"detail": err.Error()})
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"service": "floodgate",
	})
}

func secs(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
