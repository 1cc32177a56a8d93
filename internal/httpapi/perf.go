package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ent0n29/concierge/internal/observability"
)

func (s *Server) handlePerfLatency(w http.ResponseWriter, _ *http.Request) {
	respondLatency(w, s.metrics)
}

func respondLatency(w http.ResponseWriter, metrics *observability.Metrics) {
	if metrics == nil {
		respondJSON(w, http.StatusOK, map[string]any{
			"generated_at": "",
			"window_size":  0,
			"stages":       []any{},
		})
		return
	}
	respondJSON(w, http.StatusOK, metrics.LatencySnapshot())
}

// MetricsRouter exposes the conversation client's metrics and latency
// window. The client has no other HTTP surface.
func MetricsRouter(metrics *observability.Metrics) http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	})
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})
	r.Get("/v1/perf/latency", func(w http.ResponseWriter, _ *http.Request) {
		respondLatency(w, metrics)
	})
	return r
}
