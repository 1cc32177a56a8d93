package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ent0n29/concierge/internal/catalog"
	"github.com/ent0n29/concierge/internal/observability"
	"github.com/ent0n29/concierge/internal/privacy"
)

const noMatchesMessage = "No matching products found."

// Minter issues ephemeral realtime credentials. The returned body is passed
// to the client unchanged.
type Minter interface {
	Mint(ctx context.Context) (json.RawMessage, error)
}

// Server is the companion HTTP service the conversation client talks to for
// credentials and catalog lookups.
type Server struct {
	catalog catalog.Store
	minter  Minter
	metrics *observability.Metrics
	logger  *slog.Logger
}

func New(store catalog.Store, minter Minter, metrics *observability.Metrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		catalog: store,
		minter:  minter,
		metrics: metrics,
		logger:  logger,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestLog)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})
	r.Get("/v1/perf/latency", s.handlePerfLatency)

	r.Get("/api/session", s.handleSession)
	r.Post("/api/recommend", s.handleRecommend)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		respondError(w, http.StatusServiceUnavailable, "catalog_unavailable", "catalog not configured")
		return
	}
	n, err := s.catalog.Count(r.Context())
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "catalog_unavailable", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":   "ready",
		"products": n,
	})
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	if s.minter == nil {
		s.metrics.ObserveCredentialMint("error")
		respondJSON(w, http.StatusInternalServerError, errorBody{Error: "Internal Server Error"})
		return
	}
	body, err := s.minter.Mint(r.Context())
	if err != nil {
		s.metrics.ObserveCredentialMint("error")
		s.logger.Error("ephemeral key request failed", "error", err)
		respondJSON(w, http.StatusInternalServerError, errorBody{Error: "Internal Server Error"})
		return
	}
	s.metrics.ObserveCredentialMint("ok")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

type recommendResponse struct {
	Success         bool              `json:"success"`
	Recommendations []catalog.Product `json:"recommendations"`
	Message         string            `json:"message,omitempty"`
}

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	var filter catalog.Filter
	if err := decodeJSON(r, &filter); err != nil && !errors.Is(err, errEmptyBody) {
		s.metrics.ObserveCatalog("bad_request")
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if s.catalog == nil {
		s.metrics.ObserveCatalog("error")
		respondError(w, http.StatusServiceUnavailable, "catalog_unavailable", "catalog not configured")
		return
	}
	name, sub, brand, desc := filter.Terms()
	s.logger.Debug("recommend request",
		"product_name", privacy.String(name),
		"sub_category", privacy.String(sub),
		"brand", privacy.String(brand),
		"short_description", privacy.String(desc),
	)

	products, err := s.catalog.Search(r.Context(), filter)
	if err != nil {
		s.metrics.ObserveCatalog("error")
		s.logger.Error("catalog search failed", "error", err)
		respondError(w, http.StatusInternalServerError, "catalog_error", "Internal Server Error")
		return
	}
	if len(products) == 0 {
		s.metrics.ObserveCatalog("empty")
		respondJSON(w, http.StatusOK, recommendResponse{
			Success:         true,
			Recommendations: []catalog.Product{},
			Message:         noMatchesMessage,
		})
		return
	}
	s.metrics.ObserveCatalog("ok")
	respondJSON(w, http.StatusOK, recommendResponse{Success: true, Recommendations: products})
}

// requestLog tags each request with an id and logs it once it completes.
func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		s.logger.Info("http request",
			"request_id", id,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// errorBody is the bare shape credential clients expect on failure.
type errorBody struct {
	Error string `json:"error"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		// Only a body with no JSON value at all is empty; truncated JSON is
		// io.ErrUnexpectedEOF and stays an error.
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
