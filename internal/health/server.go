// Package health serves the operational HTTP surface: liveness, provider
// health, quota usage, metrics, and the analyze endpoint.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mhmod01110/priv-band-ai/internal/ai/routing"
	"github.com/mhmod01110/priv-band-ai/internal/core/domain"
	"github.com/mhmod01110/priv-band-ai/internal/infra/storage/postgres"
	"github.com/mhmod01110/priv-band-ai/internal/metrics"
)

// Analyzer runs one analysis end to end. Implemented by the control
// service.
type Analyzer interface {
	Analyze(ctx context.Context, req domain.AnalysisRequest) (domain.PipelineResult, error)
}

// Server provides the HTTP endpoints.
type Server struct {
	analyzer  Analyzer
	router    *routing.Router
	history   *postgres.AnalysisRepo // nil when history is disabled
	storePing func(ctx context.Context) error
	server    *http.Server
	log       *slog.Logger
}

// NewServer wires the mux. storePing may be nil when the store needs no
// liveness check (the in-memory store).
func NewServer(analyzer Analyzer, router *routing.Router, history *postgres.AnalysisRepo, storePing func(ctx context.Context) error, port int, log *slog.Logger) *Server {
	mux := http.NewServeMux()
	s := &Server{
		analyzer:  analyzer,
		router:    router,
		history:   history,
		storePing: storePing,
		log:       log.With("component", "http"),
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		},
	}

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/providers", s.handleProviders)
	mux.HandleFunc("/quota", s.handleQuota)
	mux.HandleFunc("/history", s.handleHistory)
	mux.HandleFunc("/analyze", s.handleAnalyze)
	mux.Handle("/metrics", promhttp.Handler())

	return s
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	code := http.StatusOK
	if s.storePing != nil {
		if err := s.storePing(r.Context()); err != nil {
			s.log.Error("store ping failed", "error", err)
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, code, map[string]string{"status": status})
}

func (s *Server) handleProviders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.router.HealthReport())
}

func (s *Server) handleQuota(w http.ResponseWriter, r *http.Request) {
	usage, err := s.router.QuotaUsage(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, usage)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "history persistence is disabled"})
		return
	}
	var (
		recs []domain.AnalysisRecord
		err  error
	)
	if key := r.URL.Query().Get("key"); key != "" {
		recs, err = s.history.ByKey(r.Context(), key)
	} else {
		recs, err = s.history.Recent(r.Context(), 50)
	}
	if err != nil {
		s.log.Error("history query failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load history"})
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "POST required"})
		return
	}

	var req domain.AnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if !req.PolicyType.Valid() {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": fmt.Sprintf("unsupported policy type %q", req.PolicyType),
		})
		return
	}
	if req.PolicyText == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "policy_text is required"})
		return
	}

	result, err := s.analyzer.Analyze(r.Context(), req)
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyInProgress) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
			return
		}
		s.log.Error("analyze failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	if result.FromCache {
		metrics.AnalysesTotal.WithLabelValues("cached").Inc()
	}
	writeJSON(w, http.StatusOK, result)
}
