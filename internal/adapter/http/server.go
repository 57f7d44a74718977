// Package http serves health, metrics and the latest analysis of the pipeline.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/weather-data-pipeline/internal/domain"
)

// ResultsProvider exposes the outcome of the last successful run.
type ResultsProvider interface {
	sharedobs.ReadinessChecker
	LatestAnalysis() *domain.Analysis
}

// Server exposes health, readiness, metrics and results HTTP endpoints.
type Server struct {
	httpServer *http.Server
	results    ResultsProvider
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics and
// /analysis routes.
func NewServer(addr string, results ResultsProvider, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		results: results,
		logger:  logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(results))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /analysis", s.handleAnalysis)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleAnalysis(w http.ResponseWriter, _ *http.Request) {
	a := s.results.LatestAnalysis()
	if a == nil {
		sharedobs.WriteJSON(w, http.StatusNotFound, map[string]string{
			"error": "no successful run yet",
		})
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, a)
}
