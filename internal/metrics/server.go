// Package metrics also provides the dedicated Prometheus exposition
// server: a second, narrow HTTP listener serving only /metrics, kept
// separate from the orchestrator's gin-based API surface (spec.md
// §6.3) so a scrape never contends with request-serving routes.
// Narrowed to the single /metrics responsibility — health reporting
// belongs to the gin surface's own /health handler, which has access to
// the orchestrator's actual readiness state.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Server exposes a Recorder's collectors on /metrics.
type Server struct {
	port     int
	gatherer prometheus.Gatherer
	server   *http.Server
	log      zerolog.Logger
}

// NewServer builds a metrics Server. gatherer is typically the same
// prometheus.Registry passed to NewRecorder.
func NewServer(port int, gatherer prometheus.Gatherer, log zerolog.Logger) *Server {
	return &Server{
		port:     port,
		gatherer: gatherer,
		log:      log.With().Str("component", "metrics_server").Logger(),
	}
}

// Start begins serving /metrics in a background goroutine.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.log.Info().Int("port", s.port).Msg("starting metrics server")
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error().Err(err).Msg("metrics server error")
		}
	}()
	return nil
}

// Shutdown gracefully stops the metrics server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("metrics: shutdown server: %w", err)
	}
	return nil
}
