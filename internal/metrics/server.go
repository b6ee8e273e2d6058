package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/goran-ethernal/chaindexor/internal/config"
)

// Server is the HTTP server that exposes the /metrics endpoint.
type Server struct {
	cfg    *config.MetricsConfig
	server *http.Server
}

// NewServer builds a metrics server from configuration; cfg may be nil, in
// which case Start is a no-op.
func NewServer(cfg *config.MetricsConfig) *Server {
	return &Server{cfg: cfg}
}

// Start launches the metrics HTTP server in the background if enabled.
func (s *Server) Start(ctx context.Context) error {
	if s.cfg == nil || !s.cfg.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(s.cfg.Path, promhttp.Handler())

	s.server = &http.Server{
		Addr:              s.cfg.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("metrics server error: %v\n", err)
		}
	}()

	return nil
}

// Stop gracefully shuts the metrics server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("metrics: failed to shut down server: %w", err)
	}
	return nil
}
