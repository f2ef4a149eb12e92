package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"omnisense-server/pkg/config"
	"omnisense-server/pkg/metrics"
	"omnisense-server/pkg/perception"
)

// HealthReport aggregates the orchestrator's own status with every
// collaborator probe. The orchestrator is always reported healthy when it
// can answer at all; offline collaborators degrade the experience, they do
// not fail it.
type HealthReport struct {
	Orchestrator string                             `json:"orchestrator"`
	Timestamp    string                             `json:"timestamp"`
	Uptime       string                             `json:"uptime"`
	Services     map[string]perception.HealthStatus `json:"services"`
}

// Server is the HTTP server hosting the streaming endpoint, health checks
// and metrics.
type Server struct {
	logger     *logrus.Logger
	config     *config.Configuration
	registry   *perception.Registry
	httpServer *http.Server
	startTime  time.Time
}

// NewServer wires the HTTP mux: /ws for streaming, /health and /health/live
// for probes, /metrics for Prometheus when enabled.
func NewServer(logger *logrus.Logger, cfg *config.Configuration, registry *perception.Registry, wsHandler http.Handler) *Server {
	s := &Server{
		logger:    logger,
		config:    cfg,
		registry:  registry,
		startTime: time.Now(),
	}

	mux := http.NewServeMux()
	mux.Handle("/ws", wsHandler)
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/health/live", s.livenessHandler)

	if cfg.HTTPEnableMetrics {
		if reg := metrics.GetRegistry(); reg != nil {
			mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
			logger.Info("Prometheus metrics endpoint enabled at /metrics")
		}
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// healthHandler aggregates collaborator liveness. An offline collaborator
// never turns the response into an error status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	report := HealthReport{
		Orchestrator: "healthy",
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		Uptime:       time.Since(s.startTime).Round(time.Second).String(),
		Services:     s.registry.AggregateHealth(r.Context()),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(report); err != nil {
		s.logger.WithError(err).Error("Failed to encode health report")
	}
}

func (s *Server) livenessHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"alive"}`))
}

// Start runs the server until it fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.WithField("addr", s.httpServer.Addr).Info("HTTP server listening")
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the mux for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}
