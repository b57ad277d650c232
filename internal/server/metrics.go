package server

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsServer serves Prometheus metrics on a dedicated listener so that
// scrapes never compete with image streaming on the main server.
type MetricsServer struct {
	server *http.Server
	logger *slog.Logger
}

// NewMetricsServer creates a metrics server exposing the given registry
// on addr under /metrics.
func NewMetricsServer(addr string, reg *prometheus.Registry, logger *slog.Logger) *MetricsServer {
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	return &MetricsServer{
		server: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Addr returns the address the metrics server listens on.
func (m *MetricsServer) Addr() string {
	return m.server.Addr
}

// Start begins serving metrics. It blocks until the server stops.
func (m *MetricsServer) Start() error {
	m.logger.Info("starting metrics server", "addr", m.server.Addr)
	if err := m.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// StartWithReadySignal binds the listener, closes ready, then serves. The
// caller can wait on ready to know the port is actually bound before
// reporting the process healthy.
func (m *MetricsServer) StartWithReadySignal(ready chan<- struct{}) error {
	ln, err := net.Listen("tcp", m.server.Addr)
	if err != nil {
		return err
	}
	m.logger.Info("starting metrics server", "addr", ln.Addr().String())
	close(ready)
	if err := m.server.Serve(ln); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the metrics server.
func (m *MetricsServer) Shutdown(ctx context.Context) error {
	m.logger.Info("shutting down metrics server")
	return m.server.Shutdown(ctx)
}
