package server

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/drivegallery/drivegallery/internal/gallery"
	"github.com/drivegallery/drivegallery/internal/metrics"
)

// Options configures the gallery HTTP server.
type Options struct {
	// Addr is the listen address for the main server.
	Addr string

	// Gallery serves listings, metadata and content.
	Gallery *gallery.Service

	// DefaultFolderID is used when a listing request names no folder.
	DefaultFolderID string

	Logger  *slog.Logger
	Metrics *metrics.Metrics
	Health  *HealthChecker
}

// Server is the public HTTP surface of the gallery.
type Server struct {
	server  *http.Server
	router  chi.Router
	gallery *gallery.Service

	defaultFolderID string
	logger          *slog.Logger
	metrics         *metrics.Metrics
	health          *HealthChecker
}

// New creates a Server and mounts all routes.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	health := opts.Health
	if health == nil {
		health = NewHealthChecker()
	}

	s := &Server{
		gallery:         opts.Gallery,
		defaultFolderID: opts.DefaultFolderID,
		logger:          logger,
		metrics:         opts.Metrics,
		health:          health,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.observe)
	r.Use(middleware.Recoverer)

	health.RegisterHealthEndpoints(r)

	r.Route("/api/drive", func(r chi.Router) {
		r.Get("/images", s.handleListImages)
		r.Post("/images", s.handleGetImage)
		r.Get("/image/{id}", s.handleImageContent)
		r.Head("/image/{id}", s.handleImageContent)
		r.Options("/image/{id}", s.handlePreflight)
	})

	s.router = r
	s.server = &http.Server{
		Addr:              opts.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		// WriteTimeout stays zero: content responses stream for as long as
		// the client keeps reading.
		IdleTimeout: 120 * time.Second,
	}

	return s
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.server.Addr
}

// Start begins serving. It blocks until the server stops.
func (s *Server) Start() error {
	s.logger.Info("starting gallery server", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down gallery server")
	s.health.SetShuttingDown()
	return s.server.Shutdown(ctx)
}

// observe records per-route request counts with final status codes.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			route := chi.RouteContext(r.Context()).RoutePattern()
			if route == "" {
				route = r.URL.Path
			}
			s.metrics.RequestServed(route, strconv.Itoa(ww.Status()))
		}()

		next.ServeHTTP(ww, r)
	})
}
