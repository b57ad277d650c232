package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/drivegallery/drivegallery/internal/config"
	"github.com/drivegallery/drivegallery/internal/drive"
	"github.com/drivegallery/drivegallery/internal/gallery"
	"github.com/drivegallery/drivegallery/internal/logging"
	"github.com/drivegallery/drivegallery/internal/metrics"
	"github.com/drivegallery/drivegallery/internal/server"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	var (
		httpAddr    string
		metricsAddr string
		folderID    string
		debugMode   bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the gallery HTTP server",
		Long: `Start the gallery HTTP server.

Service-account credentials are read from the GOOGLE_* environment variables
and validated on first Drive use, so the server starts even before secrets
are mounted. The folder to serve comes from --folder or DRIVE_FOLDER_ID.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(httpAddr, metricsAddr, folderID, debugMode)
		},
	}

	cmd.Flags().StringVar(&httpAddr, "http-addr", "", "HTTP listen address. Defaults to HTTP_ADDR or "+config.DefaultHTTPAddr)
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Metrics listen address. Defaults to METRICS_ADDR or "+config.DefaultMetricsAddr)
	cmd.Flags().StringVar(&folderID, "folder", "", "Drive folder id to serve. Defaults to DRIVE_FOLDER_ID")
	cmd.Flags().BoolVar(&debugMode, "debug", false, "Enable debug logging")

	return cmd
}

func runServe(httpAddr, metricsAddr, folderID string, debugMode bool) error {
	// Setup graceful shutdown
	shutdownCtx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger := logging.New(debugMode)

	cfg := config.Load()
	if httpAddr != "" {
		cfg.HTTPAddr = httpAddr
	}
	if metricsAddr != "" {
		cfg.MetricsAddr = metricsAddr
	}
	if folderID != "" {
		cfg.FolderID = folderID
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	galleryMetrics := metrics.New(registry)

	provider := drive.NewProvider(cfg.Credentials, logging.WithComponent(logger, "drive"))
	store := drive.NewClient(provider)

	svc := gallery.NewService(gallery.Options{
		Store:       store,
		MetadataTTL: cfg.MetadataTTL,
		ListingTTL:  cfg.ListingTTL,
		Metrics:     galleryMetrics,
		Logger:      logging.WithComponent(logger, "gallery"),
	})

	health := server.NewHealthChecker()

	metricsServer := server.NewMetricsServer(cfg.MetricsAddr, registry,
		logging.WithComponent(logger, "metrics"))

	// Use ready channel to confirm metrics server started successfully
	metricsReady := make(chan struct{})
	metricsErr := make(chan error, 1)
	go func() {
		if err := metricsServer.StartWithReadySignal(metricsReady); err != nil {
			metricsErr <- err
		}
		close(metricsErr)
	}()

	select {
	case <-metricsReady:
	case err := <-metricsErr:
		return fmt.Errorf("metrics server failed to start: %w", err)
	case <-time.After(5 * time.Second):
		return fmt.Errorf("metrics server startup timed out")
	}

	srv := server.New(server.Options{
		Addr:            cfg.HTTPAddr,
		Gallery:         svc,
		DefaultFolderID: cfg.FolderID,
		Logger:          logging.WithComponent(logger, "server"),
		Metrics:         galleryMetrics,
		Health:          health,
	})

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
		close(serverErr)
	}()

	logger.Info("gallery server running",
		"http_addr", cfg.HTTPAddr,
		"metrics_addr", metricsServer.Addr(),
		logging.FolderID(cfg.FolderID))

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-shutdownCtx.Done():
	}

	logger.Info("shutdown signal received")

	drainCtx, drainCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer drainCancel()

	if err := srv.Shutdown(drainCtx); err != nil {
		logger.Error("error during server shutdown", logging.Err(err))
	}
	if err := metricsServer.Shutdown(drainCtx); err != nil {
		logger.Error("error during metrics server shutdown", logging.Err(err))
	}

	return nil
}
