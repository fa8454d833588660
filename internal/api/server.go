package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/iburn/mediacache/internal/api/handlers"
	"github.com/iburn/mediacache/internal/api/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

const statusCacheTTL = 10 * time.Second

// Server represents the HTTP server
type Server struct {
	server      *http.Server
	downloaders []handlers.Downloader
	gatherer    prometheus.Gatherer
	logger      *logrus.Logger
}

// NewServer creates a new HTTP server listening on port
func NewServer(port string, downloaders []handlers.Downloader, gatherer prometheus.Gatherer, logger *logrus.Logger) *Server {
	s := &Server{
		downloaders: downloaders,
		gatherer:    gatherer,
		logger:      logger,
	}

	s.server = &http.Server{
		Addr:         ":" + port,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the routed handler wrapped in request logging
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.setupRoutes(mux)
	return middleware.Logging(mux, s.logger)
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(mux *http.ServeMux) {
	healthHandler := handlers.NewHealthHandler(s.logger)
	mux.HandleFunc("/health", healthHandler.ServeHTTP)

	statusHandler := handlers.NewStatusHandler(s.downloaders, statusCacheTTL, s.logger)
	mux.HandleFunc("/status", statusHandler.ServeHTTP)

	refreshHandler := handlers.NewRefreshHandler(s.downloaders, statusHandler, s.logger)
	mux.HandleFunc("/api/media/refresh", refreshHandler.ServeHTTP)

	if s.gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
}

// Start starts the HTTP server
func (s *Server) Start(ctx context.Context) error {
	s.logger.WithField("port", s.server.Addr).Info("Starting HTTP server")

	errChan := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}
