// Package server is the optional debug/introspection HTTP server. It
// exposes health, metrics, build info and the live entity table so a
// dashboard running in one terminal can be inspected from another.
// Plain HTTP, bound to localhost, off by default.
package server

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/hubdeck/hubdeck/internal/config"
	"github.com/hubdeck/hubdeck/internal/errors"
	"github.com/hubdeck/hubdeck/internal/health"
	"github.com/hubdeck/hubdeck/internal/logger"
	"github.com/hubdeck/hubdeck/internal/state"
)

// healthCheckInterval paces the background probe rounds.
const healthCheckInterval = 30 * time.Second

// Server serves the debug endpoints over a shared state store and
// health manager owned by the dashboard process.
type Server struct {
	config       *config.ServerConfig
	metricsCfg   *config.MetricsConfig
	router       *mux.Router
	httpServer   *http.Server
	logger       *logrus.Logger
	healthMgr    *health.Manager
	errorHandler *errors.ErrorHandler
	store        *state.Store
}

// New creates a debug server. The store and health manager are shared
// with the rest of the process; the server only reads them.
func New(cfg *config.ServerConfig, metricsCfg *config.MetricsConfig, log *logrus.Logger, healthMgr *health.Manager, store *state.Store) *Server {
	s := &Server{
		config:       cfg,
		metricsCfg:   metricsCfg,
		router:       mux.NewRouter(),
		logger:       log,
		healthMgr:    healthMgr,
		errorHandler: errors.NewErrorHandler(log),
		store:        store,
	}

	s.setupRoutes()

	return s
}

// Start serves until the context ends, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.ListenAddr, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	go s.healthMgr.StartPeriodicChecks(ctx, healthCheckInterval)

	s.logger.WithField("addr", addr).Info("Starting debug server")

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("debug server failed: %w", err)
	case <-ctx.Done():
		return s.Shutdown()
	}
}

// Shutdown drains in-flight requests within the configured timeout.
func (s *Server) Shutdown() error {
	s.logger.Info("Shutting down debug server")

	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown debug server: %w", err)
	}

	s.logger.Info("Debug server shutdown complete")
	return nil
}

// setupRoutes configures middleware and all routes.
func (s *Server) setupRoutes() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(logger.RequestLoggerMiddleware(s.logger))
	s.router.Use(s.errorHandler.Middleware)
	s.router.Use(s.metricsMiddleware)
	s.router.Use(s.corsMiddleware)

	healthHandler := health.NewHandler(s.healthMgr)
	s.router.HandleFunc("/healthz", healthHandler.HandleHealth).Methods("GET")
	s.router.HandleFunc("/readyz", healthHandler.HandleReady).Methods("GET")
	s.router.HandleFunc("/livez", healthHandler.HandleLive).Methods("GET")

	s.router.HandleFunc("/version", s.handleVersion).Methods("GET")

	if s.metricsCfg != nil && s.metricsCfg.Enabled {
		path := s.metricsCfg.Path
		if path == "" {
			path = "/metrics"
		}
		s.router.Handle(path, promhttp.Handler()).Methods("GET")
	}

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/entities", s.handleEntities).Methods("GET")
	api.HandleFunc("/entities/{id}", s.handleEntity).Methods("GET")
	api.HandleFunc("/watch", s.handleWatch).Methods("GET")

	// pprof registers itself on the default mux.
	s.router.PathPrefix("/debug/pprof/").Handler(http.DefaultServeMux)

	s.router.NotFoundHandler = http.HandlerFunc(s.errorHandler.HandleNotFound)
	s.router.MethodNotAllowedHandler = http.HandlerFunc(s.errorHandler.HandleMethodNotAllowed)
}

// GetRouter returns the router for testing.
func (s *Server) GetRouter() *mux.Router {
	return s.router
}
