// Package server provides the HTTP server implementation for the sync service.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/IlyaTsupryk/ggrc-core/internal/config"
	apierrors "github.com/IlyaTsupryk/ggrc-core/internal/errors"
	"github.com/IlyaTsupryk/ggrc-core/internal/handler"
	"github.com/IlyaTsupryk/ggrc-core/internal/health"
	"github.com/IlyaTsupryk/ggrc-core/internal/middleware"
	"github.com/IlyaTsupryk/ggrc-core/internal/store"
)

// Server represents the HTTP server.
type Server struct {
	router       *mux.Router
	httpServer   *http.Server
	handlers     *handler.Handlers
	healthCheck  *health.HealthCheck
	idempotency  *middleware.Idempotency
	errorHandler *apierrors.Handler
	logger       *zap.Logger
	cfg          *config.Config
}

// NewServer creates a new HTTP server.
func NewServer(
	cfg *config.Config,
	handlers *handler.Handlers,
	healthCheck *health.HealthCheck,
	idemStore store.IdempotencyStore,
	errorHandler *apierrors.Handler,
	logger *zap.Logger,
) *Server {
	router := mux.NewRouter()

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return &Server{
		router:       router,
		httpServer:   httpServer,
		handlers:     handlers,
		healthCheck:  healthCheck,
		idempotency:  middleware.NewIdempotency(idemStore, 24*time.Hour, logger),
		errorHandler: errorHandler,
		logger:       logger,
		cfg:          cfg,
	}
}

// SetupRoutes configures all HTTP routes.
func (s *Server) SetupRoutes() {
	// Setup middleware chain
	middlewareChain := []func(http.Handler) http.Handler{
		middleware.Recovery(s.logger),
		middleware.RequestID,
		middleware.Logging(s.logger),
	}

	if s.cfg.Server.RateLimit > 0 {
		rateLimiter := middleware.NewRateLimiter(
			float64(s.cfg.Server.RateLimit),
			s.cfg.Server.RateBurst,
			s.logger,
		)
		middlewareChain = append(middlewareChain, rateLimiter.Limit)
	}

	// Apply middleware to router
	chain := middleware.Chain(middlewareChain...)
	s.router.Use(func(next http.Handler) http.Handler {
		return chain(next)
	})

	// Health check endpoints
	s.router.HandleFunc("/health", s.healthCheck.LivenessHandler).Methods(http.MethodGet)
	s.router.HandleFunc("/ready", s.healthCheck.ReadinessHandler).Methods(http.MethodGet)

	// API v1 routes
	v1 := s.router.PathPrefix("/v1").Subrouter()

	// Bulk ticket synchronization. These are not safe to re-run blindly,
	// so they go through the idempotency cache.
	issues := v1.PathPrefix("/issues").Subrouter()
	issues.Use(s.idempotency.Handle)
	issues.HandleFunc("/bulk-generate", s.handlers.BulkGenerate).Methods(http.MethodPost)
	issues.HandleFunc("/bulk-update", s.handlers.BulkUpdate).Methods(http.MethodPost)
	issues.HandleFunc("/bulk-child-generate", s.handlers.BulkChildGenerate).Methods(http.MethodPost)

	// Index maintenance. Reindex is idempotent on its own.
	v1.HandleFunc("/reindex", s.handlers.Reindex).Methods(http.MethodPost)

	// Not found handler
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		s.errorHandler.WriteErrorResponse(w, http.StatusNotFound, apierrors.ErrorCodeInvalidRequest, "endpoint not found", requestID)
	})

	// Method not allowed handler
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		s.errorHandler.WriteErrorResponse(w, http.StatusMethodNotAllowed, apierrors.ErrorCodeInvalidRequest, "method not allowed", requestID)
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server",
		zap.String("host", s.cfg.Server.Host),
		zap.Int("port", s.cfg.Server.Port),
	)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// GetRouter returns the router for testing purposes.
func (s *Server) GetRouter() *mux.Router {
	return s.router
}
