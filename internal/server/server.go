package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/config"
	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/handlers"
	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/logger"
	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/middleware"
	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/security"
)

// Server represents the HTTP server
type Server struct {
	config             *config.Config
	logger             *logger.Logger
	router             *mux.Router
	httpServer         *http.Server
	managementHandler  *handlers.ManagementAPIHandler
	healthHandler      *handlers.HealthHandler
	metricsHandler     *handlers.MetricsHandler
	securityMiddleware *security.SecurityMiddleware
}

// NewServer creates a new HTTP server
func NewServer(
	config *config.Config,
	logger *logger.Logger,
	managementHandler *handlers.ManagementAPIHandler,
	healthHandler *handlers.HealthHandler,
	metricsHandler *handlers.MetricsHandler,
	securityMiddleware *security.SecurityMiddleware,
) *Server {
	server := &Server{
		config:             config,
		logger:             logger,
		router:             mux.NewRouter(),
		managementHandler:  managementHandler,
		healthHandler:      healthHandler,
		metricsHandler:     metricsHandler,
		securityMiddleware: securityMiddleware,
	}

	server.setupRoutes()
	server.setupHTTPServer()

	return server
}

// Handler returns the root handler, used by tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	// Health check endpoints
	s.router.HandleFunc("/health", s.healthHandler.HandleHealthCheck).Methods("GET")
	s.router.HandleFunc("/health/ready", s.healthHandler.HandleReadinessProbe).Methods("GET")
	s.router.HandleFunc("/health/live", s.healthHandler.HandleLivenessProbe).Methods("GET")
	s.router.HandleFunc("/health/component", s.healthHandler.HandleComponentHealth).Methods("GET")

	// Metrics endpoints
	s.router.HandleFunc("/metrics", s.metricsHandler.HandlePrometheus).Methods("GET")
	s.router.HandleFunc("/api/v1/outbox/status", s.metricsHandler.HandleOutboxStatus).Methods("GET")

	// Management API routes
	s.managementHandler.RegisterRoutes(s.router)

	// Order matters: security first, logging last
	for _, mw := range s.securityMiddleware.Middlewares() {
		s.router.Use(mw)
	}
	s.router.Use(middleware.CompressionMiddleware)
	s.router.Use(s.loggingMiddleware)
}

// setupHTTPServer configures the HTTP server
func (s *Server) setupHTTPServer() {
	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(s.config.Server.Host, s.config.Server.Port),
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(s.config.Server.IdleTimeout) * time.Second,
	}
}

// Start starts the HTTP server
func (s *Server) Start(ctx context.Context) error {
	s.logger.WithField("addr", s.httpServer.Addr).Info("Starting HTTP server")

	// Start server - this will block until the server is shut down
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.logger.WithError(err).Error("HTTP server error")
		return err
	}

	return nil
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	s.logger.Info("Shutting down HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.httpServer.Shutdown(ctx)
}

// Middleware

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Wrap response writer to capture status code
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		s.logger.WithFields(map[string]interface{}{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      wrapped.statusCode,
			"duration_ms": time.Since(start).Milliseconds(),
			"remote_addr": security.ClientIP(r),
			"user_agent":  r.UserAgent(),
		}).Info("HTTP request")
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
