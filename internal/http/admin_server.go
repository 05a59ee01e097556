package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	eventHTTP "github.com/allisson/cecsync/internal/event/http"
	"github.com/allisson/cecsync/internal/metrics"
)

// readinessTimeout bounds each readiness check.
const readinessTimeout = 2 * time.Second

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// AdminServer exposes health, Prometheus metrics and the event inspection API on a separate port.
type AdminServer struct {
	server *http.Server
	logger *slog.Logger
	checks map[string]HealthCheck
}

// NewAdminServer creates a new AdminServer. metricsProvider and eventHandler may be nil to leave
// their routes out.
func NewAdminServer(
	host string,
	port int,
	logger *slog.Logger,
	metricsProvider *metrics.Provider,
	eventHandler *eventHTTP.EventHandler,
	checks map[string]HealthCheck,
) *AdminServer {
	s := &AdminServer{
		logger: logger,
		checks: checks,
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(CustomLoggerMiddleware(logger))

	router.GET("/health", s.healthHandler)
	router.GET("/ready", s.readinessHandler)

	if metricsProvider != nil {
		router.GET("/metrics", gin.WrapH(metricsProvider.Handler()))
	}

	if eventHandler != nil {
		v1 := router.Group("/v1")
		v1.GET("/events", eventHandler.ListHandler)
		v1.POST("/events/:id/requeue", eventHandler.RequeueHandler)
	}

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", host, port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// GetHandler returns the http.Handler for testing purposes.
func (s *AdminServer) GetHandler() http.Handler {
	return s.server.Handler
}

// Start starts the admin HTTP server.
func (s *AdminServer) Start(ctx context.Context) error {
	s.logger.Info("starting admin server", slog.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start admin server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the admin HTTP server.
func (s *AdminServer) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down admin server")
	return s.server.Shutdown(ctx)
}

func (s *AdminServer) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (s *AdminServer) readinessHandler(c *gin.Context) {
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	ready := true
	components := make(map[string]string, len(names))
	for _, name := range names {
		ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
		err := s.checks[name](ctx)
		cancel()

		if err != nil {
			s.logger.Warn("readiness check failed", slog.String("component", name), slog.Any("error", err))
			components[name] = "error"
			ready = false
			continue
		}
		components[name] = "ok"
	}

	if !ready {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "components": components})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready", "components": components})
}
