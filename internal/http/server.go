// Package http provides the webhook and admin HTTP servers.
package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	eventHTTP "github.com/allisson/cecsync/internal/event/http"
	"github.com/allisson/cecsync/internal/metrics"
)

// ServerConfig holds the listener settings of the webhook server.
type ServerConfig struct {
	Host             string
	Port             int
	TLSKeyPath       string
	TLSCertPath      string
	CORSEnabled      bool
	CORSAllowOrigins string
}

// Server receives webhook calls from the source content server.
type Server struct {
	config ServerConfig
	router *gin.Engine
	server *http.Server
	logger *slog.Logger
}

// NewServer creates a new webhook Server. Call SetupRouter before Start.
func NewServer(config ServerConfig, logger *slog.Logger) *Server {
	return &Server{
		config: config,
		logger: logger,
		server: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// SetupRouter registers the middleware chain and the catch-all webhook routes.
// Any GET answers the liveness banner; any POST is a webhook call.
func (s *Server) SetupRouter(
	webhookHandler *eventHTTP.WebhookHandler,
	metricsProvider *metrics.Provider,
	metricsNamespace string,
) {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestid.New(requestid.WithGenerator(func() string {
		return uuid.Must(uuid.NewV7()).String()
	})))
	router.Use(CustomLoggerMiddleware(s.logger))

	if corsMiddleware := createCORSMiddleware(s.config.CORSEnabled, s.config.CORSAllowOrigins, s.logger); corsMiddleware != nil {
		router.Use(corsMiddleware)
	}
	if metricsProvider != nil {
		router.Use(metrics.HTTPMetricsMiddleware(metricsProvider.MeterProvider(), metricsNamespace))
	}

	router.GET("/*path", webhookHandler.LivenessHandler)
	router.POST("/*path", webhookHandler.ReceiveHandler)

	s.router = router
}

// GetHandler returns the http.Handler for testing purposes.
func (s *Server) GetHandler() http.Handler {
	return s.router
}

// Start serves until Shutdown is called. HTTPS is used when both TLS paths are configured.
func (s *Server) Start(ctx context.Context) error {
	if s.router == nil {
		return errors.New("router not initialized")
	}
	s.server.Handler = s.router

	var err error
	if s.config.TLSKeyPath != "" && s.config.TLSCertPath != "" {
		s.logger.Info("starting https server", slog.String("addr", s.server.Addr))
		err = s.server.ListenAndServeTLS(s.config.TLSCertPath, s.config.TLSKeyPath)
	} else {
		s.logger.Warn("TLS key or certificate not configured, serving plain http")
		s.logger.Info("starting http server", slog.String("addr", s.server.Addr))
		err = s.server.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server, waiting for in-flight webhook calls.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.server.Shutdown(ctx)
}
