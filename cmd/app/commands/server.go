package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/allisson/cecsync/internal/app"
	"github.com/allisson/cecsync/internal/config"
)

// Runner is a component that runs until its context is cancelled.
type Runner interface {
	Start(ctx context.Context) error
}

// Server is a Runner that must be stopped explicitly.
type Server interface {
	Runner
	Shutdown(ctx context.Context) error
}

// RunServer starts the webhook server, the admin server and the event dispatcher.
// Blocks until receiving SIGINT/SIGTERM or until one component fails, then stops the servers
// within ShutdownTimeout and waits for the in-flight action handler.
func RunServer(ctx context.Context, version string) error {
	cfg := config.Load()

	gin.SetMode(cfg.GetGinMode())

	container := app.NewContainer(cfg)

	logger := container.Logger()
	logger.Info("starting server", slog.String("version", version))

	defer closeContainer(container, logger)

	// Get HTTP server from container (this initializes all dependencies)
	httpServer, err := container.HTTPServer()
	if err != nil {
		return fmt.Errorf("failed to initialize HTTP server: %w", err)
	}

	dispatcher, err := container.Dispatcher()
	if err != nil {
		return fmt.Errorf("failed to initialize dispatcher: %w", err)
	}

	servers := []Server{httpServer}
	if cfg.AdminEnabled {
		adminServer, err := container.AdminServer()
		if err != nil {
			return fmt.Errorf("failed to initialize admin server: %w", err)
		}
		servers = append(servers, adminServer)
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return serve(ctx, logger, cfg.ShutdownTimeout, servers, []Runner{dispatcher})
}

// serve runs servers and workers until ctx is cancelled or one of them fails.
func serve(
	ctx context.Context,
	logger *slog.Logger,
	shutdownTimeout time.Duration,
	servers []Server,
	workers []Runner,
) error {
	group, groupCtx := errgroup.WithContext(ctx)

	for _, server := range servers {
		group.Go(func() error {
			return server.Start(groupCtx)
		})
	}

	for _, worker := range workers {
		group.Go(func() error {
			if err := worker.Start(groupCtx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutdown signal received")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer shutdownCancel()

		var shutdownErrors []error
		for _, server := range servers {
			if err := server.Shutdown(shutdownCtx); err != nil {
				shutdownErrors = append(shutdownErrors, err)
			}
		}
		if len(shutdownErrors) > 0 {
			return fmt.Errorf("server shutdown: %w", errors.Join(shutdownErrors...))
		}
		return nil
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logger.Info("server stopped")
	return nil
}
