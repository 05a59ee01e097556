package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/allisson/cecsync/internal/config"
	eventHTTP "github.com/allisson/cecsync/internal/event/http"
	eventRepository "github.com/allisson/cecsync/internal/event/repository"
	eventService "github.com/allisson/cecsync/internal/event/service"
	eventUsecase "github.com/allisson/cecsync/internal/event/usecase"
	"github.com/allisson/cecsync/internal/http"
)

// QueueRepository returns the queue storage selected by QUEUE_DRIVER.
func (c *Container) QueueRepository() (eventUsecase.QueueRepository, error) {
	var err error
	c.queueRepoInit.Do(func() {
		c.queueRepo, err = c.initQueueRepository()
		if err != nil {
			c.initErrors["queueRepo"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["queueRepo"]; exists {
		return nil, storedErr
	}
	return c.queueRepo, nil
}

// QueueUseCase returns the durable event queue.
func (c *Container) QueueUseCase() (eventUsecase.QueueUseCase, error) {
	var err error
	c.queueUseCaseInit.Do(func() {
		c.queueUseCase, err = c.initQueueUseCase()
		if err != nil {
			c.initErrors["queueUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["queueUseCase"]; exists {
		return nil, storedErr
	}
	return c.queueUseCase, nil
}

// CredentialVerifier returns the webhook Basic credential verifier.
func (c *Container) CredentialVerifier() (*eventService.CredentialVerifier, error) {
	var err error
	c.credentialVerifierInit.Do(func() {
		c.credentialVerifier, err = c.initCredentialVerifier()
		if err != nil {
			c.initErrors["credentialVerifier"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["credentialVerifier"]; exists {
		return nil, storedErr
	}
	return c.credentialVerifier, nil
}

// IngestUseCase returns the use case turning webhook deliveries into queued events.
func (c *Container) IngestUseCase() (eventUsecase.IngestUseCase, error) {
	var err error
	c.ingestUseCaseInit.Do(func() {
		c.ingestUseCase, err = c.initIngestUseCase()
		if err != nil {
			c.initErrors["ingestUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["ingestUseCase"]; exists {
		return nil, storedErr
	}
	return c.ingestUseCase, nil
}

// Dispatcher returns the single-flight queue consumer.
func (c *Container) Dispatcher() (*eventUsecase.Dispatcher, error) {
	var err error
	c.dispatcherInit.Do(func() {
		c.dispatcher, err = c.initDispatcher()
		if err != nil {
			c.initErrors["dispatcher"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["dispatcher"]; exists {
		return nil, storedErr
	}
	return c.dispatcher, nil
}

// HTTPServer returns the webhook server with its router set up.
func (c *Container) HTTPServer() (*http.Server, error) {
	var err error
	c.httpServerInit.Do(func() {
		c.httpServer, err = c.initHTTPServer()
		if err != nil {
			c.initErrors["httpServer"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["httpServer"]; exists {
		return nil, storedErr
	}
	return c.httpServer, nil
}

// AdminServer returns the admin server serving health, metrics and the events API.
func (c *Container) AdminServer() (*http.AdminServer, error) {
	var err error
	c.adminServerInit.Do(func() {
		c.adminServer, err = c.initAdminServer()
		if err != nil {
			c.initErrors["adminServer"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["adminServer"]; exists {
		return nil, storedErr
	}
	return c.adminServer, nil
}

// initQueueRepository creates the repository for the configured queue driver.
func (c *Container) initQueueRepository() (eventUsecase.QueueRepository, error) {
	switch c.config.QueueDriver {
	case config.QueueDriverFile:
		repo := eventRepository.NewFileQueueRepository(c.config.QueueFilePath)
		c.Logger().Info("using file event queue", slog.String("path", repo.Path()))
		return repo, nil
	case config.QueueDriverPostgres, config.QueueDriverMySQL:
		if c.config.DBDriver != c.config.QueueDriver {
			return nil, fmt.Errorf(
				"queue driver %q requires DB_DRIVER=%s, got %q",
				c.config.QueueDriver, c.config.QueueDriver, c.config.DBDriver,
			)
		}
		db, err := c.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get database for queue repository: %w", err)
		}
		if c.config.QueueDriver == config.QueueDriverMySQL {
			return eventRepository.NewMySQLQueueRepository(db), nil
		}
		return eventRepository.NewPostgreSQLQueueRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported queue driver: %s", c.config.QueueDriver)
	}
}

// initQueueUseCase creates the queue use case.
func (c *Container) initQueueUseCase() (eventUsecase.QueueUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for queue use case: %w", err)
	}
	repo, err := c.QueueRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get queue repository for queue use case: %w", err)
	}
	return eventUsecase.NewQueueUseCase(eventUsecase.QueueConfig{
		MaxRetries: c.config.QueueMaxRetries,
		Retention:  c.config.QueueRetention,
	}, txManager, repo, c.Logger()), nil
}

// initCredentialVerifier creates the verifier with the decrypted webhook password.
func (c *Container) initCredentialVerifier() (*eventService.CredentialVerifier, error) {
	credentials, err := c.Credentials()
	if err != nil {
		return nil, fmt.Errorf("failed to get credentials for webhook verifier: %w", err)
	}
	return eventService.NewCredentialVerifier(
		c.config.WebhookUsername,
		credentials.WebhookPassword,
		c.config.WebhookPasswordHash,
	)
}

// initIngestUseCase creates the ingest use case.
func (c *Container) initIngestUseCase() (eventUsecase.IngestUseCase, error) {
	queue, err := c.QueueUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get queue use case for ingest use case: %w", err)
	}
	verifier, err := c.CredentialVerifier()
	if err != nil {
		return nil, fmt.Errorf("failed to get credential verifier for ingest use case: %w", err)
	}
	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for ingest use case: %w", err)
	}
	return eventUsecase.NewIngestUseCase(queue, verifier, businessMetrics, c.Logger()), nil
}

// initDispatcher creates the dispatcher draining the queue through the action handlers.
func (c *Container) initDispatcher() (*eventUsecase.Dispatcher, error) {
	queue, err := c.QueueUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get queue use case for dispatcher: %w", err)
	}
	handler, err := c.ActionHandler()
	if err != nil {
		return nil, fmt.Errorf("failed to get action handler for dispatcher: %w", err)
	}
	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for dispatcher: %w", err)
	}
	return eventUsecase.NewDispatcher(eventUsecase.DispatcherConfig{
		SweepInterval: c.config.DispatcherSweepInterval,
	}, queue, handler, businessMetrics, c.Logger()), nil
}

// initHTTPServer creates the webhook server.
func (c *Container) initHTTPServer() (*http.Server, error) {
	ingest, err := c.IngestUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get ingest use case for http server: %w", err)
	}
	metricsProvider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for http server: %w", err)
	}

	server := http.NewServer(http.ServerConfig{
		Host:             c.config.ServerHost,
		Port:             c.config.ServerPort,
		TLSKeyPath:       c.config.TLSKeyPath,
		TLSCertPath:      c.config.TLSCertPath,
		CORSEnabled:      c.config.CORSEnabled,
		CORSAllowOrigins: c.config.CORSAllowOrigins,
	}, c.Logger())
	server.SetupRouter(
		eventHTTP.NewWebhookHandler(ingest, c.config.WebhookAckBeforePersist, c.Logger()),
		metricsProvider,
		c.config.MetricsNamespace,
	)
	return server, nil
}

// initAdminServer creates the admin server with queue and database readiness checks.
func (c *Container) initAdminServer() (*http.AdminServer, error) {
	queue, err := c.QueueUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get queue use case for admin server: %w", err)
	}
	metricsProvider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for admin server: %w", err)
	}

	checks := map[string]http.HealthCheck{
		"queue": func(ctx context.Context) error {
			_, err := queue.Load(ctx)
			return err
		},
	}
	if c.config.UsesDatabase() {
		db, err := c.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get database for admin server: %w", err)
		}
		checks["database"] = db.PingContext
	}

	return http.NewAdminServer(
		c.config.AdminHost,
		c.config.AdminPort,
		c.Logger(),
		metricsProvider,
		eventHTTP.NewEventHandler(queue, c.Logger()),
		checks,
	), nil
}
