// Package app provides dependency injection container for assembling application components.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	actionService "github.com/allisson/cecsync/internal/action/service"
	"github.com/allisson/cecsync/internal/config"
	contentService "github.com/allisson/cecsync/internal/content/service"
	credentialService "github.com/allisson/cecsync/internal/credential/service"
	"github.com/allisson/cecsync/internal/database"
	eventService "github.com/allisson/cecsync/internal/event/service"
	eventUsecase "github.com/allisson/cecsync/internal/event/usecase"
	"github.com/allisson/cecsync/internal/http"
	jobUsecase "github.com/allisson/cecsync/internal/job/usecase"
	"github.com/allisson/cecsync/internal/metrics"
)

// dbPingTimeout bounds the connectivity check made when the database pool is opened.
const dbPingTimeout = 10 * time.Second

// Credentials holds the plaintext secrets after "kms:" values have been decrypted.
type Credentials struct {
	WebhookPassword string
	SourcePassword  string
	DestPassword    string
}

// Container holds all application dependencies and provides methods to access them.
// It follows the lazy initialization pattern - components are created on first access.
type Container struct {
	// Configuration
	config *config.Config

	// Infrastructure
	logger           *slog.Logger
	db               *sql.DB
	metricsProvider  *metrics.Provider
	businessMetrics  metrics.BusinessMetrics
	kmsKeeper        credentialService.Keeper
	credentialCipher *credentialService.CredentialCipher
	credentials      *Credentials
	spool            *actionService.Spool

	// Managers
	txManager database.TxManager

	// Event queue
	queueRepo          eventUsecase.QueueRepository
	queueUseCase       eventUsecase.QueueUseCase
	credentialVerifier *eventService.CredentialVerifier
	ingestUseCase      eventUsecase.IngestUseCase
	dispatcher         *eventUsecase.Dispatcher

	// Content servers and actions
	sourceClient      *contentService.Client
	destinationClient *contentService.Client
	sourcePoller      *jobUsecase.Poller
	destinationPoller *jobUsecase.Poller
	actionHandler     eventUsecase.ActionHandler

	// Servers
	httpServer  *http.Server
	adminServer *http.AdminServer

	// Initialization flags and mutex for thread-safety
	mu                     sync.Mutex
	loggerInit             sync.Once
	dbInit                 sync.Once
	txManagerInit          sync.Once
	metricsProviderInit    sync.Once
	businessMetricsInit    sync.Once
	credentialCipherInit   sync.Once
	credentialsInit        sync.Once
	spoolInit              sync.Once
	queueRepoInit          sync.Once
	queueUseCaseInit       sync.Once
	credentialVerifierInit sync.Once
	ingestUseCaseInit      sync.Once
	dispatcherInit         sync.Once
	sourceClientInit       sync.Once
	destinationClientInit  sync.Once
	sourcePollerInit       sync.Once
	destinationPollerInit  sync.Once
	actionHandlerInit      sync.Once
	httpServerInit         sync.Once
	adminServerInit        sync.Once
	initErrors             map[string]error
}

// NewContainer creates a new dependency injection container with the provided configuration.
func NewContainer(cfg *config.Config) *Container {
	return &Container{
		config:     cfg,
		initErrors: make(map[string]error),
	}
}

// Config returns the application configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// Logger returns the configured logger instance.
// It creates a new logger on first access based on the log level in configuration.
func (c *Container) Logger() *slog.Logger {
	c.loggerInit.Do(func() {
		c.logger = c.initLogger()
	})
	return c.logger
}

// DB returns the database connection.
// It creates and configures the database connection on first access.
func (c *Container) DB() (*sql.DB, error) {
	var err error
	c.dbInit.Do(func() {
		c.db, err = c.initDB()
		if err != nil {
			c.initErrors["db"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["db"]; exists {
		return nil, storedErr
	}
	return c.db, nil
}

// TxManager returns the transaction manager guarding queue mutations.
// The file queue needs no transaction, so it gets a no-op manager and no database.
func (c *Container) TxManager() (database.TxManager, error) {
	var err error
	c.txManagerInit.Do(func() {
		c.txManager, err = c.initTxManager()
		if err != nil {
			c.initErrors["txManager"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["txManager"]; exists {
		return nil, storedErr
	}
	return c.txManager, nil
}

// MetricsProvider returns the metrics provider, or nil when metrics are disabled.
func (c *Container) MetricsProvider() (*metrics.Provider, error) {
	var err error
	c.metricsProviderInit.Do(func() {
		c.metricsProvider, err = c.initMetricsProvider()
		if err != nil {
			c.initErrors["metricsProvider"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["metricsProvider"]; exists {
		return nil, storedErr
	}
	return c.metricsProvider, nil
}

// BusinessMetrics returns the business metrics recorder, a no-op one when metrics are disabled.
func (c *Container) BusinessMetrics() (metrics.BusinessMetrics, error) {
	var err error
	c.businessMetricsInit.Do(func() {
		c.businessMetrics, err = c.initBusinessMetrics()
		if err != nil {
			c.initErrors["businessMetrics"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["businessMetrics"]; exists {
		return nil, storedErr
	}
	return c.businessMetrics, nil
}

// CredentialCipher returns the cipher for "kms:" credentials. Without KMS_KEY_URI it only
// passes plaintext values through.
func (c *Container) CredentialCipher() (*credentialService.CredentialCipher, error) {
	var err error
	c.credentialCipherInit.Do(func() {
		c.credentialCipher, err = c.initCredentialCipher()
		if err != nil {
			c.initErrors["credentialCipher"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["credentialCipher"]; exists {
		return nil, storedErr
	}
	return c.credentialCipher, nil
}

// Credentials returns the configured secrets with encrypted values decrypted.
func (c *Container) Credentials() (*Credentials, error) {
	var err error
	c.credentialsInit.Do(func() {
		c.credentials, err = c.initCredentials()
		if err != nil {
			c.initErrors["credentials"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["credentials"]; exists {
		return nil, storedErr
	}
	return c.credentials, nil
}

// Shutdown performs cleanup of all initialized resources.
// It should be called when the application is shutting down.
func (c *Container) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var shutdownErrors []error

	if c.httpServer != nil {
		if err := c.httpServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("http server shutdown: %w", err))
		}
	}

	if c.adminServer != nil {
		if err := c.adminServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("admin server shutdown: %w", err))
		}
	}

	if c.spool != nil {
		if err := c.spool.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("spool close: %w", err))
		}
	}

	if c.kmsKeeper != nil {
		if err := c.kmsKeeper.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("kms keeper close: %w", err))
		}
	}

	if c.metricsProvider != nil {
		if err := c.metricsProvider.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics provider shutdown: %w", err))
		}
	}

	if c.db != nil {
		if err := c.db.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("database close: %w", err))
		}
	}

	if len(shutdownErrors) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(shutdownErrors...))
	}

	return nil
}

// initLogger creates and configures a structured logger based on the log level.
func (c *Container) initLogger() *slog.Logger {
	var logLevel slog.Level
	switch c.config.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})

	return slog.New(handler)
}

// initDB creates and configures the database connection.
func (c *Container) initDB() (*sql.DB, error) {
	switch c.config.DBDriver {
	case database.DriverPostgres, database.DriverMySQL:
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}

	db, err := database.Connect(context.Background(), database.Config{
		Driver:             c.config.DBDriver,
		ConnectionString:   c.config.DBConnectionString,
		MaxOpenConnections: c.config.DBMaxOpenConnections,
		MaxIdleConnections: c.config.DBMaxIdleConnections,
		ConnMaxLifetime:    c.config.DBConnMaxLifetime,
		PingTimeout:        dbPingTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// initTxManager creates the transaction manager for the configured queue driver.
func (c *Container) initTxManager() (database.TxManager, error) {
	if !c.config.UsesDatabase() {
		return database.NewNoopTxManager(), nil
	}
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for tx manager: %w", err)
	}
	return database.NewTxManager(db), nil
}

// initMetricsProvider creates the Prometheus-backed provider when metrics are enabled.
func (c *Container) initMetricsProvider() (*metrics.Provider, error) {
	if !c.config.MetricsEnabled {
		return nil, nil
	}
	provider, err := metrics.NewProvider(c.config.MetricsNamespace)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics provider: %w", err)
	}
	return provider, nil
}

// initBusinessMetrics creates the business metrics recorder.
func (c *Container) initBusinessMetrics() (metrics.BusinessMetrics, error) {
	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for business metrics: %w", err)
	}
	if provider == nil {
		return metrics.NewNoOpBusinessMetrics(), nil
	}
	return metrics.NewBusinessMetrics(provider.MeterProvider(), c.config.MetricsNamespace)
}

// initCredentialCipher opens the KMS keeper when a key URI is configured.
func (c *Container) initCredentialCipher() (*credentialService.CredentialCipher, error) {
	if c.config.KMSKeyURI == "" {
		return credentialService.NewCredentialCipher(nil), nil
	}
	keeper, err := credentialService.NewKMSService().OpenKeeper(context.Background(), c.config.KMSKeyURI)
	if err != nil {
		return nil, err
	}
	c.kmsKeeper = keeper
	return credentialService.NewCredentialCipher(keeper), nil
}

// initCredentials decrypts the configured secrets.
func (c *Container) initCredentials() (*Credentials, error) {
	cipher, err := c.CredentialCipher()
	if err != nil {
		return nil, fmt.Errorf("failed to get credential cipher: %w", err)
	}

	credentials := &Credentials{
		WebhookPassword: c.config.WebhookPassword,
		SourcePassword:  c.config.SourcePassword,
		DestPassword:    c.config.DestPassword,
	}
	err = cipher.RevealAll(context.Background(), map[string]*string{
		"WEBHOOK_PASSWORD": &credentials.WebhookPassword,
		"SOURCE_PASSWORD":  &credentials.SourcePassword,
		"DEST_PASSWORD":    &credentials.DestPassword,
	})
	if err != nil {
		return nil, err
	}
	return credentials, nil
}
