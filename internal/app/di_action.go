package app

import (
	"context"
	"fmt"

	actionService "github.com/allisson/cecsync/internal/action/service"
	actionUsecase "github.com/allisson/cecsync/internal/action/usecase"
	contentService "github.com/allisson/cecsync/internal/content/service"
	eventDomain "github.com/allisson/cecsync/internal/event/domain"
	eventUsecase "github.com/allisson/cecsync/internal/event/usecase"
	jobUsecase "github.com/allisson/cecsync/internal/job/usecase"
)

// SourceClient returns the client of the content server emitting webhooks.
func (c *Container) SourceClient() (*contentService.Client, error) {
	var err error
	c.sourceClientInit.Do(func() {
		c.sourceClient, err = c.initSourceClient()
		if err != nil {
			c.initErrors["sourceClient"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["sourceClient"]; exists {
		return nil, storedErr
	}
	return c.sourceClient, nil
}

// DestinationClient returns the client of the content server receiving the changes.
func (c *Container) DestinationClient() (*contentService.Client, error) {
	var err error
	c.destinationClientInit.Do(func() {
		c.destinationClient, err = c.initDestinationClient()
		if err != nil {
			c.initErrors["destinationClient"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["destinationClient"]; exists {
		return nil, storedErr
	}
	return c.destinationClient, nil
}

// SourcePoller returns the job poller bound to the source server.
func (c *Container) SourcePoller() (*jobUsecase.Poller, error) {
	var err error
	c.sourcePollerInit.Do(func() {
		var client *contentService.Client
		client, err = c.SourceClient()
		if err != nil {
			err = fmt.Errorf("failed to get source client for poller: %w", err)
			c.initErrors["sourcePoller"] = err
			return
		}
		c.sourcePoller = c.newPoller(client)
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["sourcePoller"]; exists {
		return nil, storedErr
	}
	return c.sourcePoller, nil
}

// DestinationPoller returns the job poller bound to the destination server.
func (c *Container) DestinationPoller() (*jobUsecase.Poller, error) {
	var err error
	c.destinationPollerInit.Do(func() {
		var client *contentService.Client
		client, err = c.DestinationClient()
		if err != nil {
			err = fmt.Errorf("failed to get destination client for poller: %w", err)
			c.initErrors["destinationPoller"] = err
			return
		}
		c.destinationPoller = c.newPoller(client)
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["destinationPoller"]; exists {
		return nil, storedErr
	}
	return c.destinationPoller, nil
}

// Spool returns the blob bucket staging export archives.
func (c *Container) Spool() (*actionService.Spool, error) {
	var err error
	c.spoolInit.Do(func() {
		c.spool, err = actionService.OpenSpool(context.Background(), c.config.SpoolURL)
		if err != nil {
			c.initErrors["spool"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["spool"]; exists {
		return nil, storedErr
	}
	return c.spool, nil
}

// ActionHandler returns the handler registry routing every supported action, wrapped with metrics.
func (c *Container) ActionHandler() (eventUsecase.ActionHandler, error) {
	var err error
	c.actionHandlerInit.Do(func() {
		c.actionHandler, err = c.initActionHandler()
		if err != nil {
			c.initErrors["actionHandler"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["actionHandler"]; exists {
		return nil, storedErr
	}
	return c.actionHandler, nil
}

// initSourceClient creates the source client with the decrypted password.
func (c *Container) initSourceClient() (*contentService.Client, error) {
	credentials, err := c.Credentials()
	if err != nil {
		return nil, fmt.Errorf("failed to get credentials for source client: %w", err)
	}
	return contentService.NewClient(contentService.Config{
		Name:     "source",
		BaseURL:  c.config.SourceServerURL,
		Username: c.config.SourceUsername,
		Password: credentials.SourcePassword,
		Timeout:  c.config.ContentRequestTimeout,
	}, c.Logger())
}

// initDestinationClient creates the destination client with the decrypted password.
func (c *Container) initDestinationClient() (*contentService.Client, error) {
	credentials, err := c.Credentials()
	if err != nil {
		return nil, fmt.Errorf("failed to get credentials for destination client: %w", err)
	}
	return contentService.NewClient(contentService.Config{
		Name:     "destination",
		BaseURL:  c.config.DestServerURL,
		Username: c.config.DestUsername,
		Password: credentials.DestPassword,
		Timeout:  c.config.ContentRequestTimeout,
	}, c.Logger())
}

func (c *Container) newPoller(client *contentService.Client) *jobUsecase.Poller {
	return jobUsecase.NewPoller(jobUsecase.PollerConfig{
		Interval:      c.config.JobPollInterval,
		MaxIterations: c.config.JobMaxPollIterations,
	}, client, c.Logger())
}

// initActionHandler wires every action to its handler.
func (c *Container) initActionHandler() (eventUsecase.ActionHandler, error) {
	source, err := c.SourceClient()
	if err != nil {
		return nil, fmt.Errorf("failed to get source client for action handler: %w", err)
	}
	destination, err := c.DestinationClient()
	if err != nil {
		return nil, fmt.Errorf("failed to get destination client for action handler: %w", err)
	}
	sourceJobs, err := c.SourcePoller()
	if err != nil {
		return nil, fmt.Errorf("failed to get source poller for action handler: %w", err)
	}
	destinationJobs, err := c.DestinationPoller()
	if err != nil {
		return nil, fmt.Errorf("failed to get destination poller for action handler: %w", err)
	}
	spool, err := c.Spool()
	if err != nil {
		return nil, fmt.Errorf("failed to get spool for action handler: %w", err)
	}
	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for action handler: %w", err)
	}

	logger := c.Logger()
	registry := actionUsecase.NewRegistry(logger).
		Register(
			actionUsecase.NewCreateUpdateHandler(
				source, sourceJobs, destination, destinationJobs, spool, c.config.DestRepositoryID, logger,
			),
			eventDomain.ActionItemCreated,
			eventDomain.ActionItemUpdated,
			eventDomain.ActionAssetCreated,
			eventDomain.ActionAssetUpdated,
		).
		Register(
			actionUsecase.NewDeleteHandler(destination, logger),
			eventDomain.ActionItemDeleted,
			eventDomain.ActionAssetDeleted,
		).
		Register(
			actionUsecase.NewPublishHandler(destination, destinationJobs, logger),
			eventDomain.ActionChannelAssetPublished,
		).
		Register(
			actionUsecase.NewUnpublishHandler(destination, destinationJobs, logger),
			eventDomain.ActionChannelAssetUnpublished,
		)

	return actionUsecase.NewActionHandlerWithMetrics(registry, businessMetrics), nil
}
