package usecase

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/allisson/cecsync/internal/errors"
	"github.com/allisson/cecsync/internal/event/domain"
	"github.com/allisson/cecsync/internal/metrics"
)

// Credentials are the Basic credentials presented with a webhook delivery.
type Credentials struct {
	Username string
	Password string
	Present  bool
}

// Payload holds the webhook fields the queue keeps.
type Payload struct {
	EventName    string
	EventID      string
	EntityID     string
	EntityName   string
	RepositoryID string
	ItemIDs      []string
	// Invalid is set when the body could not be decoded or validated. It is reported only after
	// the credentials check.
	Invalid error
}

type ingestUseCase struct {
	queue    QueueUseCase
	verifier CredentialVerifier
	metrics  metrics.BusinessMetrics
	logger   *slog.Logger
}

// NewIngestUseCase creates a new IngestUseCase.
func NewIngestUseCase(
	queue QueueUseCase,
	verifier CredentialVerifier,
	businessMetrics metrics.BusinessMetrics,
	logger *slog.Logger,
) IngestUseCase {
	return &ingestUseCase{
		queue:    queue,
		verifier: verifier,
		metrics:  businessMetrics,
		logger:   logger,
	}
}

// Ingest authenticates and validates a delivery and appends it to the queue.
// Rejected deliveries return ErrAuthRejected, ErrMalformedEvent or ErrUnsupportedAction and
// never touch the queue.
func (u *ingestUseCase) Ingest(
	ctx context.Context,
	credentials Credentials,
	payload Payload,
) (*domain.Event, error) {
	event, status, err := u.ingest(ctx, credentials, payload)
	u.metrics.RecordOperation(ctx, "webhook", "ingest", status)
	return event, err
}

func (u *ingestUseCase) ingest(
	ctx context.Context,
	credentials Credentials,
	payload Payload,
) (*domain.Event, string, error) {
	if err := u.verifier.Verify(credentials.Username, credentials.Password, credentials.Present); err != nil {
		u.logger.Warn("webhook authentication failed, event dropped",
			slog.String("event_name", payload.EventName),
			slog.Bool("credentials_present", credentials.Present),
		)
		return nil, "rejected", domain.ErrAuthRejected
	}

	if payload.Invalid != nil {
		u.logger.Warn("invalid webhook payload, event dropped",
			slog.String("event_name", payload.EventName),
			slog.Any("error", payload.Invalid),
		)
		return nil, "malformed", errors.Join(domain.ErrMalformedEvent, payload.Invalid)
	}

	eventName := strings.TrimSpace(payload.EventName)
	entityID := strings.TrimSpace(payload.EntityID)
	if eventName == "" || entityID == "" {
		u.logger.Warn("webhook payload missing event name or entity id, event dropped",
			slog.String("event_name", eventName),
			slog.String("entity_id", entityID),
		)
		return nil, "malformed", domain.ErrMalformedEvent
	}

	action, err := domain.ParseAction(eventName)
	if err != nil {
		u.logger.Warn("unsupported webhook event, event dropped", slog.String("event_name", eventName))
		return nil, "unsupported", err
	}

	eventID := strings.TrimSpace(payload.EventID)
	if eventID == "" {
		eventID = uuid.NewString()
		u.logger.Warn("webhook payload has no event id, generated one", slog.String("event_id", eventID))
	}

	event := &domain.Event{
		ID:           eventID,
		Action:       action,
		EntityID:     entityID,
		EntityName:   payload.EntityName,
		RepositoryID: payload.RepositoryID,
		ItemIDs:      payload.ItemIDs,
	}

	if err := u.queue.Append(ctx, event); err != nil {
		u.logger.Error("failed to append event",
			slog.String("event_id", event.ID),
			slog.String("action", action.String()),
			slog.Any("error", err),
		)
		return nil, "error", errors.Wrap(err, "failed to queue event")
	}

	u.logger.Info("event queued",
		slog.String("event_id", event.ID),
		slog.String("action", action.String()),
		slog.String("entity_id", entityID),
	)
	return event, "queued", nil
}
