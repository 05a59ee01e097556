// Package usecase implements the durable event queue, webhook ingestion and the single-flight
// dispatcher that drains the queue through action handlers.
package usecase

import (
	"context"

	"github.com/allisson/cecsync/internal/event/domain"
)

// QueueRepository persists the whole queue as one document.
type QueueRepository interface {
	Load(ctx context.Context) ([]*domain.Event, error)
	Save(ctx context.Context, events []*domain.Event) error
}

// QueueUseCase is the durable, ordered event queue.
type QueueUseCase interface {
	// Load returns the queue after applying the retention window. It does not persist the pruning.
	Load(ctx context.Context) ([]*domain.Event, error)
	// Append adds an event at the tail and persists the queue before returning.
	Append(ctx context.Context, event *domain.Event) error
	// UpdateOutcome applies a handler result to the first unprocessed event with the given id.
	UpdateOutcome(ctx context.Context, id string, success, retry bool) (domain.Disposition, error)
	// Prune drops expired processed events and persists the queue when something was removed.
	Prune(ctx context.Context) (int, error)
	// NextPending returns the first unprocessed event in queue order, or nil when there is none.
	NextPending(ctx context.Context) (*domain.Event, error)
	// List returns the queue, optionally restricted to unprocessed events.
	List(ctx context.Context, pendingOnly bool) ([]*domain.Event, error)
	// Requeue resets a failed processed event and moves it to the tail.
	Requeue(ctx context.Context, id string) (*domain.Event, error)
	// Notify fires after every mutation that leaves new pending work in the queue.
	Notify() <-chan struct{}
}

// IngestUseCase turns webhook deliveries into queued events.
type IngestUseCase interface {
	Ingest(ctx context.Context, credentials Credentials, payload Payload) (*domain.Event, error)
}

// ActionHandler performs the synchronization work for one event and reports a normalized outcome.
// Implementations never return errors; every failure is folded into the outcome.
type ActionHandler interface {
	Handle(ctx context.Context, event *domain.Event) domain.Outcome
}

// CredentialVerifier checks webhook Basic credentials.
type CredentialVerifier interface {
	Verify(username, password string, present bool) error
}
