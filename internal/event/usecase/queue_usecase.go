package usecase

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/allisson/cecsync/internal/database"
	"github.com/allisson/cecsync/internal/errors"
	"github.com/allisson/cecsync/internal/event/domain"
)

// QueueConfig holds queue use case configuration.
type QueueConfig struct {
	MaxRetries int
	Retention  time.Duration
}

// queueUseCase serializes every load-mutate-persist cycle behind a mutex. The TxManager extends
// the critical section across processes for SQL backends.
type queueUseCase struct {
	config    QueueConfig
	txManager database.TxManager
	repo      QueueRepository
	logger    *slog.Logger
	now       func() time.Time

	mu     sync.Mutex
	notify chan struct{}
}

// NewQueueUseCase creates a new QueueUseCase.
func NewQueueUseCase(
	config QueueConfig,
	txManager database.TxManager,
	repo QueueRepository,
	logger *slog.Logger,
) QueueUseCase {
	if config.MaxRetries <= 0 {
		config.MaxRetries = domain.DefaultMaxRetries
	}
	if config.Retention <= 0 {
		config.Retention = domain.DefaultRetention
	}
	return &queueUseCase{
		config:    config,
		txManager: txManager,
		repo:      repo,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
		notify:    make(chan struct{}, 1),
	}
}

// Notify returns the append notification channel. At most one notification is buffered.
func (q *queueUseCase) Notify() <-chan struct{} {
	return q.notify
}

func (q *queueUseCase) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Load returns the retained queue.
func (q *queueUseCase) Load(ctx context.Context) ([]*domain.Event, error) {
	var events []*domain.Event
	err := q.withQueue(ctx, func(ctx context.Context, queue []*domain.Event) ([]*domain.Event, bool, error) {
		events = cloneEvents(queue)
		return queue, false, nil
	})
	return events, err
}

// Append adds the event at the tail of the queue.
func (q *queueUseCase) Append(ctx context.Context, event *domain.Event) error {
	if event == nil || event.ID == "" || event.EntityID == "" {
		return domain.ErrMalformedEvent
	}
	if !event.Action.IsSupported() {
		return domain.ErrUnsupportedAction
	}

	queued := event.Clone()
	queued.Reset()

	err := q.withQueue(ctx, func(ctx context.Context, queue []*domain.Event) ([]*domain.Event, bool, error) {
		return append(queue, queued), true, nil
	})
	if err != nil {
		return err
	}

	q.signal()
	return nil
}

// UpdateOutcome applies the outcome rules: a retryable failure under the retry budget is counted
// and moved to the tail, a retryable failure at the budget is given up, anything else completes.
func (q *queueUseCase) UpdateOutcome(
	ctx context.Context,
	id string,
	success, retry bool,
) (domain.Disposition, error) {
	var disposition domain.Disposition

	err := q.withQueue(ctx, func(ctx context.Context, queue []*domain.Event) ([]*domain.Event, bool, error) {
		index := slices.IndexFunc(queue, func(e *domain.Event) bool {
			return e.ID == id && !e.Processed
		})
		if index < 0 {
			return queue, false, domain.ErrEventNotFound
		}
		event := queue[index]

		switch {
		case retry && event.RetryCount < q.config.MaxRetries:
			event.RetryCount++
			queue = append(slices.Delete(queue, index, index+1), event)
			disposition = domain.DispositionRequeued
		case retry:
			q.logger.Warn("event already tried too many times, give up",
				slog.String("event_id", event.ID),
				slog.String("action", event.Action.String()),
				slog.Int("retry_count", event.RetryCount),
			)
			event.Complete(false, q.now())
			disposition = domain.DispositionGaveUp
		default:
			event.Complete(success, q.now())
			disposition = domain.DispositionCompleted
		}

		return queue, true, nil
	})
	if err != nil {
		return "", err
	}

	if disposition == domain.DispositionRequeued {
		q.signal()
	}
	return disposition, nil
}

// Prune applies the retention window and persists the result when events were removed.
func (q *queueUseCase) Prune(ctx context.Context) (int, error) {
	removed := 0
	err := q.txManager.WithTx(ctx, func(ctx context.Context) error {
		q.mu.Lock()
		defer q.mu.Unlock()

		raw, err := q.loadRaw(ctx)
		if err != nil {
			return err
		}
		kept := q.retain(raw)
		removed = len(raw) - len(kept)
		if removed == 0 {
			return nil
		}
		return q.repo.Save(ctx, kept)
	})
	if err != nil {
		return 0, err
	}

	if removed > 0 {
		q.logger.Info("pruned expired events", slog.Int("count", removed))
	}
	return removed, nil
}

// NextPending returns a copy of the first unprocessed event.
func (q *queueUseCase) NextPending(ctx context.Context) (*domain.Event, error) {
	var next *domain.Event
	err := q.withQueue(ctx, func(ctx context.Context, queue []*domain.Event) ([]*domain.Event, bool, error) {
		for _, event := range queue {
			if !event.Processed {
				next = event.Clone()
				break
			}
		}
		return queue, false, nil
	})
	return next, err
}

// List returns copies of the queued events in queue order.
func (q *queueUseCase) List(ctx context.Context, pendingOnly bool) ([]*domain.Event, error) {
	events, err := q.Load(ctx)
	if err != nil {
		return nil, err
	}
	if pendingOnly {
		events = slices.DeleteFunc(events, func(e *domain.Event) bool { return e.Processed })
	}
	return events, nil
}

// Requeue resets the first processed, unsuccessful event with the given id.
func (q *queueUseCase) Requeue(ctx context.Context, id string) (*domain.Event, error) {
	var requeued *domain.Event
	err := q.withQueue(ctx, func(ctx context.Context, queue []*domain.Event) ([]*domain.Event, bool, error) {
		index := slices.IndexFunc(queue, func(e *domain.Event) bool {
			return e.ID == id && e.Processed && !e.Success
		})
		if index < 0 {
			return queue, false, domain.ErrEventNotFound
		}
		event := queue[index]
		event.Reset()
		requeued = event.Clone()
		return append(slices.Delete(queue, index, index+1), event), true, nil
	})
	if err != nil {
		return nil, err
	}

	q.signal()
	return requeued, nil
}

// withQueue runs fn over the retained queue inside the critical section and persists the
// returned queue when fn reports a change.
func (q *queueUseCase) withQueue(
	ctx context.Context,
	fn func(ctx context.Context, queue []*domain.Event) ([]*domain.Event, bool, error),
) error {
	return q.txManager.WithTx(ctx, func(ctx context.Context) error {
		q.mu.Lock()
		defer q.mu.Unlock()

		raw, err := q.loadRaw(ctx)
		if err != nil {
			return err
		}

		queue, changed, err := fn(ctx, q.retain(raw))
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}
		return q.repo.Save(ctx, queue)
	})
}

// loadRaw reads the persisted queue. A corrupt document is replaced by an empty queue on the
// next save.
func (q *queueUseCase) loadRaw(ctx context.Context) ([]*domain.Event, error) {
	events, err := q.repo.Load(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrCorruptQueue) {
			q.logger.Error("queue document is corrupt, starting from an empty queue", slog.Any("error", err))
			return []*domain.Event{}, nil
		}
		return nil, errors.Wrap(err, "failed to load queue")
	}
	return events, nil
}

func (q *queueUseCase) retain(events []*domain.Event) []*domain.Event {
	now := q.now()
	kept := make([]*domain.Event, 0, len(events))
	for _, event := range events {
		if event.IsExpired(now, q.config.Retention) {
			continue
		}
		kept = append(kept, event)
	}
	return kept
}

func cloneEvents(events []*domain.Event) []*domain.Event {
	clones := make([]*domain.Event, 0, len(events))
	for _, event := range events {
		clones = append(clones, event.Clone())
	}
	return clones
}
