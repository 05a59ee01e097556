package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sourcegraph/conc"

	"github.com/allisson/cecsync/internal/errors"
	"github.com/allisson/cecsync/internal/event/domain"
	"github.com/allisson/cecsync/internal/metrics"
)

// Dispatcher states.
const (
	stateIdle int32 = iota
	stateActive
)

// DispatcherConfig holds dispatcher configuration.
type DispatcherConfig struct {
	// SweepInterval is the period of the safety trigger that catches missed notifications.
	SweepInterval time.Duration
	// OutcomeMaxTries bounds attempts to persist a handler outcome.
	OutcomeMaxTries uint
	// OutcomeInitialBackoff is the first delay between outcome persistence attempts.
	OutcomeInitialBackoff time.Duration
}

// Dispatcher is a single-flight consumer of the queue. Triggers arriving while a handler runs
// are ignored; after every applied outcome the dispatcher re-triggers itself to drain the backlog.
type Dispatcher struct {
	config  DispatcherConfig
	queue   QueueUseCase
	handler ActionHandler
	metrics metrics.BusinessMetrics
	logger  *slog.Logger

	state   atomic.Int32
	pending atomic.Bool
	wake    chan struct{}
	worker  conc.WaitGroup
}

// NewDispatcher creates a new Dispatcher.
func NewDispatcher(
	config DispatcherConfig,
	queue QueueUseCase,
	handler ActionHandler,
	businessMetrics metrics.BusinessMetrics,
	logger *slog.Logger,
) *Dispatcher {
	if config.SweepInterval <= 0 {
		config.SweepInterval = 30 * time.Second
	}
	if config.OutcomeMaxTries == 0 {
		config.OutcomeMaxTries = 5
	}
	if config.OutcomeInitialBackoff <= 0 {
		config.OutcomeInitialBackoff = 200 * time.Millisecond
	}
	return &Dispatcher{
		config:  config,
		queue:   queue,
		handler: handler,
		metrics: businessMetrics,
		logger:  logger,
		wake:    make(chan struct{}, 1),
	}
}

// Active reports whether a handler invocation is in flight.
func (d *Dispatcher) Active() bool {
	return d.state.Load() == stateActive
}

// Start runs the trigger loop until ctx is cancelled, then waits for the in-flight worker.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.logger.Info("starting event dispatcher", slog.Duration("sweep_interval", d.config.SweepInterval))

	ticker := time.NewTicker(d.config.SweepInterval)
	defer ticker.Stop()
	defer d.worker.Wait()

	d.trigger(ctx, "startup")

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("stopping event dispatcher")
			return ctx.Err()
		case <-d.queue.Notify():
			d.trigger(ctx, "append")
		case <-d.wake:
			d.trigger(ctx, "drain")
		case <-ticker.C:
			d.trigger(ctx, "sweep")
		}
	}
}

// trigger starts a worker when the dispatcher is idle. It reports whether a worker was started.
// A trigger that finds the dispatcher busy is remembered and replayed when the worker finishes.
func (d *Dispatcher) trigger(ctx context.Context, source string) bool {
	if ctx.Err() != nil {
		return false
	}

	for !d.state.CompareAndSwap(stateIdle, stateActive) {
		d.pending.Store(true)
		if d.state.Load() == stateActive {
			d.logger.Debug("dispatcher busy, trigger deferred", slog.String("trigger", source))
			return false
		}
	}
	d.pending.Store(false)

	d.worker.Go(func() {
		applied := d.dispatchNext(ctx)
		d.state.Store(stateIdle)
		if applied || d.pending.Swap(false) {
			select {
			case d.wake <- struct{}{}:
			default:
			}
		}
	})
	return true
}

// dispatchNext handles the first pending event. It reports whether an outcome was applied.
func (d *Dispatcher) dispatchNext(ctx context.Context) bool {
	event, err := d.queue.NextPending(ctx)
	if err != nil {
		d.logger.Error("failed to read next pending event", slog.Any("error", err))
		return false
	}
	if event == nil {
		return false
	}

	logger := d.logger.With(
		slog.String("event_id", event.ID),
		slog.String("action", event.Action.String()),
		slog.String("entity_id", event.EntityID),
		slog.Int("retry_count", event.RetryCount),
	)
	logger.Info("dispatching event")

	start := time.Now()
	outcome := d.invoke(ctx, logger, event)

	if ctx.Err() != nil {
		logger.Warn("dispatch interrupted by shutdown, outcome not applied", slog.String("outcome", outcome.Status()))
		return false
	}

	disposition, err := d.applyOutcome(ctx, event.ID, outcome)
	status := string(disposition)
	if err != nil {
		status = "error"
	}
	operation := strings.ToLower(event.Action.String())
	d.metrics.RecordOperation(ctx, "dispatcher", operation, status)
	d.metrics.RecordDuration(ctx, "dispatcher", operation, time.Since(start), status)
	if err != nil {
		logger.Error("failed to apply event outcome",
			slog.String("outcome", outcome.Status()),
			slog.Any("error", err),
		)
		return false
	}

	logger.Info("event dispatched",
		slog.String("outcome", outcome.Status()),
		slog.String("disposition", string(disposition)),
		slog.Duration("duration", time.Since(start)),
	)
	return true
}

// invoke runs the handler and converts a panic into a failed outcome.
func (d *Dispatcher) invoke(ctx context.Context, logger *slog.Logger, event *domain.Event) (outcome domain.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("action handler panicked", slog.String("panic", fmt.Sprint(r)))
			outcome = domain.Failed()
		}
	}()
	return d.handler.Handle(ctx, event)
}

// applyOutcome persists the outcome, retrying transient persistence errors.
func (d *Dispatcher) applyOutcome(
	ctx context.Context,
	id string,
	outcome domain.Outcome,
) (domain.Disposition, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = d.config.OutcomeInitialBackoff

	return backoff.Retry(ctx, func() (domain.Disposition, error) {
		disposition, err := d.queue.UpdateOutcome(ctx, id, outcome.Success, outcome.Retry)
		if errors.Is(err, domain.ErrEventNotFound) {
			return "", backoff.Permanent(err)
		}
		return disposition, err
	},
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(d.config.OutcomeMaxTries),
	)
}
