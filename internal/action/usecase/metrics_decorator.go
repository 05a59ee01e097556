package usecase

import (
	"context"
	"strings"
	"time"

	eventDomain "github.com/allisson/cecsync/internal/event/domain"
	eventUsecase "github.com/allisson/cecsync/internal/event/usecase"
	"github.com/allisson/cecsync/internal/metrics"
)

// actionHandlerWithMetrics decorates an ActionHandler with metrics instrumentation.
type actionHandlerWithMetrics struct {
	next    eventUsecase.ActionHandler
	metrics metrics.BusinessMetrics
}

// NewActionHandlerWithMetrics wraps an ActionHandler with metrics recording.
func NewActionHandlerWithMetrics(
	handler eventUsecase.ActionHandler,
	m metrics.BusinessMetrics,
) eventUsecase.ActionHandler {
	return &actionHandlerWithMetrics{
		next:    handler,
		metrics: m,
	}
}

// Handle records the outcome and duration of the wrapped handler.
func (a *actionHandlerWithMetrics) Handle(ctx context.Context, event *eventDomain.Event) eventDomain.Outcome {
	start := time.Now()
	outcome := a.next.Handle(ctx, event)

	operation := strings.ToLower(event.Action.String())
	status := outcome.Status()

	a.metrics.RecordOperation(ctx, "action", operation, status)
	a.metrics.RecordDuration(ctx, "action", operation, time.Since(start), status)

	return outcome
}
