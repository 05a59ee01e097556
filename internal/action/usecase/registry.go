package usecase

import (
	"context"
	"log/slog"

	eventDomain "github.com/allisson/cecsync/internal/event/domain"
	eventUsecase "github.com/allisson/cecsync/internal/event/usecase"
)

// Registry routes each event to the handler registered for its action.
type Registry struct {
	handlers map[eventDomain.Action]eventUsecase.ActionHandler
	logger   *slog.Logger
}

// NewRegistry creates an empty Registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		handlers: make(map[eventDomain.Action]eventUsecase.ActionHandler),
		logger:   logger,
	}
}

// Register binds handler to every given action, replacing earlier bindings.
func (r *Registry) Register(handler eventUsecase.ActionHandler, actions ...eventDomain.Action) *Registry {
	for _, action := range actions {
		r.handlers[action] = handler
	}
	return r
}

// Handle implements eventUsecase.ActionHandler. An action without a handler fails the event.
func (r *Registry) Handle(ctx context.Context, event *eventDomain.Event) eventDomain.Outcome {
	handler, ok := r.handlers[event.Action]
	if !ok {
		r.logger.Error("no handler registered for action",
			slog.String("event_id", event.ID),
			slog.String("action", event.Action.String()),
		)
		return eventDomain.Failed()
	}
	return handler.Handle(ctx, event)
}
