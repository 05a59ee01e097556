package usecase

import (
	"context"
	"log/slog"
	"strings"

	contentDomain "github.com/allisson/cecsync/internal/content/domain"
	"github.com/allisson/cecsync/internal/errors"
	eventDomain "github.com/allisson/cecsync/internal/event/domain"
	eventUsecase "github.com/allisson/cecsync/internal/event/usecase"
)

// IsReferencedByOtherContent reports whether a deletion was rejected because other content
// still references the item. Such a rejection clears once the referencing content is deleted,
// usually by a later event in the queue.
func IsReferencedByOtherContent(err error) bool {
	var deleteErr *contentDomain.DeleteError
	if !errors.As(err, &deleteErr) {
		return false
	}
	return strings.Contains(deleteErr.Message, "referred by other")
}

type deleteHandler struct {
	destination DestinationServer
	logger      *slog.Logger
}

// NewDeleteHandler creates the handler for deleted items and assets.
func NewDeleteHandler(destination DestinationServer, logger *slog.Logger) eventUsecase.ActionHandler {
	return &deleteHandler{
		destination: destination,
		logger:      logger,
	}
}

// Handle deletes the entity on the destination.
func (h *deleteHandler) Handle(ctx context.Context, event *eventDomain.Event) eventDomain.Outcome {
	logger := h.logger.With(
		slog.String("event_id", event.ID),
		slog.String("action", event.Action.String()),
		slog.String("entity_id", event.EntityID),
	)

	err := h.destination.DeleteItem(ctx, event.EntityID)
	switch {
	case err == nil:
		logger.Info("entity deleted")
		return eventDomain.Succeeded()
	case IsReferencedByOtherContent(err):
		logger.Warn("entity still referenced by other content", slog.Any("error", err))
		return eventDomain.Retryable()
	default:
		logger.Error("failed to delete entity", slog.Any("error", err))
		return eventDomain.Failed()
	}
}
