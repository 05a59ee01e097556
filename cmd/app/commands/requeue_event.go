package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/allisson/cecsync/internal/event/http/dto"
	eventUsecase "github.com/allisson/cecsync/internal/event/usecase"
)

// RunRequeueEvent resets a failed event and moves it to the tail of the queue. A running server
// picks it up on its next sweep.
func RunRequeueEvent(
	ctx context.Context,
	queueUseCase eventUsecase.QueueUseCase,
	logger *slog.Logger,
	writer io.Writer,
	id string,
	format string,
) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("event id is required")
	}

	event, err := queueUseCase.Requeue(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to requeue event: %w", err)
	}

	if format == "json" {
		if err := writeJSON(writer, dto.MapEventToResponse(event)); err != nil {
			return fmt.Errorf("failed to output JSON: %w", err)
		}
	} else {
		_, _ = fmt.Fprintf(writer, "Event %s (%s) requeued\n", event.ID, event.Action)
	}

	logger.Info("event requeued", slog.String("event_id", event.ID))
	return nil
}
