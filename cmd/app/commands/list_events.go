package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/allisson/cecsync/internal/event/http/dto"
	eventUsecase "github.com/allisson/cecsync/internal/event/usecase"
)

// RunListEvents prints the queue in order, optionally only the unprocessed events.
func RunListEvents(
	ctx context.Context,
	queueUseCase eventUsecase.QueueUseCase,
	logger *slog.Logger,
	writer io.Writer,
	pendingOnly bool,
	format string,
) error {
	events, err := queueUseCase.List(ctx, pendingOnly)
	if err != nil {
		return fmt.Errorf("failed to list events: %w", err)
	}

	if format == "json" {
		if err := writeJSON(writer, dto.MapEventsToListResponse(events, len(events))); err != nil {
			return fmt.Errorf("failed to output JSON: %w", err)
		}
	} else {
		outputEventsText(writer, dto.MapEventsToListResponse(events, len(events)))
	}

	logger.Debug("events listed", slog.Int("count", len(events)), slog.Bool("pending_only", pendingOnly))
	return nil
}

// outputEventsText outputs one line per event in human-readable text format.
func outputEventsText(writer io.Writer, response dto.ListEventsResponse) {
	if response.Total == 0 {
		_, _ = fmt.Fprintln(writer, "No events in queue")
		return
	}

	for _, event := range response.Data {
		state := "pending"
		if event.Processed {
			state = "failed"
			if event.Success {
				state = "succeeded"
			}
		}

		processedAt := "-"
		if event.ProcessedAt != nil {
			processedAt = event.ProcessedAt.UTC().Format(time.RFC3339)
		}

		_, _ = fmt.Fprintf(writer, "%s  %-26s  %-10s  retries=%d  processed_at=%s  entity=%s\n",
			event.ID, event.Action, state, event.RetryCount, processedAt, event.EntityID)
	}
	_, _ = fmt.Fprintf(writer, "\nTotal: %d event(s)\n", response.Total)
}
