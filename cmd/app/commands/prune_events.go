package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	eventUsecase "github.com/allisson/cecsync/internal/event/usecase"
)

// RunPruneEvents removes processed events older than the retention window.
// In dry-run mode it only reports how many events would be removed.
func RunPruneEvents(
	ctx context.Context,
	queueUseCase eventUsecase.QueueUseCase,
	queueRepository eventUsecase.QueueRepository,
	logger *slog.Logger,
	writer io.Writer,
	dryRun bool,
	format string,
) error {
	logger.Info("pruning events", slog.Bool("dry_run", dryRun))

	var count int
	if dryRun {
		stored, err := queueRepository.Load(ctx)
		if err != nil {
			return fmt.Errorf("failed to load queue: %w", err)
		}
		retained, err := queueUseCase.Load(ctx)
		if err != nil {
			return fmt.Errorf("failed to load queue: %w", err)
		}
		count = len(stored) - len(retained)
	} else {
		removed, err := queueUseCase.Prune(ctx)
		if err != nil {
			return fmt.Errorf("failed to prune events: %w", err)
		}
		count = removed
	}

	if format == "json" {
		if err := writeJSON(writer, map[string]any{
			"count":   count,
			"dry_run": dryRun,
		}); err != nil {
			return fmt.Errorf("failed to output JSON: %w", err)
		}
	} else if dryRun {
		_, _ = fmt.Fprintf(writer, "Dry-run mode: Would remove %d expired event(s)\n", count)
	} else {
		_, _ = fmt.Fprintf(writer, "Successfully removed %d expired event(s)\n", count)
	}

	logger.Info("prune completed", slog.Int("count", count), slog.Bool("dry_run", dryRun))
	return nil
}
