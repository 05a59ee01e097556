package usecase

import (
	"context"
	"log/slog"

	"github.com/allisson/cecsync/internal/errors"
	eventDomain "github.com/allisson/cecsync/internal/event/domain"
	eventUsecase "github.com/allisson/cecsync/internal/event/usecase"
	jobDomain "github.com/allisson/cecsync/internal/job/domain"
)

type channelSubmitFunc func(ctx context.Context, channelID string, itemIDs []string) (string, error)

type publishHandler struct {
	kind            jobDomain.Kind
	submit          channelSubmitFunc
	destinationJobs JobRunner
	logger          *slog.Logger
}

// NewPublishHandler creates the handler that publishes an item batch to the channel named by the
// event's entity id.
func NewPublishHandler(
	destination DestinationServer,
	destinationJobs JobRunner,
	logger *slog.Logger,
) eventUsecase.ActionHandler {
	return &publishHandler{
		kind:            jobDomain.KindPublish,
		submit:          destination.PublishItems,
		destinationJobs: destinationJobs,
		logger:          logger,
	}
}

// NewUnpublishHandler creates the handler that unpublishes an item batch from a channel.
func NewUnpublishHandler(
	destination DestinationServer,
	destinationJobs JobRunner,
	logger *slog.Logger,
) eventUsecase.ActionHandler {
	return &publishHandler{
		kind:            jobDomain.KindUnpublish,
		submit:          destination.UnpublishItems,
		destinationJobs: destinationJobs,
		logger:          logger,
	}
}

// Handle runs the bulk job. A failed job is final.
func (h *publishHandler) Handle(ctx context.Context, event *eventDomain.Event) eventDomain.Outcome {
	logger := h.logger.With(
		slog.String("event_id", event.ID),
		slog.String("action", event.Action.String()),
		slog.String("channel_id", event.EntityID),
		slog.Int("items", len(event.ItemIDs)),
	)

	if len(event.ItemIDs) == 0 {
		logger.Warn("no items in batch, nothing to do")
		return eventDomain.Succeeded()
	}

	job, err := h.destinationJobs.Run(ctx, h.kind, func(ctx context.Context) (string, error) {
		return h.submit(ctx, event.EntityID, event.ItemIDs)
	})
	if err != nil {
		if errors.Is(err, jobDomain.ErrJobFailed) && job != nil {
			logger.Error("channel job failed",
				slog.String("job_id", job.ID),
				slog.String("detail", job.ErrorDescription),
			)
			return eventDomain.Failed()
		}
		logger.Error("failed to run channel job", slog.Any("error", err))
		return eventDomain.Failed()
	}

	logger.Info("channel job finished", slog.String("job_id", job.ID))
	return eventDomain.Succeeded()
}
