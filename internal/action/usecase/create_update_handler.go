package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/allisson/cecsync/internal/errors"
	eventDomain "github.com/allisson/cecsync/internal/event/domain"
	eventUsecase "github.com/allisson/cecsync/internal/event/usecase"
	jobDomain "github.com/allisson/cecsync/internal/job/domain"
)

// cleanupTimeout bounds best-effort cleanup calls made after the handler context is done.
const cleanupTimeout = 30 * time.Second

// ErrNoRepository indicates neither the configuration nor the event names a target repository.
var ErrNoRepository = errors.Wrap(errors.ErrInvalidInput, "no destination repository")

// ErrNoDownloadLink indicates an export job succeeded without producing an archive link.
var ErrNoDownloadLink = errors.New("export job finished without a download link")

type createUpdateHandler struct {
	source          SourceServer
	sourceJobs      JobRunner
	destination     DestinationServer
	destinationJobs JobRunner
	spool           ArtifactSpool
	repositoryID    string
	logger          *slog.Logger
}

// NewCreateUpdateHandler creates the handler for created and updated items and assets.
// The entity is exported on the source, staged in the spool, uploaded to the destination and
// imported into repositoryID, or into the event's repository when repositoryID is empty.
func NewCreateUpdateHandler(
	source SourceServer,
	sourceJobs JobRunner,
	destination DestinationServer,
	destinationJobs JobRunner,
	spool ArtifactSpool,
	repositoryID string,
	logger *slog.Logger,
) eventUsecase.ActionHandler {
	return &createUpdateHandler{
		source:          source,
		sourceJobs:      sourceJobs,
		destination:     destination,
		destinationJobs: destinationJobs,
		spool:           spool,
		repositoryID:    repositoryID,
		logger:          logger,
	}
}

// Handle replicates the entity. Every failure is final: export, import and transport errors are
// not retried.
func (h *createUpdateHandler) Handle(ctx context.Context, event *eventDomain.Event) eventDomain.Outcome {
	logger := h.logger.With(
		slog.String("event_id", event.ID),
		slog.String("action", event.Action.String()),
		slog.String("entity_id", event.EntityID),
	)

	if err := h.sync(ctx, logger, event); err != nil {
		logger.Error("failed to sync entity", slog.Any("error", err))
		return eventDomain.Failed()
	}

	logger.Info("entity synced")
	return eventDomain.Succeeded()
}

func (h *createUpdateHandler) sync(ctx context.Context, logger *slog.Logger, event *eventDomain.Event) error {
	repositoryID := h.repositoryID
	if repositoryID == "" {
		repositoryID = event.RepositoryID
	}
	if repositoryID == "" {
		return ErrNoRepository
	}

	exportJob, err := h.sourceJobs.Run(ctx, jobDomain.KindExport, func(ctx context.Context) (string, error) {
		return h.source.SubmitExportJob(ctx, event.EntityID)
	})
	if err != nil {
		return errors.Wrap(err, "export failed")
	}
	if exportJob.Result == "" {
		return ErrNoDownloadLink
	}

	key, err := h.stage(ctx, exportJob.Result)
	if err != nil {
		return err
	}
	defer h.unstage(ctx, logger, key)

	fileID, err := h.upload(ctx, key, event.EntityID+".zip")
	if err != nil {
		return err
	}
	defer h.deleteArtifact(ctx, logger, fileID)

	_, err = h.destinationJobs.Run(ctx, jobDomain.KindImport, func(ctx context.Context) (string, error) {
		return h.destination.SubmitImportJob(ctx, fileID, repositoryID)
	})
	if err != nil {
		return errors.Wrap(err, "import failed")
	}
	return nil
}

func (h *createUpdateHandler) stage(ctx context.Context, link string) (string, error) {
	archive, err := h.source.DownloadArtifact(ctx, link)
	if err != nil {
		return "", errors.Wrap(err, "failed to download export archive")
	}
	defer func() { _ = archive.Close() }()

	key, err := h.spool.Put(ctx, archive)
	if err != nil {
		return "", errors.Wrap(err, "failed to stage export archive")
	}
	return key, nil
}

func (h *createUpdateHandler) upload(ctx context.Context, key, name string) (string, error) {
	archive, err := h.spool.Open(ctx, key)
	if err != nil {
		return "", errors.Wrap(err, "failed to read staged archive")
	}
	defer func() { _ = archive.Close() }()

	fileID, err := h.destination.UploadArtifact(ctx, name, archive)
	if err != nil {
		return "", errors.Wrap(err, "failed to upload export archive")
	}
	return fileID, nil
}

func (h *createUpdateHandler) unstage(ctx context.Context, logger *slog.Logger, key string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	if err := h.spool.Remove(ctx, key); err != nil {
		logger.Warn("failed to remove staged archive", slog.String("key", key), slog.Any("error", err))
	}
}

func (h *createUpdateHandler) deleteArtifact(ctx context.Context, logger *slog.Logger, fileID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	if err := h.destination.DeleteArtifact(ctx, fileID); err != nil {
		logger.Warn("failed to delete uploaded archive", slog.String("file_id", fileID), slog.Any("error", err))
		return
	}
	logger.Debug("uploaded archive deleted", slog.String("file_id", fileID))
}
