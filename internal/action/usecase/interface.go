// Package usecase implements the handlers that replay webhook events against the destination
// content server.
package usecase

import (
	"context"
	"io"

	jobDomain "github.com/allisson/cecsync/internal/job/domain"
	jobUsecase "github.com/allisson/cecsync/internal/job/usecase"
)

// SourceServer is the content server the webhooks originate from.
type SourceServer interface {
	SubmitExportJob(ctx context.Context, itemID string) (string, error)
	DownloadArtifact(ctx context.Context, link string) (io.ReadCloser, error)
}

// DestinationServer is the content server changes are replayed against.
type DestinationServer interface {
	UploadArtifact(ctx context.Context, name string, content io.Reader) (string, error)
	SubmitImportJob(ctx context.Context, fileID, repositoryID string) (string, error)
	DeleteArtifact(ctx context.Context, fileID string) error
	DeleteItem(ctx context.Context, itemID string) error
	PublishItems(ctx context.Context, channelID string, itemIDs []string) (string, error)
	UnpublishItems(ctx context.Context, channelID string, itemIDs []string) (string, error)
}

// JobRunner submits a server job and waits until it is terminal.
type JobRunner interface {
	Run(ctx context.Context, kind jobDomain.Kind, submit jobUsecase.SubmitFunc) (*jobDomain.Job, error)
}

// ArtifactSpool stages export archives between download and upload.
type ArtifactSpool interface {
	Put(ctx context.Context, content io.Reader) (string, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Remove(ctx context.Context, key string) error
}
