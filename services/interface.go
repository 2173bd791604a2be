package services

import (
	"context"
	"errors"
	"time"

	"model_upload_backend/models"
	"model_upload_backend/repository"
)

var (
	ErrInvalidRequest  = errors.New("invalid request")
	ErrModelNotFound   = repository.ErrModelNotFound
	ErrRunNotFound     = repository.ErrRunNotFound
	ErrArtifactMissing = errors.New("model artifact is not in storage")
	ErrModelExpired    = errors.New("model upload has expired")
	ErrRunInProgress   = errors.New("run creation in progress")
)

// ArtifactStore is the slice of platform/storage the services use.
type ArtifactStore interface {
	GeneratePresignedPostUpload(ctx context.Context, filename, modelID string) (*models.UploadURLResp, error)
	FileExists(ctx context.Context, fileKey string) (bool, error)
	RemoveFile(ctx context.Context, fileKey string) error
}

type EventPublisher interface {
	PublishModelEvent(ctx context.Context, event *models.ModelEvent) error
}

// ModelEventSource streams model events from every instance.
type ModelEventSource interface {
	SubscribeModelEvents(ctx context.Context, modelID string) (<-chan *models.ModelEvent, error)
}

type Locker interface {
	AcquireLock(ctx context.Context, name string, ttl time.Duration) (string, error)
	ReleaseLock(ctx context.Context, name, token string) error
}

type RunEnqueuer interface {
	Enqueue(ctx context.Context, task *models.RunTask) error
}
