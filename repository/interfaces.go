package repository

import (
	"context"
	"errors"
	"time"

	"model_upload_backend/models"
)

var (
	ErrModelNotFound = errors.New("model not found")
	ErrRunNotFound   = errors.New("run not found")
	// ErrModelNotPending means the model already has a run or has expired.
	ErrModelNotPending = errors.New("model is not pending")
)

type ModelRepository interface {
	Create(ctx context.Context, m *models.Model) error
	GetByID(ctx context.Context, modelID string) (*models.Model, error)
	// ExpirePending moves a pending model to expired; false if it was not pending.
	ExpirePending(ctx context.Context, modelID string) (bool, error)
	ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]*models.Model, error)
}

type RunRepository interface {
	// CreateForModel inserts the run and links it to its pending model in one
	// transaction. It returns ErrModelNotPending if the model moved on.
	CreateForModel(ctx context.Context, run *models.Run) error
	GetByID(ctx context.Context, runID string) (*models.Run, error)
	// MarkDispatched records that the run's task reached the queue.
	MarkDispatched(ctx context.Context, runID string) error
}
