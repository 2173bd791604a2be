package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"model_upload_backend/models"
	"model_upload_backend/pkg/logging"
	redisplatform "model_upload_backend/platform/redis"
	"model_upload_backend/repository"

	"github.com/oklog/ulid/v2"
)

type RunService struct {
	modelRepo    repository.ModelRepository
	runRepo      repository.RunRepository
	store        ArtifactStore
	queue        RunEnqueuer
	locker       Locker
	modelService *ModelService
	lockTTL      time.Duration
	now          func() time.Time
}

func NewRunService(
	modelRepo repository.ModelRepository,
	runRepo repository.RunRepository,
	store ArtifactStore,
	queue RunEnqueuer,
	locker Locker,
	modelService *ModelService,
	lockTTL time.Duration) *RunService {
	if lockTTL <= 0 {
		lockTTL = 30 * time.Second
	}
	return &RunService{
		modelRepo:    modelRepo,
		runRepo:      runRepo,
		store:        store,
		queue:        queue,
		locker:       locker,
		modelService: modelService,
		lockTTL:      lockTTL,
		now:          time.Now,
	}
}

// CreateRun starts a simulation run for an uploaded model. A model gets at
// most one run; asking again returns the existing one.
func (s *RunService) CreateRun(ctx context.Context, modelID string) (*models.CreateRunResp, error) {
	lockName := "run:" + modelID
	token, err := s.locker.AcquireLock(ctx, lockName, s.lockTTL)
	if err != nil {
		if errors.Is(err, redisplatform.ErrLockHeld) {
			return nil, ErrRunInProgress
		}
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	defer func() {
		if err := s.locker.ReleaseLock(context.WithoutCancel(ctx), lockName, token); err != nil {
			logging.Logger.Warn("fail ReleaseLock", "modelID", modelID, "error", err)
		}
	}()

	m, err := s.modelRepo.GetByID(ctx, modelID)
	if err != nil {
		return nil, err
	}
	if m.HasRun() {
		return s.existingRun(ctx, m)
	}
	if m.Status == models.ModelStatusExpired {
		return nil, ErrModelExpired
	}

	ok, err := s.store.FileExists(ctx, m.FileKey)
	if err != nil {
		logging.Logger.Error("fail FileExists", "modelID", modelID, "error", err)
		return nil, err
	}
	if !ok {
		return nil, ErrArtifactMissing
	}

	now := s.now().UTC()
	run := &models.Run{
		RunID:     ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String(),
		ModelID:   modelID,
		Status:    models.RunStatusQueued,
		CreatedAt: now,
	}
	if err := s.runRepo.CreateForModel(ctx, run); err != nil {
		if errors.Is(err, repository.ErrModelNotPending) {
			return s.afterLostRace(ctx, modelID)
		}
		logging.Logger.Error("failed to create run", "modelID", modelID, "error", err)
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	if err := s.dispatch(ctx, run, m.FileKey); err != nil {
		return nil, err
	}
	logging.Logger.Info("run created", "modelID", modelID, "runID", run.RunID)
	return &models.CreateRunResp{RunID: run.RunID, ModelID: modelID, Status: run.Status}, nil
}

// afterLostRace resolves a model that left pending between the read and the
// run insert: the reaper expired it, or a caller whose lock lapsed won.
func (s *RunService) afterLostRace(ctx context.Context, modelID string) (*models.CreateRunResp, error) {
	m, err := s.modelRepo.GetByID(ctx, modelID)
	if err != nil {
		return nil, err
	}
	switch {
	case m.Status == models.ModelStatusExpired:
		return nil, ErrModelExpired
	case m.HasRun():
		return s.existingRun(ctx, m)
	default:
		return nil, ErrRunInProgress
	}
}

// dispatch puts the run task on the queue and marks the run dispatched. A run
// left undispatched is pushed again by the next CreateRun for its model.
func (s *RunService) dispatch(ctx context.Context, run *models.Run, fileKey string) error {
	task := &models.RunTask{RunID: run.RunID, ModelID: run.ModelID, FileKey: fileKey, CreatedAt: run.CreatedAt}
	if err := s.queue.Enqueue(ctx, task); err != nil {
		logging.Logger.Error("fail Enqueue run", "runID", run.RunID, "error", err)
		return err
	}
	if err := s.runRepo.MarkDispatched(ctx, run.RunID); err != nil {
		// the task is queued; a later retry may queue it again
		logging.Logger.Warn("fail MarkDispatched", "runID", run.RunID, "error", err)
	}
	run.Dispatched = true

	if s.modelService != nil {
		s.modelService.InvalidateModel(ctx, run.ModelID)
		s.modelService.publish(ctx, &models.ModelEvent{
			Type:    models.EventRunCreated,
			ModelID: run.ModelID,
			RunID:   run.RunID,
			Status:  models.ModelStatusRunCreated,
			Message: "run queued",
		})
	}
	return nil
}

func (s *RunService) existingRun(ctx context.Context, m *models.Model) (*models.CreateRunResp, error) {
	resp := &models.CreateRunResp{RunID: m.RunID, ModelID: m.ModelID, Status: models.RunStatusQueued}
	run, err := s.runRepo.GetByID(ctx, m.RunID)
	switch {
	case err == nil:
		resp.Status = run.Status
		if !run.Dispatched {
			logging.Logger.Info("re-dispatching run", "modelID", m.ModelID, "runID", run.RunID)
			if err := s.dispatch(ctx, run, m.FileKey); err != nil {
				return nil, err
			}
			return resp, nil
		}
	case !errors.Is(err, repository.ErrRunNotFound):
		return nil, err
	}
	logging.Logger.Info("run already exists", "modelID", m.ModelID, "runID", m.RunID)
	return resp, nil
}

func (s *RunService) GetRun(ctx context.Context, runID string) (*models.Run, error) {
	return s.runRepo.GetByID(ctx, runID)
}
