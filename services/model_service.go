package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"model_upload_backend/models"
	"model_upload_backend/pkg/logging"
	"model_upload_backend/platform/cache"
	"model_upload_backend/repository"
	"model_upload_backend/utils"

	"github.com/google/uuid"
)

const modelCacheTTL = 2 * time.Minute

type ModelService struct {
	modelRepo  repository.ModelRepository
	store      ArtifactStore
	publisher  EventPublisher
	modelCache *cache.TypedCache[*models.Model]
}

func NewModelService(
	modelRepo repository.ModelRepository,
	store ArtifactStore,
	publisher EventPublisher,
	cacheService cache.CacheService) *ModelService {
	return &ModelService{
		modelRepo:  modelRepo,
		store:      store,
		publisher:  publisher,
		modelCache: cache.NewTypedCache[*models.Model](cacheService),
	}
}

func modelCacheKey(modelID string) string { return "model:" + modelID }

// RequestUploadURL registers a pending model and returns the POST grant the
// browser uses to put the artifact into storage.
func (s *ModelService) RequestUploadURL(ctx context.Context, req models.UploadURLReq) (*models.UploadURLResp, error) {
	name := strings.TrimSpace(req.ModelName)
	if err := utils.ModelFilename(name); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if err := utils.TagsOK(req.Tags); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	modelID := uuid.New().String()
	res, err := s.store.GeneratePresignedPostUpload(ctx, name, modelID)
	if err != nil {
		logging.Logger.Error("fail GeneratePresignedPostUpload", "modelID", modelID, "error", err)
		return nil, err
	}

	m := &models.Model{
		ModelID:   modelID,
		ModelName: name,
		FileKey:   res.FileKey,
		Tags:      req.Tags,
		Status:    models.ModelStatusPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.modelRepo.Create(ctx, m); err != nil {
		logging.Logger.Error("failed to create model", "modelID", modelID, "error", err)
		return nil, fmt.Errorf("failed to create model: %w", err)
	}

	s.publish(ctx, &models.ModelEvent{
		Type:    models.EventUploadRequested,
		ModelID: modelID,
		Status:  models.ModelStatusPending,
		Message: "upload url issued for " + name,
	})
	logging.Logger.Info("upload url issued", "modelID", modelID, "fileKey", res.FileKey, "provider", res.Provider)
	return res, nil
}

func (s *ModelService) GetModel(ctx context.Context, modelID string) (*models.Model, error) {
	return s.modelCache.GetOrLoad(ctx, modelCacheKey(modelID), modelCacheTTL, func(ctx context.Context) (*models.Model, error) {
		return s.modelRepo.GetByID(ctx, modelID)
	})
}

// InvalidateModel drops the cached record after a status change.
func (s *ModelService) InvalidateModel(ctx context.Context, modelID string) {
	if err := s.modelCache.Delete(ctx, modelCacheKey(modelID)); err != nil {
		logging.Logger.Warn("fail InvalidateModel", "modelID", modelID, "error", err)
	}
}

// WatchInvalidations evicts this instance's L1 copy of a model whenever any
// instance reports a status change. It returns once subscribed; the watch
// ends with ctx.
func (s *ModelService) WatchInvalidations(ctx context.Context, source ModelEventSource) error {
	events, err := source.SubscribeModelEvents(ctx, "")
	if err != nil {
		logging.Logger.Error("fail WatchInvalidations", "error", err)
		return err
	}
	go func() {
		for ev := range events {
			switch ev.Type {
			case models.EventRunCreated, models.EventModelExpired:
				s.modelCache.EvictLocal(modelCacheKey(ev.ModelID))
				logging.Logger.Debug("evicted model from l1", "modelID", ev.ModelID, "type", ev.Type)
			}
		}
	}()
	return nil
}

func (s *ModelService) publish(ctx context.Context, ev *models.ModelEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishModelEvent(ctx, ev); err != nil {
		logging.Logger.Warn("fail publish model event", "type", ev.Type, "modelID", ev.ModelID, "error", err)
	}
}
