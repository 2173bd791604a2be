package services

import (
	"context"
	"sync"
	"time"

	"model_upload_backend/models"
	"model_upload_backend/pkg/logging"
	"model_upload_backend/repository"
)

const (
	reapBatch           = 100
	defaultOrphanTTL    = 24 * time.Hour
	defaultReapInterval = 5 * time.Minute
)

// ReaperService expires pending models whose artifact never got a run.
type ReaperService struct {
	modelRepo    repository.ModelRepository
	store        ArtifactStore
	modelService *ModelService
	orphanTTL    time.Duration
	interval     time.Duration
	now          func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewReaperService(
	modelRepo repository.ModelRepository,
	store ArtifactStore,
	modelService *ModelService,
	orphanTTL, interval time.Duration) *ReaperService {
	if orphanTTL <= 0 {
		orphanTTL = defaultOrphanTTL
	}
	if interval <= 0 {
		interval = defaultReapInterval
	}
	return &ReaperService{
		modelRepo:    modelRepo,
		store:        store,
		modelService: modelService,
		orphanTTL:    orphanTTL,
		interval:     interval,
		now:          time.Now,
	}
}

func (r *ReaperService) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n, err := r.ReapOnce(ctx); err != nil {
					logging.Logger.Error("reaper pass failed", "error", err)
				} else if n > 0 {
					logging.Logger.Info("reaper expired models", "count", n)
				}
			}
		}
	}()
	logging.Logger.Info("reaper started", "interval", r.interval, "orphanTTL", r.orphanTTL)
}

func (r *ReaperService) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
}

// ReapOnce runs a single pass and returns how many models it expired.
func (r *ReaperService) ReapOnce(ctx context.Context) (int, error) {
	stale, err := r.modelRepo.ListStalePending(ctx, r.now().Add(-r.orphanTTL), reapBatch)
	if err != nil {
		return 0, err
	}
	expired := 0
	for _, m := range stale {
		ok, err := r.modelRepo.ExpirePending(ctx, m.ModelID)
		if err != nil {
			logging.Logger.Error("fail ExpirePending", "modelID", m.ModelID, "error", err)
			continue
		}
		if !ok {
			continue
		}
		if err := r.store.RemoveFile(ctx, m.FileKey); err != nil {
			logging.Logger.Warn("fail RemoveFile", "modelID", m.ModelID, "fileKey", m.FileKey, "error", err)
		}
		expired++
		if r.modelService != nil {
			r.modelService.InvalidateModel(ctx, m.ModelID)
			r.modelService.publish(ctx, &models.ModelEvent{
				Type:    models.EventModelExpired,
				ModelID: m.ModelID,
				Status:  models.ModelStatusExpired,
				Message: "no run was created before the upload expired",
			})
		}
	}
	return expired, nil
}
