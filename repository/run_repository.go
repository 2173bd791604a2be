package repository

import (
	"context"
	"errors"
	"time"

	"model_upload_backend/models"

	"gorm.io/gorm"
)

type runRepository struct {
	DB *gorm.DB
}

func NewRunRepository(db *gorm.DB) RunRepository {
	return &runRepository{DB: db}
}

func (r *runRepository) CreateForModel(ctx context.Context, run *models.Run) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Model{}).
			Where("model_id = ? AND status = ?", run.ModelID, models.ModelStatusPending).
			Updates(map[string]interface{}{
				"status":     models.ModelStatusRunCreated,
				"run_id":     run.RunID,
				"updated_at": time.Now().UTC(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrModelNotPending
		}
		return tx.Create(run).Error
	})
}

func (r *runRepository) GetByID(ctx context.Context, runID string) (*models.Run, error) {
	var run models.Run
	err := r.DB.WithContext(ctx).Where("run_id = ?", runID).First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func (r *runRepository) MarkDispatched(ctx context.Context, runID string) error {
	res := r.DB.WithContext(ctx).Model(&models.Run{}).
		Where("run_id = ?", runID).
		Update("dispatched", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRunNotFound
	}
	return nil
}
