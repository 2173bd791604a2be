package repository

import (
	"context"
	"errors"
	"time"

	"model_upload_backend/models"

	"gorm.io/gorm"
)

type modelRepository struct {
	DB *gorm.DB
}

func NewModelRepository(db *gorm.DB) ModelRepository {
	return &modelRepository{DB: db}
}

func (r *modelRepository) Create(ctx context.Context, m *models.Model) error {
	return r.DB.WithContext(ctx).Create(m).Error
}

func (r *modelRepository) GetByID(ctx context.Context, modelID string) (*models.Model, error) {
	var m models.Model
	err := r.DB.WithContext(ctx).Where("model_id = ?", modelID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrModelNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *modelRepository) ExpirePending(ctx context.Context, modelID string) (bool, error) {
	res := r.DB.WithContext(ctx).Model(&models.Model{}).
		Where("model_id = ? AND status = ?", modelID, models.ModelStatusPending).
		Updates(map[string]interface{}{"status": models.ModelStatusExpired, "updated_at": time.Now().UTC()})
	return res.RowsAffected == 1, res.Error
}

func (r *modelRepository) ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]*models.Model, error) {
	var out []*models.Model
	err := r.DB.WithContext(ctx).
		Where("status = ? AND created_at < ?", models.ModelStatusPending, olderThan).
		Order("created_at").
		Limit(limit).
		Find(&out).Error
	return out, err
}
