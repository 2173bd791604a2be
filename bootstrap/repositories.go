package bootstrap

import (
	"model_upload_backend/platform/database"
	"model_upload_backend/repository"
)

type Repositories struct {
	ModelRepository repository.ModelRepository
	RunRepository   repository.RunRepository
}

func NewRepositories(db *database.DB) *Repositories {
	sqlDB := db.GetDatabase()
	return &Repositories{
		ModelRepository: repository.NewModelRepository(sqlDB),
		RunRepository:   repository.NewRunRepository(sqlDB),
	}
}
