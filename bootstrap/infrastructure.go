package bootstrap

import (
	"context"
	"errors"

	"model_upload_backend/config"
	"model_upload_backend/pkg/logging"
	"model_upload_backend/platform/cache"
	"model_upload_backend/platform/database"
	"model_upload_backend/platform/events"
	"model_upload_backend/platform/queue"
	"model_upload_backend/platform/redis"
	"model_upload_backend/platform/storage"
)

type Infrastructure struct {
	DB             *database.DB
	Redis          *redis.Service
	Storage        *storage.Service
	RunQueue       *queue.RunQueue
	Cache          cache.CacheService
	EventPublisher *events.EventPublisher
}

func NewInfrastructure(ctx context.Context, cfg *config.Config) (*Infrastructure, error) {
	infra := &Infrastructure{}

	db, err := database.InitPostgres(cfg)
	if err != nil {
		return nil, err
	}
	infra.DB = db
	if err := infra.DB.AutoMigrate(); err != nil {
		return nil, err
	}

	redisService, err := redis.InitRedis(cfg)
	if err != nil {
		logging.Logger.Error("fail Initializing Redis", "error", err)
		return nil, err
	}
	infra.Redis = redisService

	storageService, err := storage.InitStorageService(ctx, cfg)
	if err != nil {
		logging.Logger.Error("fail Initializing Bucket", "error", err)
		return nil, err
	}
	infra.Storage = storageService

	infra.RunQueue = queue.NewRunQueue(redisService)
	infra.Cache = cache.NewCacheService(cache.InitL1Cache(), redisService)
	infra.EventPublisher = events.NewEventPublisher(redisService.Rdb)

	return infra, nil
}

func (infra *Infrastructure) Shutdown() error {
	var errs []error
	if infra.DB != nil {
		if err := infra.DB.Close(); err != nil {
			logging.Logger.Error("fail closing database", "error", err)
			errs = append(errs, err)
		}
	}
	if infra.Redis != nil {
		if err := infra.Redis.Close(); err != nil {
			logging.Logger.Error("fail closing redis", "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
