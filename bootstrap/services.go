package bootstrap

import (
	"model_upload_backend/config"
	"model_upload_backend/services"
)

type Services struct {
	ModelService *services.ModelService
	RunService   *services.RunService
	Reaper       *services.ReaperService
}

func NewServices(cfg *config.Config, repos *Repositories, infra *Infrastructure) *Services {
	res := &Services{}

	res.ModelService = services.NewModelService(repos.ModelRepository, infra.Storage, infra.EventPublisher, infra.Cache)
	res.RunService = services.NewRunService(
		repos.ModelRepository,
		repos.RunRepository,
		infra.Storage,
		infra.RunQueue,
		infra.Redis,
		res.ModelService,
		cfg.RunLockTTL,
	)
	res.Reaper = services.NewReaperService(repos.ModelRepository, infra.Storage, res.ModelService, cfg.OrphanTTL, cfg.ReaperInterval)
	return res
}
