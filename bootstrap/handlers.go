package bootstrap

import "model_upload_backend/handlers"

type Handlers struct {
	ModelHandler  *handlers.ModelHandler
	HealthHandler *handlers.HealthHandler
	WSHandler     *handlers.WSHandler
}

func NewHandlers(services *Services, infra *Infrastructure) *Handlers {
	return &Handlers{
		ModelHandler: handlers.NewModelHandler(services.ModelService, services.RunService),
		HealthHandler: handlers.NewHealthHandler(map[string]handlers.Pinger{
			"postgres": infra.DB.Ping,
			"redis":    infra.Redis.Ping,
			"storage":  infra.Storage.Ping,
		}),
		WSHandler: handlers.NewWSHandler(infra.EventPublisher),
	}
}
