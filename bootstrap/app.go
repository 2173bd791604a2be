package bootstrap

import (
	"context"

	"model_upload_backend/config"
	"model_upload_backend/pkg/logging"
)

type App struct {
	Cfg            *config.Config
	Infrastructure *Infrastructure
	Repositories   *Repositories
	Services       *Services
	Handlers       *Handlers
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	app := &App{Cfg: cfg}
	infra, err := NewInfrastructure(ctx, cfg)
	if err != nil {
		logging.Logger.Error("fail NewInfrastructure", "error", err)
		return nil, err
	}
	app.Infrastructure = infra

	app.Repositories = NewRepositories(infra.DB)
	app.Services = NewServices(cfg, app.Repositories, infra)
	app.Handlers = NewHandlers(app.Services, infra)
	return app, nil
}

// Start launches background workers.
func (a *App) Start(ctx context.Context) {
	if err := a.Services.ModelService.WatchInvalidations(ctx, a.Infrastructure.EventPublisher); err != nil {
		logging.Logger.Warn("model cache invalidation watch disabled", "error", err)
	}
	a.Services.Reaper.Start(ctx)
}

// Shutdown stops workers and then infra.
func (a *App) Shutdown() error {
	if a == nil {
		return nil
	}
	if a.Services != nil && a.Services.Reaper != nil {
		a.Services.Reaper.Stop()
	}
	if a.Infrastructure != nil {
		if err := a.Infrastructure.Shutdown(); err != nil {
			return err
		}
	}
	return nil
}
