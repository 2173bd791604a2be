package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"model_upload_backend/bootstrap"
	"model_upload_backend/config"
	"model_upload_backend/middleware"
	"model_upload_backend/models"
	"model_upload_backend/pkg/logging"
	"model_upload_backend/routes"

	"github.com/gofiber/fiber/v2"
	"github.com/joho/godotenv"
)

func main() {
	// .env is optional; real deployments set the environment directly
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.Logger.Warn("could not load .env", "error", err)
	}
	logging.Init()

	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logging.Logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.NewApp(ctx, cfg)
	if err != nil {
		logging.Logger.Error("fail NewApp", "error", err)
		os.Exit(1)
	}
	app.Start(ctx)

	server := fiber.New(fiber.Config{
		AppName:      "model-upload-backend",
		BodyLimit:    1 * 1024 * 1024,
		ErrorHandler: errorHandler,
	})
	server.Use(middleware.Logger(os.Getenv("APP_ENV"), os.Stdout))
	server.Use(middleware.CORS(cfg.AllowOrigins))

	routes.RegisterHealthRoutes(server, app.Handlers.HealthHandler)
	routes.RegisterModelRoutes(server, app.Handlers.ModelHandler)
	routes.SetupWebSocketRoutes(server, app.Handlers.WSHandler)

	go func() {
		<-ctx.Done()
		logging.Logger.Info("shutting down")
		if err := server.ShutdownWithTimeout(10 * time.Second); err != nil {
			logging.Logger.Error("fail server shutdown", "error", err)
		}
	}()

	logging.Logger.Info("Server running", "port", cfg.HttpPort)
	if err := server.Listen(":" + cfg.HttpPort); err != nil {
		logging.Logger.Error("server stopped", "error", err)
	}
	if err := app.Shutdown(); err != nil {
		logging.Logger.Error("fail app shutdown", "error", err)
		os.Exit(1)
	}
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(models.ErrorResp{Error: err.Error()})
}
