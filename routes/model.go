package routes

import (
	"model_upload_backend/handlers"

	"github.com/gofiber/fiber/v2"
)

func RegisterModelRoutes(app *fiber.App, handler *handlers.ModelHandler) {
	api := app.Group("/api/v2")
	api.Post("/upload-url", handler.RequestUploadURL)
	api.Get("/models/:model_id", handler.GetModel)
	api.Post("/models/:model_id/createRun", handler.CreateRun)
	api.Get("/runs/:run_id", handler.GetRun)
}

func RegisterHealthRoutes(app *fiber.App, handler *handlers.HealthHandler) {
	app.Get("/healthz", handler.Health)
}
