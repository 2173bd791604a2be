package routes

import (
	"model_upload_backend/handlers"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

func SetupWebSocketRoutes(app *fiber.App, wsHandler *handlers.WSHandler) {
	ws := app.Group("/ws")
	ws.Use("/models/:model_id", wsHandler.WebSocketUpgrade)
	ws.Get("/models/:model_id", websocket.New(wsHandler.HandleModelEvents))
}
