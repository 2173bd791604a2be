package handlers

import (
	"context"
	"encoding/json"

	"model_upload_backend/models"
	"model_upload_backend/pkg/logging"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

type ModelEventSource interface {
	SubscribeModelEvents(ctx context.Context, modelID string) (<-chan *models.ModelEvent, error)
}

type WSHandler struct {
	events ModelEventSource
}

func NewWSHandler(events ModelEventSource) *WSHandler {
	return &WSHandler{events: events}
}

func (h *WSHandler) WebSocketUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return c.Status(fiber.StatusUpgradeRequired).JSON(models.ErrorResp{Error: "Not a websocket request"})
}

func (h *WSHandler) HandleModelEvents(c *websocket.Conn) {
	modelID := c.Params("model_id")
	logging.Logger.Info("WebSocket connected", "modelID", modelID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// the read loop notices the client going away
	go func() {
		defer cancel()
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	eventChan, err := h.events.SubscribeModelEvents(ctx, modelID)
	if err != nil {
		logging.Logger.Error("Failed to subscribe to events", "error", err)
		_ = c.WriteMessage(websocket.TextMessage, []byte(`{"error":"Failed to subscribe"}`))
		return
	}
	err = c.WriteJSON(fiber.Map{
		"type":     "connected",
		"message":  "WebSocket connected successfully",
		"model_id": modelID,
	})
	if err != nil {
		return
	}

	for {
		select {
		case event, ok := <-eventChan:
			if !ok {
				return
			}
			data, _ := json.Marshal(event)
			if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
				logging.Logger.Error("Failed to send WebSocket message", "error", err)
				return
			}
			logging.Logger.Debug("Event sent to client", "type", event.Type, "modelID", event.ModelID)
		case <-ctx.Done():
			return
		}
	}
}
