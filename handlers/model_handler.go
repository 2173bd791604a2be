package handlers

import (
	"context"
	"errors"
	"strings"

	"model_upload_backend/models"
	"model_upload_backend/pkg/logging"
	"model_upload_backend/services"

	"github.com/gofiber/fiber/v2"
)

type ModelAPI interface {
	RequestUploadURL(ctx context.Context, req models.UploadURLReq) (*models.UploadURLResp, error)
	GetModel(ctx context.Context, modelID string) (*models.Model, error)
}

type RunAPI interface {
	CreateRun(ctx context.Context, modelID string) (*models.CreateRunResp, error)
	GetRun(ctx context.Context, runID string) (*models.Run, error)
}

type ModelHandler struct {
	modelService ModelAPI
	runService   RunAPI
}

func NewModelHandler(modelService ModelAPI, runService RunAPI) *ModelHandler {
	return &ModelHandler{modelService: modelService, runService: runService}
}

func (h *ModelHandler) RequestUploadURL(c *fiber.Ctx) error {
	var req models.UploadURLReq
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResp{Error: "Invalid request"})
	}
	res, err := h.modelService.RequestUploadURL(c.UserContext(), req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(res)
}

func (h *ModelHandler) CreateRun(c *fiber.Ctx) error {
	modelID := c.Params("model_id")
	res, err := h.runService.CreateRun(c.UserContext(), modelID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(res)
}

func (h *ModelHandler) GetModel(c *fiber.Ctx) error {
	m, err := h.modelService.GetModel(c.UserContext(), c.Params("model_id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(m)
}

func (h *ModelHandler) GetRun(c *fiber.Ctx) error {
	run, err := h.runService.GetRun(c.UserContext(), c.Params("run_id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(run)
}

func writeError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	msg := "internal error"
	switch {
	case errors.Is(err, services.ErrInvalidRequest):
		status = fiber.StatusBadRequest
		msg = strings.TrimPrefix(err.Error(), services.ErrInvalidRequest.Error()+": ")
	case errors.Is(err, services.ErrModelNotFound), errors.Is(err, services.ErrRunNotFound):
		status = fiber.StatusNotFound
		msg = err.Error()
	case errors.Is(err, services.ErrArtifactMissing),
		errors.Is(err, services.ErrRunInProgress),
		errors.Is(err, services.ErrModelExpired):
		status = fiber.StatusConflict
		msg = err.Error()
	default:
		logging.Logger.Error("request failed", "path", c.Path(), "error", err)
	}
	return c.Status(status).JSON(models.ErrorResp{Error: msg})
}
