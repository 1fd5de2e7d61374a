package handlers

import (
	"github.com/gofiber/fiber/v2"

	"shopkeeper/internal/models"
	"shopkeeper/internal/orchestrator"
	"shopkeeper/internal/provider"
)

// DispatchHandler handles generation requests
type DispatchHandler struct {
	orchestrator *orchestrator.Service
}

// NewDispatchHandler creates a new dispatch handler
func NewDispatchHandler(orch *orchestrator.Service) *DispatchHandler {
	return &DispatchHandler{orchestrator: orch}
}

// Dispatch runs one text generation request
func (h *DispatchHandler) Dispatch(c *fiber.Ctx) error {
	var req models.DispatchRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.SkillID == "" || req.Message == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "skill_id and message are required",
		})
	}

	result, err := h.orchestrator.Dispatch(c.Context(), &req)
	if err != nil {
		return providerErrorResponse(c, err)
	}

	return c.JSON(result)
}

// GenerateImage runs one image generation request
func (h *DispatchHandler) GenerateImage(c *fiber.Ctx) error {
	var req struct {
		SkillID string `json:"skill_id"`
		Prompt  string `json:"prompt"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.SkillID == "" || req.Prompt == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "skill_id and prompt are required",
		})
	}

	urls, err := h.orchestrator.GenerateImage(c.Context(), req.SkillID, req.Prompt)
	if err != nil {
		return providerErrorResponse(c, err)
	}

	return c.JSON(fiber.Map{
		"images": urls,
	})
}

// providerErrorResponse maps the error taxonomy onto HTTP statuses.
// Configuration problems are the caller's to fix; everything else surfaces a
// generic message so upstream error bodies and credentials never leak.
func providerErrorResponse(c *fiber.Ctx, err error) error {
	if provider.IsConfig(err) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
		"error": "Generation temporarily unavailable, please try again later",
	})
}
