package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"shopkeeper/internal/database"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	db        *database.MongoDB
	startTime time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db *database.MongoDB) *HealthHandler {
	return &HealthHandler{db: db, startTime: time.Now()}
}

// Handle responds with server health status
func (h *HealthHandler) Handle(c *fiber.Ctx) error {
	status := "healthy"
	mongoStatus := "connected"
	if err := h.db.Ping(c.Context()); err != nil {
		status = "degraded"
		mongoStatus = "unreachable"
	}

	code := fiber.StatusOK
	if status != "healthy" {
		code = fiber.StatusServiceUnavailable
	}

	return c.Status(code).JSON(fiber.Map{
		"status":    status,
		"mongodb":   mongoStatus,
		"uptime":    time.Since(h.startTime).Round(time.Second).String(),
		"timestamp": time.Now().Format(time.RFC3339),
	})
}
