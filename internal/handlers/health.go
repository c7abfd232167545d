package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"synapse/internal/services"
)

// HealthHandler answers liveness probes and the API banner.
type HealthHandler struct {
	registry *services.ModuleRegistry
	stream   *services.EventStream
	started  time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(registry *services.ModuleRegistry, stream *services.EventStream) *HealthHandler {
	return &HealthHandler{
		registry: registry,
		stream:   stream,
		started:  time.Now(),
	}
}

// Handle responds with server health status
func (h *HealthHandler) Handle(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":             "healthy",
		"service":            "core_intelligence",
		"uptime":             time.Since(h.started).Round(time.Second).String(),
		"registered_modules": h.registry.Count(),
		"ws_connections":     h.stream.Count(),
		"timestamp":          time.Now().Format(time.RFC3339),
	})
}

// Root responds with the API banner.
func (h *HealthHandler) Root(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"message":      "Synapse Intelligence Hub API",
		"version":      "1.0.0",
		"status":       "operational",
		"architecture": "event-driven",
	})
}
