package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"synapse/internal/models"
	"synapse/internal/services"
)

// ModuleHandler exposes module registration over HTTP.
type ModuleHandler struct {
	hub      *services.IntelligenceHub
	registry *services.ModuleRegistry
}

// NewModuleHandler creates a new module handler
func NewModuleHandler(hub *services.IntelligenceHub, registry *services.ModuleRegistry) *ModuleHandler {
	return &ModuleHandler{hub: hub, registry: registry}
}

// Register stores an external module registration and announces it on the
// bus. The hub assigns an id when the body has none.
func (h *ModuleHandler) Register(c *fiber.Ctx) error {
	var body struct {
		ID           string         `json:"module_id"`
		Name         string         `json:"name"`
		Category     string         `json:"module_type"`
		Version      string         `json:"version"`
		Description  string         `json:"description"`
		Endpoint     string         `json:"endpoint"`
		Capabilities []string       `json:"capabilities"`
		Metadata     map[string]any `json:"metadata"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
	}

	stored, err := h.hub.RegisterModule(&models.ModuleRegistration{
		ID:           body.ID,
		Name:         body.Name,
		Category:     models.ModuleCategory(body.Category),
		Version:      body.Version,
		Description:  body.Description,
		Endpoint:     body.Endpoint,
		Capabilities: body.Capabilities,
		Metadata:     body.Metadata,
	})
	if err != nil {
		if errors.Is(err, services.ErrInvalidRegistration) {
			return c.Status(400).JSON(fiber.Map{"error": err.Error()})
		}
		return c.Status(500).JSON(fiber.Map{"error": err.Error()})
	}

	return c.Status(201).JSON(stored)
}

// List returns all registered modules in registration order.
func (h *ModuleHandler) List(c *fiber.Ctx) error {
	modules := h.registry.List()
	return c.JSON(fiber.Map{
		"modules": modules,
		"count":   len(modules),
	})
}

// Get returns a single module registration.
func (h *ModuleHandler) Get(c *fiber.Ctx) error {
	reg, err := h.registry.Get(c.Params("id"))
	if err != nil {
		if errors.Is(err, services.ErrUnknownModule) {
			return c.Status(404).JSON(fiber.Map{"error": err.Error()})
		}
		return c.Status(500).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(reg)
}

// Delete removes a module registration.
func (h *ModuleHandler) Delete(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := h.hub.UnregisterModule(id); err != nil {
		if errors.Is(err, services.ErrUnknownModule) {
			return c.Status(404).JSON(fiber.Map{"error": err.Error()})
		}
		return c.Status(500).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{
		"status":    "unregistered",
		"module_id": id,
	})
}
