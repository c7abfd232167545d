package handlers

import (
	"github.com/gofiber/fiber/v2"

	"synapse/internal/services"
)

// StatsHandler exposes the observability counters of the bus, the registry
// and the shared context store.
type StatsHandler struct {
	bus      *services.EventBus
	registry *services.ModuleRegistry
	store    *services.ContextStore
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(bus *services.EventBus, registry *services.ModuleRegistry, store *services.ContextStore) *StatsHandler {
	return &StatsHandler{bus: bus, registry: registry, store: store}
}

// Modules returns registry statistics.
func (h *StatsHandler) Modules(c *fiber.Ctx) error {
	return c.JSON(h.registry.Stats())
}

// Events returns bus statistics.
func (h *StatsHandler) Events(c *fiber.Ctx) error {
	return c.JSON(h.bus.Stats())
}

// Context returns shared context statistics.
func (h *StatsHandler) Context(c *fiber.Ctx) error {
	return c.JSON(h.store.Stats())
}
