package handlers

import (
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"

	"synapse/internal/models"
	"synapse/internal/services"
)

// EventsHandler exposes generic event injection and history inspection.
type EventsHandler struct {
	bus *services.EventBus
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(bus *services.EventBus) *EventsHandler {
	return &EventsHandler{bus: bus}
}

// Inject publishes an externally supplied event. The ack returns as soon as
// the event is built; orchestration runs asynchronously to the caller.
func (h *EventsHandler) Inject(c *fiber.Ctx) error {
	var body struct {
		Kind    string         `json:"event_type"`
		Payload map[string]any `json:"payload"`
		Context map[string]any `json:"context"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
	}

	kind := models.EventKind(body.Kind)
	if !kind.IsValid() {
		err := fmt.Errorf("%w: %q", services.ErrUnknownEventKind, body.Kind)
		return c.Status(400).JSON(fiber.Map{"error": err.Error()})
	}

	// Injected events carry no source module, so routing never excludes a
	// registered module on their account.
	event := models.NewEvent(kind, "", body.Payload, body.Context)
	go func() {
		if err := h.bus.Publish(event); err != nil {
			log.Printf("[EVENTS] Injected publish failed: type=%s err=%v", kind, err)
		}
	}()

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"event_id": event.ID,
		"status":   "accepted",
	})
}

// Recent returns the newest history entries, oldest first.
func (h *EventsHandler) Recent(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 20)
	if limit < 0 {
		limit = 20
	}
	events := h.bus.Recent(limit)
	return c.JSON(fiber.Map{
		"events": events,
		"count":  len(events),
	})
}
