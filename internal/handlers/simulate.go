package handlers

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"synapse/internal/models"
	"synapse/internal/services"
)

// SimulateHandler drives synthetic traffic for demos and load probing. All
// injection is fire-and-forget: the ack returns before orchestration runs.
type SimulateHandler struct {
	bus       *services.EventBus
	scheduler *services.SimulationScheduler
}

// NewSimulateHandler creates a new simulation handler
func NewSimulateHandler(bus *services.EventBus, scheduler *services.SimulationScheduler) *SimulateHandler {
	return &SimulateHandler{bus: bus, scheduler: scheduler}
}

// Task injects a synthetic task_created event. Body fields are optional and
// default to the demo task.
func (h *SimulateHandler) Task(c *fiber.Ctx) error {
	var body struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Priority    string `json:"priority"`
		UserID      string `json:"user_id"`
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&body); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
		}
	}
	if body.Title == "" {
		body.Title = "Test Task from API"
	}
	if body.Description == "" {
		body.Description = "This task was created via API call"
	}
	if body.Priority == "" {
		body.Priority = "high"
	}
	if body.UserID == "" {
		body.UserID = "api_user_123"
	}

	taskID := uuid.New().String()
	event := models.NewEvent(models.EventKindTaskCreated, services.SimulationSource, map[string]any{
		"task_id":     taskID,
		"title":       body.Title,
		"description": body.Description,
		"priority":    body.Priority,
		"status":      "created",
		"created_at":  time.Now().UTC().Format(time.RFC3339Nano),
		"user_id":     body.UserID,
	}, map[string]any{"user_id": body.UserID})
	h.publishAsync(event)

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"task_id":  taskID,
		"status":   "processing",
		"event_id": event.ID,
	})
}

// Message injects a synthetic message_received event.
func (h *SimulateHandler) Message(c *fiber.Ctx) error {
	var body struct {
		Message        string `json:"message"`
		Sender         string `json:"sender"`
		ConversationID string `json:"conversation_id"`
		UserID         string `json:"user_id"`
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&body); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
		}
	}
	if body.Message == "" {
		body.Message = "Hello, can you help me plan my day?"
	}
	if body.Sender == "" {
		body.Sender = "user"
	}
	if body.ConversationID == "" {
		body.ConversationID = uuid.New().String()
	}
	if body.UserID == "" {
		body.UserID = "demo_user_456"
	}

	messageID := uuid.New().String()
	event := models.NewEvent(models.EventKindMessageReceived, services.SimulationSource, map[string]any{
		"message_id":      messageID,
		"conversation_id": body.ConversationID,
		"content":         body.Message,
		"sender":          body.Sender,
		"timestamp":       time.Now().UTC().Format(time.RFC3339Nano),
	}, map[string]any{"user_id": body.UserID})
	h.publishAsync(event)

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"message_id": messageID,
		"status":     "processing",
		"event_id":   event.ID,
	})
}

// Burst schedules a paced batch of synthetic events.
func (h *SimulateHandler) Burst(c *fiber.Ctx) error {
	var body struct {
		Kind       string         `json:"event_type"`
		Count      int            `json:"count"`
		RatePerSec float64        `json:"rate_per_sec"`
		Payload    map[string]any `json:"payload"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
	}

	kind := models.EventKind(body.Kind)
	if !kind.IsValid() {
		return c.Status(400).JSON(fiber.Map{"error": "unknown event type: " + body.Kind})
	}
	count := body.Count
	if count <= 0 {
		count = 1
	}
	if count > services.MaxBurstCount {
		count = services.MaxBurstCount
	}

	go func() {
		if _, err := h.scheduler.Burst(context.Background(), kind, count, body.RatePerSec, body.Payload); err != nil {
			log.Printf("⚠️ Simulation burst failed: type=%s err=%v", kind, err)
		}
	}()

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"scheduled":  count,
		"event_type": kind,
	})
}

// CreateSchedule registers a recurring synthetic event.
func (h *SimulateHandler) CreateSchedule(c *fiber.Ctx) error {
	var body struct {
		Name    string         `json:"name"`
		Cron    string         `json:"cron"`
		Kind    string         `json:"event_type"`
		Payload map[string]any `json:"payload"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
	}
	if strings.TrimSpace(body.Cron) == "" {
		return c.Status(400).JSON(fiber.Map{"error": "cron expression is required"})
	}

	schedule, err := h.scheduler.AddSchedule(body.Name, body.Cron, models.EventKind(body.Kind), body.Payload)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": err.Error()})
	}
	return c.Status(201).JSON(schedule)
}

// ListSchedules returns registered schedules.
func (h *SimulateHandler) ListSchedules(c *fiber.Ctx) error {
	schedules := h.scheduler.ListSchedules()
	return c.JSON(fiber.Map{
		"schedules": schedules,
		"count":     len(schedules),
	})
}

// DeleteSchedule cancels a schedule.
func (h *SimulateHandler) DeleteSchedule(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := h.scheduler.RemoveSchedule(id); err != nil {
		if errors.Is(err, services.ErrScheduleNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": err.Error()})
		}
		return c.Status(500).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{
		"status":      "cancelled",
		"schedule_id": id,
	})
}

func (h *SimulateHandler) publishAsync(event *models.Event) {
	go func() {
		if err := h.bus.Publish(event); err != nil {
			log.Printf("⚠️ Simulated publish failed: type=%s err=%v", event.Kind, err)
		}
	}()
}
