package modules

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"synapse/internal/models"
	"synapse/internal/services"
)

const taskModuleName = "Task Intelligence Engine"

// TaskIntelligence is the built-in task module. It owns a small task store,
// publishes task_created events for new tasks, analyzes tasks created by
// other modules and keeps the hub's insights attached to the tasks that
// produced them.
type TaskIntelligence struct {
	bus *services.EventBus
	hub *services.IntelligenceHub

	moduleID string
	subs     []busSubscription

	mu           sync.RWMutex
	tasks        map[string]map[string]any
	lastInsights map[string]any
}

func NewTaskIntelligence(bus *services.EventBus, hub *services.IntelligenceHub) *TaskIntelligence {
	return &TaskIntelligence{
		bus:   bus,
		hub:   hub,
		tasks: make(map[string]map[string]any),
	}
}

// Start registers with the hub, binds the invoker and subscribes handlers.
func (t *TaskIntelligence) Start() error {
	stored, err := t.hub.RegisterModule(&models.ModuleRegistration{
		Name:        taskModuleName,
		Category:    models.ModuleCategoryTasks,
		Version:     "1.2.0",
		Description: "Smart task management and prioritization with event-driven architecture",
		Endpoint:    "task-module/internal/events",
		Capabilities: []string{
			"task_management", "prioritization", "automation", "analysis",
		},
	})
	if err != nil {
		return err
	}
	t.moduleID = stored.ID
	t.hub.BindInvoker(t.moduleID, t)

	if err := track(t.bus, &t.subs, models.EventKindTaskCreated, t.handleTaskCreated); err != nil {
		return err
	}
	if err := track(t.bus, &t.subs, models.EventKindIntelligenceResponse, t.handleIntelligenceResponse); err != nil {
		return err
	}
	if err := track(t.bus, &t.subs, models.EventKindInsightGenerated, t.handleTaskAnalysis); err != nil {
		return err
	}

	log.Printf("📋 Task module started: id=%s", t.moduleID)
	return nil
}

// Stop detaches the module from the bus.
func (t *TaskIntelligence) Stop() {
	unsubscribeAll(t.bus, t.subs)
	t.subs = nil
	log.Printf("📋 Task module stopped: id=%s", t.moduleID)
}

// ID returns the hub-assigned module id.
func (t *TaskIntelligence) ID() string { return t.moduleID }

// CreateTask stores a new task and publishes it as a task_created event.
// Title is required; priority defaults to medium.
func (t *TaskIntelligence) CreateTask(data map[string]any) (map[string]any, error) {
	title, _ := data["title"].(string)
	if title == "" {
		return nil, errors.New("task title is required")
	}
	description, _ := data["description"].(string)
	priority, _ := data["priority"].(string)
	if priority == "" {
		priority = "medium"
	}
	userID, _ := data["user_id"].(string)
	if userID == "" {
		userID = "unknown"
	}

	taskID := uuid.New().String()
	task := map[string]any{
		"task_id":     taskID,
		"title":       title,
		"description": description,
		"priority":    priority,
		"status":      "created",
		"created_at":  time.Now().UTC().Format(time.RFC3339Nano),
		"user_id":     userID,
	}

	t.mu.Lock()
	t.tasks[taskID] = task
	t.mu.Unlock()

	event := models.NewEvent(models.EventKindTaskCreated, t.moduleID, clonePayload(task), map[string]any{
		"user_id": userID,
		"source":  "task_module",
	})
	if err := t.bus.Publish(event); err != nil {
		return nil, err
	}

	return map[string]any{
		"task_id":  taskID,
		"status":   "created",
		"message":  "Task created and event published",
		"event_id": event.ID,
	}, nil
}

// Task returns a copy of a stored task.
func (t *TaskIntelligence) Task(id string) (map[string]any, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	task, ok := t.tasks[id]
	if !ok {
		return nil, false
	}
	return clonePayload(task), true
}

// handleTaskCreated analyzes tasks created by anyone else and publishes the
// analysis as an insight.
func (t *TaskIntelligence) handleTaskCreated(event *models.Event) error {
	if event.SourceModule == t.moduleID {
		return nil
	}
	analysis := models.NewEvent(models.EventKindInsightGenerated, t.moduleID, map[string]any{
		"type":            "task_analysis",
		"task_id":         event.PayloadString("task_id"),
		"insights":        []string{"Task complexity: medium", "Estimated completion: 2 hours"},
		"recommendations": []string{"Break into subtasks", "Set reminder for follow-up"},
	}, map[string]any{"original_event_id": event.ID})
	return t.bus.Publish(analysis)
}

// handleIntelligenceResponse attaches core insights to the task whose
// creation triggered the response.
func (t *TaskIntelligence) handleIntelligenceResponse(event *models.Event) error {
	insights, _ := event.Payload["core_insights"].(map[string]any)
	if insights == nil {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastInsights = insights

	original, ok := event.Payload["original_event"].(*models.Event)
	if !ok || original.Kind != models.EventKindTaskCreated {
		return nil
	}
	if task, ok := t.tasks[original.PayloadString("task_id")]; ok {
		task["last_insights"] = insights
	}
	return nil
}

// handleTaskAnalysis folds externally produced task analyses into the task
// record they describe.
func (t *TaskIntelligence) handleTaskAnalysis(event *models.Event) error {
	if event.SourceModule == t.moduleID || event.PayloadString("type") != "task_analysis" {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if task, ok := t.tasks[event.PayloadString("task_id")]; ok {
		task["analysis"] = clonePayload(event.Payload)
		log.Printf("📋 Task module attached analysis to task %s", event.PayloadString("task_id"))
	}
	return nil
}

// Invoke answers hub invocations with the task view of the event.
func (t *TaskIntelligence) Invoke(_ context.Context, _ *models.Event, snapshot *models.ContextSnapshot) (map[string]any, error) {
	t.mu.RLock()
	tracked := len(t.tasks)
	t.mu.RUnlock()

	return map[string]any{
		"processed":                 true,
		"confidence":                0.85,
		"context_used":              snapshotKeys(snapshot),
		"estimated_completion_time": "2 hours",
		"priority":                  "high",
		"dependencies":              []string{},
		"tracked_tasks":             tracked,
	}, nil
}

// Stats reports task counters grouped by priority.
func (t *TaskIntelligence) Stats() map[string]any {
	t.mu.RLock()
	defer t.mu.RUnlock()

	byPriority := map[string]int{"high": 0, "medium": 0, "low": 0}
	for _, task := range t.tasks {
		if priority, ok := task["priority"].(string); ok {
			if _, known := byPriority[priority]; known {
				byPriority[priority]++
			}
		}
	}
	return map[string]any{
		"total_tasks":       len(t.tasks),
		"tasks_by_priority": byPriority,
		"module_id":         t.moduleID,
		"module_name":       taskModuleName,
	}
}
