package modules

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"synapse/internal/models"
	"synapse/internal/services"
)

const insightModuleName = "Insight Generator"

// InsightGenerator is the built-in analytics module. It watches task,
// message and activity events and publishes a pattern insight for each one.
type InsightGenerator struct {
	bus *services.EventBus
	hub *services.IntelligenceHub

	moduleID string
	subs     []busSubscription

	mu       sync.RWMutex
	insights map[string]map[string]any
}

func NewInsightGenerator(bus *services.EventBus, hub *services.IntelligenceHub) *InsightGenerator {
	return &InsightGenerator{
		bus:      bus,
		hub:      hub,
		insights: make(map[string]map[string]any),
	}
}

// Start registers with the hub, binds the invoker and subscribes handlers.
func (g *InsightGenerator) Start() error {
	stored, err := g.hub.RegisterModule(&models.ModuleRegistration{
		Name:        insightModuleName,
		Category:    models.ModuleCategoryInsights,
		Version:     "2.1.0",
		Description: "Pattern recognition and insight generation with event-driven architecture",
		Endpoint:    "insight-module/internal/events",
		Capabilities: []string{
			"insights", "pattern_recognition", "analytics", "trend_analysis",
		},
	})
	if err != nil {
		return err
	}
	g.moduleID = stored.ID
	g.hub.BindInvoker(g.moduleID, g)

	if err := track(g.bus, &g.subs, models.EventKindTaskCreated, g.handleTaskEvent); err != nil {
		return err
	}
	if err := track(g.bus, &g.subs, models.EventKindMessageReceived, g.handleMessageEvent); err != nil {
		return err
	}
	if err := track(g.bus, &g.subs, models.EventKindUserActivity, g.handleUserActivity); err != nil {
		return err
	}

	log.Printf("🔍 Insight module started: id=%s", g.moduleID)
	return nil
}

// Stop detaches the module from the bus.
func (g *InsightGenerator) Stop() {
	unsubscribeAll(g.bus, g.subs)
	g.subs = nil
	log.Printf("🔍 Insight module stopped: id=%s", g.moduleID)
}

// ID returns the hub-assigned module id.
func (g *InsightGenerator) ID() string { return g.moduleID }

func (g *InsightGenerator) handleTaskEvent(event *models.Event) error {
	insight := g.record(map[string]any{
		"type":         "task_pattern",
		"source_event": event.ID,
		"patterns":     []string{"High-priority task created", "Similar tasks completed in 2-3 hours"},
		"confidence":   0.85,
	})
	return g.publish(insight, map[string]any{"original_event_id": event.ID})
}

func (g *InsightGenerator) handleMessageEvent(event *models.Event) error {
	insight := g.record(map[string]any{
		"type":         "communication_pattern",
		"source_event": event.ID,
		"patterns":     []string{"User seeking assistance", "Common support topic"},
		"sentiment":    "neutral",
		"confidence":   0.78,
	})
	return g.publish(insight, nil)
}

func (g *InsightGenerator) handleUserActivity(event *models.Event) error {
	insight := g.record(map[string]any{
		"type":            "user_behavior",
		"user_id":         event.PayloadString("user_id"),
		"patterns":        []string{"Active during business hours", "Prefers task-based workflow"},
		"recommendations": []string{"Schedule important tasks in morning"},
		"confidence":      0.92,
	})
	return g.publish(insight, nil)
}

// record assigns the insight an id and timestamp and stores it.
func (g *InsightGenerator) record(insight map[string]any) map[string]any {
	insightID := uuid.New().String()
	insight["insight_id"] = insightID
	insight["timestamp"] = time.Now().UTC().Format(time.RFC3339Nano)

	g.mu.Lock()
	g.insights[insightID] = insight
	g.mu.Unlock()
	return insight
}

func (g *InsightGenerator) publish(insight, eventContext map[string]any) error {
	event := models.NewEvent(models.EventKindInsightGenerated, g.moduleID, clonePayload(insight), eventContext)
	return g.bus.Publish(event)
}

// Invoke answers hub invocations with the analytics view of the event.
func (g *InsightGenerator) Invoke(_ context.Context, _ *models.Event, snapshot *models.ContextSnapshot) (map[string]any, error) {
	g.mu.RLock()
	stored := len(g.insights)
	g.mu.RUnlock()

	return map[string]any{
		"processed":            true,
		"confidence":           0.85,
		"context_used":         snapshotKeys(snapshot),
		"key_insights":         []string{"Pattern detected in user behavior", "Opportunity for automation"},
		"recommendations":      []string{"Consider automating this workflow"},
		"correlation_strength": 0.75,
		"stored_insights":      stored,
	}, nil
}

// Stats reports insight counters grouped by type.
func (g *InsightGenerator) Stats() map[string]any {
	g.mu.RLock()
	defer g.mu.RUnlock()

	byType := make(map[string]int)
	for _, insight := range g.insights {
		insightType, _ := insight["type"].(string)
		if insightType == "" {
			insightType = "unknown"
		}
		byType[insightType]++
	}
	return map[string]any{
		"total_insights":   len(g.insights),
		"insights_by_type": byType,
		"module_id":        g.moduleID,
		"module_name":      insightModuleName,
	}
}
