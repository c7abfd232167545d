package modules

import (
	"testing"
	"time"

	"synapse/internal/models"
	"synapse/internal/services"
)

type moduleStack struct {
	bus      *services.EventBus
	registry *services.ModuleRegistry
	hub      *services.IntelligenceHub
}

// newModuleStack wires a full hub the way main does, so module tests see the
// same pipeline behavior as a running server.
func newModuleStack(t *testing.T) *moduleStack {
	t.Helper()

	bus := services.NewEventBus(256)
	registry := services.NewModuleRegistry()
	router := services.NewRelevanceRouter(registry)
	store := services.NewContextStore(time.Minute)
	invokers := services.NewInvokerTable(nil)
	orchestrator := services.NewOrchestrator(invokers, 2*time.Second, 8)
	hub := services.NewIntelligenceHub(bus, registry, router, orchestrator, store, invokers)
	if err := hub.Start(); err != nil {
		t.Fatalf("hub start: %v", err)
	}
	t.Cleanup(hub.Stop)

	return &moduleStack{bus: bus, registry: registry, hub: hub}
}

// capture collects every event of one kind published after the call.
// Delivery is synchronous, so the slice is safe to read once Publish returns.
func capture(t *testing.T, bus *services.EventBus, kind models.EventKind) *[]*models.Event {
	t.Helper()

	events := &[]*models.Event{}
	if _, err := bus.Subscribe(kind, func(event *models.Event) error {
		*events = append(*events, event)
		return nil
	}); err != nil {
		t.Fatalf("subscribe %s: %v", kind, err)
	}
	return events
}

func startModule(t *testing.T, m Module) {
	t.Helper()
	if err := m.Start(); err != nil {
		t.Fatalf("module start: %v", err)
	}
	t.Cleanup(m.Stop)
	if m.ID() == "" {
		t.Fatal("expected module id after start")
	}
}
