package services

import (
	"errors"
	"testing"
	"time"

	"synapse/internal/models"
)

func testRegistration(id, name string, category models.ModuleCategory, capabilities ...string) *models.ModuleRegistration {
	return &models.ModuleRegistration{
		ID:           id,
		Name:         name,
		Category:     category,
		Version:      "1.0.0",
		Capabilities: capabilities,
	}
}

func TestModuleRegistry_RegisterAndGet(t *testing.T) {
	registry := NewModuleRegistry()

	reg := testRegistration("chat-1", "Chat Module", models.ModuleCategoryChat, "chat", "sentiment_analysis")
	if err := registry.Register(reg); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	got, err := registry.Get("chat-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Name != "Chat Module" {
		t.Errorf("Expected name %q, got %q", "Chat Module", got.Name)
	}
	if got.RegisteredAt.IsZero() {
		t.Error("RegisteredAt should be stamped on registration")
	}
	if registry.Count() != 1 {
		t.Errorf("Expected 1 module, got %d", registry.Count())
	}
}

func TestModuleRegistry_RegisterValidation(t *testing.T) {
	registry := NewModuleRegistry()

	cases := []struct {
		name string
		reg  *models.ModuleRegistration
	}{
		{"nil registration", nil},
		{"missing id", testRegistration("", "Module", models.ModuleCategoryChat)},
		{"missing name", testRegistration("mod-1", "", models.ModuleCategoryChat)},
		{"bad category", testRegistration("mod-1", "Module", models.ModuleCategory("bogus"))},
	}
	for _, tc := range cases {
		err := registry.Register(tc.reg)
		if !errors.Is(err, ErrInvalidRegistration) {
			t.Errorf("%s: expected ErrInvalidRegistration, got %v", tc.name, err)
		}
	}
	if registry.Count() != 0 {
		t.Errorf("Invalid registrations should not be stored, got %d", registry.Count())
	}
}

func TestModuleRegistry_ReRegisterReplaces(t *testing.T) {
	registry := NewModuleRegistry()

	registry.Register(testRegistration("mod-1", "Old Name", models.ModuleCategoryTasks, "task_management"))
	registry.Register(testRegistration("mod-1", "New Name", models.ModuleCategoryTasks, "task_management", "automation"))

	got, err := registry.Get("mod-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Name != "New Name" {
		t.Errorf("Re-registration should replace the entry, got name %q", got.Name)
	}
	if len(got.Capabilities) != 2 {
		t.Errorf("Expected 2 capabilities after update, got %d", len(got.Capabilities))
	}
	if registry.Count() != 1 {
		t.Errorf("Re-registration should not add a second entry, got %d", registry.Count())
	}
}

func TestModuleRegistry_CapabilityDedupe(t *testing.T) {
	registry := NewModuleRegistry()

	registry.Register(testRegistration("mod-1", "Module", models.ModuleCategoryInsights,
		"insights", "analytics", "insights", "", "analytics"))

	got, _ := registry.Get("mod-1")
	want := []string{"insights", "analytics"}
	if len(got.Capabilities) != len(want) {
		t.Fatalf("Expected capabilities %v, got %v", want, got.Capabilities)
	}
	for i := range want {
		if got.Capabilities[i] != want[i] {
			t.Errorf("Capability %d: expected %s, got %s", i, want[i], got.Capabilities[i])
		}
	}
}

func TestModuleRegistry_Unregister(t *testing.T) {
	registry := NewModuleRegistry()

	registry.Register(testRegistration("mod-1", "Module", models.ModuleCategoryChat, "chat"))
	if err := registry.Unregister("mod-1"); err != nil {
		t.Fatalf("Unregister failed: %v", err)
	}

	if _, err := registry.Get("mod-1"); !errors.Is(err, ErrUnknownModule) {
		t.Errorf("Expected ErrUnknownModule after unregister, got %v", err)
	}
	if err := registry.Unregister("mod-1"); !errors.Is(err, ErrUnknownModule) {
		t.Errorf("Expected ErrUnknownModule for missing module, got %v", err)
	}
}

func TestModuleRegistry_ListOrder(t *testing.T) {
	registry := NewModuleRegistry()

	base := time.Now().UTC()
	for i, id := range []string{"third", "first", "second"} {
		reg := testRegistration(id, "Module "+id, models.ModuleCategoryAutomation, "automation")
		switch i {
		case 0:
			reg.RegisteredAt = base.Add(2 * time.Second)
		case 1:
			reg.RegisteredAt = base
		case 2:
			reg.RegisteredAt = base.Add(time.Second)
		}
		registry.Register(reg)
	}

	list := registry.List()
	if len(list) != 3 {
		t.Fatalf("Expected 3 modules, got %d", len(list))
	}
	want := []string{"first", "second", "third"}
	for i := range want {
		if list[i].ID != want[i] {
			t.Errorf("Position %d: expected %s, got %s", i, want[i], list[i].ID)
		}
	}
}

func TestModuleRegistry_GetReturnsCopy(t *testing.T) {
	registry := NewModuleRegistry()

	registry.Register(testRegistration("mod-1", "Module", models.ModuleCategoryChat, "chat"))

	got, _ := registry.Get("mod-1")
	got.Name = "Mutated"
	got.Capabilities[0] = "mutated"

	fresh, _ := registry.Get("mod-1")
	if fresh.Name != "Module" || fresh.Capabilities[0] != "chat" {
		t.Error("Mutating a returned registration should not affect the stored one")
	}
}

func TestModuleRegistry_Stats(t *testing.T) {
	registry := NewModuleRegistry()

	registry.Register(testRegistration("chat-1", "Chat", models.ModuleCategoryChat, "chat", "sentiment_analysis"))
	registry.Register(testRegistration("chat-2", "Chat 2", models.ModuleCategoryChat, "chat"))
	registry.Register(testRegistration("task-1", "Tasks", models.ModuleCategoryTasks, "task_management"))

	stats := registry.Stats()
	if stats.TotalModules != 3 {
		t.Errorf("Expected 3 modules, got %d", stats.TotalModules)
	}
	if stats.ModulesByType[models.ModuleCategoryChat] != 2 {
		t.Errorf("Expected 2 chat modules, got %d", stats.ModulesByType[models.ModuleCategoryChat])
	}
	if stats.ModulesByType[models.ModuleCategoryTasks] != 1 {
		t.Errorf("Expected 1 tasks module, got %d", stats.ModulesByType[models.ModuleCategoryTasks])
	}

	want := []string{"chat", "sentiment_analysis", "task_management"}
	if len(stats.ActiveCapabilities) != len(want) {
		t.Fatalf("Expected capabilities %v, got %v", want, stats.ActiveCapabilities)
	}
	for i := range want {
		if stats.ActiveCapabilities[i] != want[i] {
			t.Errorf("Capability %d: expected %s, got %s", i, want[i], stats.ActiveCapabilities[i])
		}
	}
}
