package services

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"synapse/internal/models"
)

func routerFixture(t *testing.T) (*ModuleRegistry, *RelevanceRouter) {
	t.Helper()
	registry := NewModuleRegistry()
	router := NewRelevanceRouter(registry)

	regs := []*models.ModuleRegistration{
		testRegistration("chat-module", "Chat", models.ModuleCategoryChat, "chat", "sentiment_analysis"),
		testRegistration("task-module", "Tasks", models.ModuleCategoryTasks, "task_management", "automation"),
		testRegistration("insight-module", "Insights", models.ModuleCategoryInsights, "insights", "analytics"),
	}
	for _, reg := range regs {
		if err := registry.Register(reg); err != nil {
			t.Fatalf("Register %s failed: %v", reg.ID, err)
		}
	}
	return registry, router
}

func routedIDs(modules []*models.ModuleRegistration) []string {
	ids := make([]string, 0, len(modules))
	for _, m := range modules {
		ids = append(ids, m.ID)
	}
	return ids
}

func TestRelevanceRouter_CapabilityIntersection(t *testing.T) {
	_, router := routerFixture(t)

	// task_created maps to task_management, automation and analysis. Only
	// the task module carries any of those.
	matched := router.Route(testEvent(models.EventKindTaskCreated, "api"))
	ids := routedIDs(matched)
	if len(ids) != 1 || ids[0] != "task-module" {
		t.Errorf("Expected [task-module], got %v", ids)
	}

	// message_received maps to chat, insights and sentiment_analysis.
	matched = router.Route(testEvent(models.EventKindMessageReceived, "api"))
	ids = routedIDs(matched)
	if len(ids) != 2 || ids[0] != "chat-module" || ids[1] != "insight-module" {
		t.Errorf("Expected [chat-module insight-module] in registration order, got %v", ids)
	}
}

func TestRelevanceRouter_SourceExclusion(t *testing.T) {
	_, router := routerFixture(t)

	// The chat module matches message_received but produced this event, so
	// it must not route back to itself.
	matched := router.Route(testEvent(models.EventKindMessageReceived, "chat-module"))
	ids := routedIDs(matched)
	if len(ids) != 1 || ids[0] != "insight-module" {
		t.Errorf("Expected source module excluded, got %v", ids)
	}
}

func TestRelevanceRouter_UnmappedKind(t *testing.T) {
	_, router := routerFixture(t)

	for _, kind := range []models.EventKind{
		models.EventKindTaskCompleted,
		models.EventKindMessageSent,
		models.EventKindModuleRegistered,
		models.EventKindIntelligenceResponse,
	} {
		if matched := router.Route(testEvent(kind, "api")); len(matched) != 0 {
			t.Errorf("Kind %s has no table entry and should route nowhere, got %v", kind, routedIDs(matched))
		}
	}

	if matched := router.Route(nil); matched != nil {
		t.Error("Routing a nil event should return nothing")
	}
}

func TestRelevanceRouter_ReplaceTable(t *testing.T) {
	_, router := routerFixture(t)

	err := router.ReplaceTable(map[models.EventKind][]string{
		models.EventKindTaskCreated: {"chat"},
	})
	if err != nil {
		t.Fatalf("ReplaceTable failed: %v", err)
	}

	matched := router.Route(testEvent(models.EventKindTaskCreated, "api"))
	ids := routedIDs(matched)
	if len(ids) != 1 || ids[0] != "chat-module" {
		t.Errorf("Expected the replaced table to route to chat-module, got %v", ids)
	}

	// Kinds dropped from the table stop routing.
	if matched := router.Route(testEvent(models.EventKindMessageReceived, "api")); len(matched) != 0 {
		t.Errorf("Expected message_received unrouted after replace, got %v", routedIDs(matched))
	}
}

func TestRelevanceRouter_ReplaceTableRejectsUnknownKind(t *testing.T) {
	_, router := routerFixture(t)

	err := router.ReplaceTable(map[models.EventKind][]string{
		models.EventKind("not_real"): {"chat"},
	})
	if !errors.Is(err, ErrUnknownEventKind) {
		t.Fatalf("Expected ErrUnknownEventKind, got %v", err)
	}

	// The previous table must still be in effect.
	matched := router.Route(testEvent(models.EventKindTaskCreated, "api"))
	if len(matched) != 1 {
		t.Errorf("Old table should survive a rejected replace, got %v", routedIDs(matched))
	}
}

func TestRelevanceRouter_LoadFile(t *testing.T) {
	_, router := routerFixture(t)

	path := filepath.Join(t.TempDir(), "routing.yaml")
	content := `routing:
  task_created: [insights]
  user_activity: [chat]
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	if err := router.LoadFile(path); err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	matched := router.Route(testEvent(models.EventKindTaskCreated, "api"))
	ids := routedIDs(matched)
	if len(ids) != 1 || ids[0] != "insight-module" {
		t.Errorf("Expected file table routing task_created to insight-module, got %v", ids)
	}
	matched = router.Route(testEvent(models.EventKindUserActivity, "api"))
	ids = routedIDs(matched)
	if len(ids) != 1 || ids[0] != "chat-module" {
		t.Errorf("Expected file table routing user_activity to chat-module, got %v", ids)
	}
}

func TestRelevanceRouter_LoadFileErrors(t *testing.T) {
	_, router := routerFixture(t)

	if err := router.LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Loading a missing file should fail")
	}

	badKind := filepath.Join(t.TempDir(), "routing.yaml")
	os.WriteFile(badKind, []byte("routing:\n  bogus_kind: [chat]\n"), 0o644)
	if err := router.LoadFile(badKind); !errors.Is(err, ErrUnknownEventKind) {
		t.Errorf("Expected ErrUnknownEventKind for bogus kinds, got %v", err)
	}

	empty := filepath.Join(t.TempDir(), "empty.yaml")
	os.WriteFile(empty, []byte("# nothing here\n"), 0o644)
	if err := router.LoadFile(empty); err == nil {
		t.Error("Loading a file without a routing section should fail")
	}

	// Every failed load leaves the default table serving.
	matched := router.Route(testEvent(models.EventKindTaskCreated, "api"))
	if len(matched) != 1 || matched[0].ID != "task-module" {
		t.Errorf("Default table should survive failed loads, got %v", routedIDs(matched))
	}
}

func TestRelevanceRouter_TableSnapshot(t *testing.T) {
	_, router := routerFixture(t)

	table := router.Table()
	if len(table) != 4 {
		t.Fatalf("Expected 4 default entries, got %d", len(table))
	}
	caps := table[models.EventKindMessageReceived]
	want := []string{"chat", "insights", "sentiment_analysis"}
	if len(caps) != len(want) {
		t.Fatalf("Expected %v, got %v", want, caps)
	}
	for i := range want {
		if caps[i] != want[i] {
			t.Errorf("Capability %d: expected %s, got %s", i, want[i], caps[i])
		}
	}
}
