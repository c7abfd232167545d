package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"synapse/internal/models"
)

func staticInvoker(response map[string]any) ModuleInvoker {
	return InvokerFunc(func(context.Context, *models.Event, *models.ContextSnapshot) (map[string]any, error) {
		return response, nil
	})
}

func TestOrchestrator_GatherPreservesOrder(t *testing.T) {
	table := NewInvokerTable(nil)
	// The slow module comes first, so a finish-order gather would flip the
	// results.
	table.Bind("slow", InvokerFunc(func(ctx context.Context, _ *models.Event, _ *models.ContextSnapshot) (map[string]any, error) {
		time.Sleep(50 * time.Millisecond)
		return map[string]any{"speed": "slow"}, nil
	}))
	table.Bind("fast", staticInvoker(map[string]any{"speed": "fast"}))

	orch := NewOrchestrator(table, time.Second, 4)
	modules := []*models.ModuleRegistration{
		testRegistration("slow", "Slow Module", models.ModuleCategoryInsights, "insights"),
		testRegistration("fast", "Fast Module", models.ModuleCategoryChat, "chat"),
	}

	responses := orch.Gather(context.Background(), testEvent(models.EventKindMessageReceived, "api"), nil, modules)
	if len(responses) != 2 {
		t.Fatalf("Expected 2 responses, got %d", len(responses))
	}
	if responses[0].ModuleID != "slow" || responses[1].ModuleID != "fast" {
		t.Errorf("Responses should preserve input order, got [%s %s]",
			responses[0].ModuleID, responses[1].ModuleID)
	}
	if responses[0].ModuleName != "Slow Module" {
		t.Errorf("Response should carry the module name, got %q", responses[0].ModuleName)
	}
}

func TestOrchestrator_FailureIsolation(t *testing.T) {
	table := NewInvokerTable(nil)
	table.Bind("errors", InvokerFunc(func(context.Context, *models.Event, *models.ContextSnapshot) (map[string]any, error) {
		return nil, errors.New("module exploded")
	}))
	table.Bind("panics", InvokerFunc(func(context.Context, *models.Event, *models.ContextSnapshot) (map[string]any, error) {
		panic("module panicked")
	}))
	table.Bind("works", staticInvoker(map[string]any{"ok": true}))

	orch := NewOrchestrator(table, time.Second, 4)
	modules := []*models.ModuleRegistration{
		testRegistration("errors", "Erroring", models.ModuleCategoryChat, "chat"),
		testRegistration("panics", "Panicking", models.ModuleCategoryTasks, "task_management"),
		testRegistration("works", "Working", models.ModuleCategoryInsights, "insights"),
	}

	responses := orch.Gather(context.Background(), testEvent(models.EventKindTaskCreated, "api"), nil, modules)
	if len(responses) != 1 {
		t.Fatalf("Expected only the working module's response, got %d", len(responses))
	}
	if responses[0].ModuleID != "works" {
		t.Errorf("Expected response from works, got %s", responses[0].ModuleID)
	}
}

func TestOrchestrator_TimeoutDropsResponse(t *testing.T) {
	table := NewInvokerTable(nil)
	// This invoker ignores ctx entirely; the gather must still come back
	// once the deadline passes.
	table.Bind("stuck", InvokerFunc(func(context.Context, *models.Event, *models.ContextSnapshot) (map[string]any, error) {
		time.Sleep(300 * time.Millisecond)
		return map[string]any{"late": true}, nil
	}))
	table.Bind("prompt", staticInvoker(map[string]any{"late": false}))

	orch := NewOrchestrator(table, 50*time.Millisecond, 4)
	modules := []*models.ModuleRegistration{
		testRegistration("stuck", "Stuck", models.ModuleCategoryAutomation, "automation"),
		testRegistration("prompt", "Prompt", models.ModuleCategoryChat, "chat"),
	}

	start := time.Now()
	responses := orch.Gather(context.Background(), testEvent(models.EventKindUserActivity, "api"), nil, modules)
	elapsed := time.Since(start)

	if len(responses) != 1 || responses[0].ModuleID != "prompt" {
		t.Fatalf("Expected only the prompt response, got %d", len(responses))
	}
	if elapsed >= 280*time.Millisecond {
		t.Errorf("Gather should return at the deadline, waited %v", elapsed)
	}
}

func TestOrchestrator_ParallelismCap(t *testing.T) {
	var current, peak atomic.Int32
	observe := InvokerFunc(func(context.Context, *models.Event, *models.ContextSnapshot) (map[string]any, error) {
		n := current.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		current.Add(-1)
		return map[string]any{}, nil
	})

	table := NewInvokerTable(nil)
	var modules []*models.ModuleRegistration
	for _, id := range []string{"a", "b", "c", "d", "e", "f"} {
		table.Bind(id, observe)
		modules = append(modules, testRegistration(id, "Module "+id, models.ModuleCategoryChat, "chat"))
	}

	orch := NewOrchestrator(table, time.Second, 2)
	responses := orch.Gather(context.Background(), testEvent(models.EventKindMessageReceived, "api"), nil, modules)

	if len(responses) != 6 {
		t.Fatalf("Expected 6 responses, got %d", len(responses))
	}
	if peak.Load() > 2 {
		t.Errorf("Expected at most 2 concurrent invocations, saw %d", peak.Load())
	}
}

func TestOrchestrator_FallbackInvoker(t *testing.T) {
	orch := NewOrchestrator(NewInvokerTable(nil), time.Second, 4)
	modules := []*models.ModuleRegistration{
		testRegistration("external", "External Module", models.ModuleCategoryThirdParty, "analytics"),
	}

	snapshot := &models.ContextSnapshot{
		ActiveTasks:  map[string]map[string]any{},
		UserBehavior: map[string]int{"default:login": 1},
	}
	responses := orch.Gather(context.Background(), testEvent(models.EventKindUserActivity, "api"), snapshot, modules)
	if len(responses) != 1 {
		t.Fatalf("Expected the fallback to answer, got %d responses", len(responses))
	}

	resp := responses[0].Response
	if processed, _ := resp["processed"].(bool); !processed {
		t.Error("Fallback response should mark processed true")
	}
	if confidence, _ := resp["confidence"].(float64); confidence != 0.85 {
		t.Errorf("Expected fallback confidence 0.85, got %v", resp["confidence"])
	}
	used, ok := resp["context_used"].([]string)
	if !ok || len(used) != 3 {
		t.Errorf("Expected 3 context keys, got %v", resp["context_used"])
	}
}

func TestOrchestrator_NoModules(t *testing.T) {
	orch := NewOrchestrator(NewInvokerTable(nil), time.Second, 4)
	if responses := orch.Gather(context.Background(), testEvent(models.EventKindTaskCreated, "api"), nil, nil); responses != nil {
		t.Errorf("Expected nil for an empty module list, got %v", responses)
	}
}
