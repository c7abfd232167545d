package services

import (
	"context"
	"errors"
	"testing"

	"synapse/internal/models"
)

func TestSimulatedInvoker_CategoryShapes(t *testing.T) {
	event := testEvent(models.EventKindMessageReceived, "api")

	chat, err := SimulatedInvoker{Category: models.ModuleCategoryChat}.Invoke(context.Background(), event, nil)
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if chat["sentiment"] != "positive" || chat["urgency"] != "medium" {
		t.Errorf("Chat shape missing extras: %v", chat)
	}
	if suggestions, ok := chat["suggested_responses"].([]string); !ok || len(suggestions) != 2 {
		t.Errorf("Expected 2 suggested responses, got %v", chat["suggested_responses"])
	}

	tasks, _ := SimulatedInvoker{Category: models.ModuleCategoryTasks}.Invoke(context.Background(), event, nil)
	if tasks["estimated_completion_time"] != "2 hours" || tasks["priority"] != "high" {
		t.Errorf("Tasks shape missing extras: %v", tasks)
	}

	insights, _ := SimulatedInvoker{Category: models.ModuleCategoryInsights}.Invoke(context.Background(), event, nil)
	keyInsights, ok := insights["key_insights"].([]string)
	if !ok || len(keyInsights) != 2 {
		t.Fatalf("Expected 2 key insights, got %v", insights["key_insights"])
	}
	if keyInsights[0] != "Pattern detected in user behavior" {
		t.Errorf("Unexpected first insight: %s", keyInsights[0])
	}
	if insights["correlation_strength"] != 0.75 {
		t.Errorf("Expected correlation_strength 0.75, got %v", insights["correlation_strength"])
	}

	// Categories without a richer shape answer with the base only.
	base, _ := SimulatedInvoker{Category: models.ModuleCategoryThirdParty}.Invoke(context.Background(), event, nil)
	if _, ok := base["key_insights"]; ok {
		t.Error("Third-party simulation should not carry insight extras")
	}
	if base["processed"] != true || base["confidence"] != 0.85 {
		t.Errorf("Base shape wrong: %v", base)
	}
	if used, ok := base["context_used"].([]string); !ok || len(used) != 0 {
		t.Errorf("A nil snapshot should produce no context keys, got %v", base["context_used"])
	}
}

func TestSimulatedInvoker_HonorsDeadContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	inv := SimulatedInvoker{Category: models.ModuleCategoryChat}
	if _, err := inv.Invoke(ctx, testEvent(models.EventKindMessageReceived, "api"), nil); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestInvokerTable_Resolution(t *testing.T) {
	table := NewInvokerTable(nil)
	reg := testRegistration("chat-1", "Chat", models.ModuleCategoryChat, "chat")

	bound := staticInvoker(map[string]any{"custom": true})
	table.Bind("chat-1", bound)

	resp, _ := table.Resolve(reg).Invoke(context.Background(), nil, nil)
	if resp["custom"] != true {
		t.Error("A bound invoker should win over simulation")
	}

	table.Unbind("chat-1")
	resp, _ = table.Resolve(reg).Invoke(context.Background(), nil, nil)
	if _, ok := resp["custom"]; ok {
		t.Error("Unbinding should fall back to simulation")
	}
	if resp["sentiment"] != "positive" {
		t.Errorf("Expected the chat simulation after unbind, got %v", resp)
	}
}

func TestInvokerTable_CustomFallback(t *testing.T) {
	table := NewInvokerTable(staticInvoker(map[string]any{"fallback": true}))
	reg := testRegistration("ext-1", "External", models.ModuleCategoryThirdParty, "analytics")

	resp, _ := table.Resolve(reg).Invoke(context.Background(), nil, nil)
	if resp["fallback"] != true {
		t.Error("A table-level fallback should override the simulation")
	}
}
