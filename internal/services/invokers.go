package services

import (
	"context"
	"sync"

	"synapse/internal/models"
)

// ModuleInvoker produces a module's response to an event. The snapshot is a
// private copy, so implementations may read it freely. Long-running invokers
// must honor ctx, which carries the per-invocation timeout.
type ModuleInvoker interface {
	Invoke(ctx context.Context, event *models.Event, snapshot *models.ContextSnapshot) (map[string]any, error)
}

// InvokerFunc adapts a plain function to the ModuleInvoker interface.
type InvokerFunc func(ctx context.Context, event *models.Event, snapshot *models.ContextSnapshot) (map[string]any, error)

// Invoke calls f.
func (f InvokerFunc) Invoke(ctx context.Context, event *models.Event, snapshot *models.ContextSnapshot) (map[string]any, error) {
	return f(ctx, event, snapshot)
}

// InvokerTable binds module ids to their in-process invokers. Modules
// registered over HTTP without an in-process implementation resolve to a
// simulated invoker shaped by their category, so routed registrations still
// answer and the pipeline stays observable end to end.
type InvokerTable struct {
	mu       sync.RWMutex
	invokers map[string]ModuleInvoker
	fallback ModuleInvoker
}

// NewInvokerTable creates a table. A non-nil fallback overrides the
// category-shaped simulation for unbound modules; pass nil for the default.
func NewInvokerTable(fallback ModuleInvoker) *InvokerTable {
	return &InvokerTable{
		invokers: make(map[string]ModuleInvoker),
		fallback: fallback,
	}
}

// Bind attaches an invoker to a module id, replacing any previous binding.
func (t *InvokerTable) Bind(moduleID string, invoker ModuleInvoker) {
	if moduleID == "" || invoker == nil {
		return
	}
	t.mu.Lock()
	t.invokers[moduleID] = invoker
	t.mu.Unlock()
}

// Unbind removes a binding. The module falls back to simulation until it is
// bound again.
func (t *InvokerTable) Unbind(moduleID string) {
	t.mu.Lock()
	delete(t.invokers, moduleID)
	t.mu.Unlock()
}

// Resolve returns the invoker for a registration: its bound invoker, the
// table fallback, or a simulated invoker matching its category.
func (t *InvokerTable) Resolve(reg *models.ModuleRegistration) ModuleInvoker {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if invoker, ok := t.invokers[reg.ID]; ok {
		return invoker
	}
	if t.fallback != nil {
		return t.fallback
	}
	return SimulatedInvoker{Category: reg.Category}
}

// SimulatedInvoker stands in for modules that have no in-process
// implementation. Its response shape follows the module category, on top of
// a base that reports which parts of the shared context were available.
type SimulatedInvoker struct {
	Category models.ModuleCategory
}

// Invoke returns the simulated response, or the context error when the
// invocation deadline has already passed.
func (s SimulatedInvoker) Invoke(ctx context.Context, _ *models.Event, snapshot *models.ContextSnapshot) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	contextUsed := []string{}
	if snapshot != nil {
		keys := snapshot.Keys()
		if len(keys) > 3 {
			keys = keys[:3]
		}
		contextUsed = keys
	}

	response := map[string]any{
		"processed":    true,
		"confidence":   0.85,
		"context_used": contextUsed,
	}

	switch s.Category {
	case models.ModuleCategoryChat:
		response["suggested_responses"] = []string{"I understand your request.", "Let me help with that."}
		response["sentiment"] = "positive"
		response["urgency"] = "medium"
	case models.ModuleCategoryTasks:
		response["estimated_completion_time"] = "2 hours"
		response["priority"] = "high"
		response["dependencies"] = []string{}
	case models.ModuleCategoryInsights:
		response["key_insights"] = []string{"Pattern detected in user behavior", "Opportunity for automation"}
		response["recommendations"] = []string{"Consider automating this workflow"}
		response["correlation_strength"] = 0.75
	}

	return response, nil
}
