package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"synapse/internal/models"
)

// hubSubscription remembers one bus subscription so Stop can remove it.
type hubSubscription struct {
	kind  models.EventKind
	subID string
}

// IntelligenceHub is the orchestration core. For every event it folds the
// payload into the shared context, routes to the relevant modules, gathers
// their responses, synthesizes them and publishes the result back on the bus
// as an intelligence_response event.
type IntelligenceHub struct {
	bus          *EventBus
	registry     *ModuleRegistry
	router       *RelevanceRouter
	orchestrator *Orchestrator
	store        *ContextStore
	invokers     *InvokerTable
	subs         []hubSubscription
}

// NewIntelligenceHub wires the hub over its collaborators. Call Start to
// begin processing.
func NewIntelligenceHub(bus *EventBus, registry *ModuleRegistry, router *RelevanceRouter, orchestrator *Orchestrator, store *ContextStore, invokers *InvokerTable) *IntelligenceHub {
	return &IntelligenceHub{
		bus:          bus,
		registry:     registry,
		router:       router,
		orchestrator: orchestrator,
		store:        store,
		invokers:     invokers,
	}
}

// Start subscribes the hub to every event type except intelligence_response.
// Processing its own output would feed the pipeline back into itself.
func (h *IntelligenceHub) Start() error {
	for _, kind := range models.AllEventKinds() {
		if kind == models.EventKindIntelligenceResponse {
			continue
		}
		subID, err := h.bus.Subscribe(kind, h.handleEvent)
		if err != nil {
			h.Stop()
			return fmt.Errorf("hub subscribe %s: %w", kind, err)
		}
		h.subs = append(h.subs, hubSubscription{kind: kind, subID: subID})
	}
	log.Printf("[HUB] Started: listening on %d event types", len(h.subs))
	return nil
}

// Stop removes the hub's subscriptions. Deliveries already in flight finish
// normally.
func (h *IntelligenceHub) Stop() {
	for _, sub := range h.subs {
		h.bus.Unsubscribe(sub.kind, sub.subID)
	}
	h.subs = nil
}

// handleEvent runs the full pipeline for one event. It always publishes an
// intelligence_response, even when no module engaged, so consumers can tell
// the event was seen.
func (h *IntelligenceHub) handleEvent(event *models.Event) error {
	start := time.Now()

	h.store.Update(event)
	snapshot := h.store.Snapshot(event)
	modules := h.router.Route(event)

	responses := h.orchestrator.Gather(context.Background(), event, snapshot, modules)
	coreInsights := SynthesizeInsights(responses, time.Since(start))

	response := &models.IntelligenceResponse{
		RequestID:       event.ID,
		OriginalEvent:   event.Clone(),
		ModuleResponses: responses,
		CoreInsights:    coreInsights,
		Timestamp:       time.Now().UTC(),
	}

	// The response event keeps the triggering event's source, so consumers
	// can correlate without unpacking the payload.
	responseEvent := models.NewEvent(models.EventKindIntelligenceResponse, event.SourceModule, response.EventPayload(), nil)
	if err := h.bus.Publish(responseEvent); err != nil {
		return fmt.Errorf("publish intelligence response: %w", err)
	}

	if m := GetMetrics(); m != nil {
		m.RecordPipelineRun(time.Since(start).Seconds())
	}
	log.Printf("[HUB] Processed: type=%s source=%s routed=%d responses=%d elapsed=%v",
		event.Kind, event.SourceModule, len(modules), len(responses), time.Since(start).Round(time.Microsecond))
	return nil
}

// RegisterModule stores the registration and announces it on the bus. A
// registration without an id gets a generated one; the returned copy carries
// whatever was assigned.
func (h *IntelligenceHub) RegisterModule(reg *models.ModuleRegistration) (*models.ModuleRegistration, error) {
	if reg == nil {
		return nil, fmt.Errorf("%w: registration is nil", ErrInvalidRegistration)
	}

	incoming := reg.Clone()
	if incoming.ID == "" {
		incoming.ID = uuid.New().String()
	}
	if err := h.registry.Register(incoming); err != nil {
		return nil, err
	}
	stored, err := h.registry.Get(incoming.ID)
	if err != nil {
		return nil, err
	}

	announcement := models.NewEvent(models.EventKindModuleRegistered, stored.ID, map[string]any{
		"module_name":  stored.Name,
		"module_type":  string(stored.Category),
		"capabilities": stored.Capabilities,
	}, nil)
	if err := h.bus.Publish(announcement); err != nil {
		log.Printf("[HUB] Module announcement failed: id=%s err=%v", stored.ID, err)
	}
	return stored, nil
}

// UnregisterModule removes the module and its invoker binding.
func (h *IntelligenceHub) UnregisterModule(id string) error {
	if err := h.registry.Unregister(id); err != nil {
		return err
	}
	h.invokers.Unbind(id)
	return nil
}

// BindInvoker attaches an in-process invoker for a registered module.
func (h *IntelligenceHub) BindInvoker(moduleID string, invoker ModuleInvoker) {
	h.invokers.Bind(moduleID, invoker)
}
