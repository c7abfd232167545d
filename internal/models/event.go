package models

import (
	"time"

	"github.com/google/uuid"
)

// EventKind identifies the type of an intelligence event
type EventKind string

const (
	EventKindTaskCreated          EventKind = "task_created"
	EventKindTaskUpdated          EventKind = "task_updated"
	EventKindTaskCompleted        EventKind = "task_completed"
	EventKindMessageReceived      EventKind = "message_received"
	EventKindMessageSent          EventKind = "message_sent"
	EventKindInsightGenerated     EventKind = "insight_generated"
	EventKindUserActivity         EventKind = "user_activity"
	EventKindModuleRegistered     EventKind = "module_registered"
	EventKindIntelligenceResponse EventKind = "intelligence_response"
)

// AllEventKinds returns every known event kind in declaration order.
func AllEventKinds() []EventKind {
	return []EventKind{
		EventKindTaskCreated,
		EventKindTaskUpdated,
		EventKindTaskCompleted,
		EventKindMessageReceived,
		EventKindMessageSent,
		EventKindInsightGenerated,
		EventKindUserActivity,
		EventKindModuleRegistered,
		EventKindIntelligenceResponse,
	}
}

// IsValid reports whether k is a known event kind.
func (k EventKind) IsValid() bool {
	for _, kind := range AllEventKinds() {
		if k == kind {
			return true
		}
	}
	return false
}

// Event is an immutable record flowing through the bus. Once published it is
// never mutated; consumers and history hold it read-only.
type Event struct {
	ID           string         `json:"event_id"`
	Kind         EventKind      `json:"event_type"`
	SourceModule string         `json:"source_module,omitempty"` // empty for externally injected events
	Timestamp    time.Time      `json:"timestamp"`
	Payload      map[string]any `json:"payload"`
	Context      map[string]any `json:"context,omitempty"`
}

// NewEvent creates an event with a fresh ID and timestamp.
func NewEvent(kind EventKind, sourceModule string, payload, context map[string]any) *Event {
	if payload == nil {
		payload = map[string]any{}
	}
	return &Event{
		ID:           uuid.New().String(),
		Kind:         kind,
		SourceModule: sourceModule,
		Timestamp:    time.Now(),
		Payload:      payload,
		Context:      context,
	}
}

// Clone returns a copy of the event with its own payload and context maps,
// so a retained copy survives history eviction without sharing state.
func (e *Event) Clone() *Event {
	clone := *e
	clone.Payload = copyMap(e.Payload)
	clone.Context = copyMap(e.Context)
	return &clone
}

// PayloadString returns the payload value for key if it is a string.
func (e *Event) PayloadString(key string) string {
	if v, ok := e.Payload[key].(string); ok {
		return v
	}
	return ""
}

func copyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
