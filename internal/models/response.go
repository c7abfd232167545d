package models

import "time"

// ModuleResponse is one module's result for one event invocation.
type ModuleResponse struct {
	ModuleID   string         `json:"module_id"`
	ModuleName string         `json:"module_name"`
	Response   map[string]any `json:"response"`
	Timestamp  time.Time      `json:"timestamp"`
}

// IntelligenceResponse is the hub's aggregate answer to a single event.
// OriginalEvent is a full copy, not a reference, so the trace stays intact
// after the triggering event is evicted from bus history.
type IntelligenceResponse struct {
	RequestID       string           `json:"request_id"` // equals the triggering event's ID
	OriginalEvent   *Event           `json:"original_event"`
	ModuleResponses []ModuleResponse `json:"module_responses"`
	CoreInsights    map[string]any   `json:"core_insights"`
	Timestamp       time.Time        `json:"timestamp"`
}

// EventPayload renders the response as an event payload for republication.
func (r *IntelligenceResponse) EventPayload() map[string]any {
	return map[string]any{
		"request_id":        r.RequestID,
		"original_event_id": r.OriginalEvent.ID,
		"original_event":    r.OriginalEvent,
		"module_responses":  r.ModuleResponses,
		"core_insights":     r.CoreInsights,
		"timestamp":         r.Timestamp,
	}
}
