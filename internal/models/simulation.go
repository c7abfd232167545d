package models

import "time"

// SimulationSchedule is one recurring synthetic event, registered through
// the simulation API and fired on a cron cadence.
type SimulationSchedule struct {
	ID        string         `json:"schedule_id"`
	Name      string         `json:"name"`
	Cron      string         `json:"cron"`
	Kind      EventKind      `json:"event_type"`
	Payload   map[string]any `json:"payload,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
