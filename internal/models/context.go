package models

import "time"

// ConversationEntry is one line of the rolling conversation log.
type ConversationEntry struct {
	Timestamp time.Time      `json:"timestamp"`
	EventKind EventKind      `json:"event_type"`
	Source    string         `json:"source,omitempty"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// ContextInsight is one cached insight with its expiry bookkeeping.
type ContextInsight struct {
	ID           string         `json:"insight_id"`
	SourceModule string         `json:"source_module,omitempty"`
	Content      map[string]any `json:"insight"`
	Confidence   float64        `json:"confidence,omitempty"`
	Timestamp    time.Time      `json:"timestamp"`
}

// ContextSnapshot is the read-only view handed to modules during fan-out.
// It is a copy of the store's state at snapshot time; later writes to the
// store never show through.
type ContextSnapshot struct {
	RecentConversations []ConversationEntry       `json:"recent_conversations"`
	ActiveTasks         map[string]map[string]any `json:"active_tasks"`
	RecentInsights      []ContextInsight          `json:"recent_insights"`
	UserBehavior        map[string]int            `json:"user_behavior,omitempty"`
}

// Keys lists the populated snapshot sections, mirroring the snapshot's
// JSON field order.
func (s *ContextSnapshot) Keys() []string {
	keys := []string{"recent_conversations", "active_tasks", "recent_insights"}
	if s.UserBehavior != nil {
		keys = append(keys, "user_behavior")
	}
	return keys
}

// ContextStats summarizes the shared context store.
type ContextStats struct {
	TotalConversations int       `json:"total_conversations"`
	ActiveTasks        int       `json:"active_tasks"`
	TotalTasks         int       `json:"total_tasks"`
	CachedInsights     int       `json:"cached_insights"`
	TrackedUsers       int       `json:"tracked_users"`
	LastUpdated        time.Time `json:"last_updated"`
}

// EventStats summarizes bus activity. Totals are cumulative and keep
// counting past history eviction; HistorySize is the current buffer length.
type EventStats struct {
	TotalEvents       int               `json:"total_events"`
	EventsByType      map[EventKind]int `json:"events_by_type"`
	ActiveSubscribers map[EventKind]int `json:"active_subscribers"`
	HistorySize       int               `json:"history_size"`
	HistoryCapacity   int               `json:"history_capacity"`
}

// ModuleStats summarizes the registry.
type ModuleStats struct {
	TotalModules  int                    `json:"total_modules"`
	ModulesByType map[ModuleCategory]int `json:"modules_by_type"`
	// ActiveCapabilities is the sorted union of every declared capability.
	ActiveCapabilities []string `json:"active_capabilities"`
}
