package models

import (
	"time"
)

// ModuleCategory classifies a registered module
type ModuleCategory string

const (
	ModuleCategoryChat       ModuleCategory = "chat"
	ModuleCategoryTasks      ModuleCategory = "tasks"
	ModuleCategoryInsights   ModuleCategory = "insights"
	ModuleCategoryAutomation ModuleCategory = "automation"
	ModuleCategoryThirdParty ModuleCategory = "third_party"
)

// IsValid reports whether c is a known module category.
func (c ModuleCategory) IsValid() bool {
	switch c {
	case ModuleCategoryChat, ModuleCategoryTasks, ModuleCategoryInsights,
		ModuleCategoryAutomation, ModuleCategoryThirdParty:
		return true
	}
	return false
}

// ModuleRegistration describes a module participating in the hub.
// Immutable after registration; re-registering the same ID replaces it wholesale.
type ModuleRegistration struct {
	ID          string         `json:"module_id"`
	Name        string         `json:"name"`
	Category    ModuleCategory `json:"module_type"`
	Version     string         `json:"version"`
	Description string         `json:"description,omitempty"`
	Endpoint    string         `json:"endpoint,omitempty"` // informational hint, never dialed

	// Declared capability set: unordered, deduplicated on registration
	Capabilities []string       `json:"capabilities"`
	Metadata     map[string]any `json:"metadata,omitempty"`

	RegisteredAt time.Time `json:"registered_at"`
}

// Clone returns a copy with its own capability slice and metadata map.
func (m *ModuleRegistration) Clone() *ModuleRegistration {
	clone := *m
	clone.Capabilities = append([]string(nil), m.Capabilities...)
	clone.Metadata = copyMap(m.Metadata)
	return &clone
}

// HasAnyCapability reports whether the module declares at least one
// capability from the given set.
func (m *ModuleRegistration) HasAnyCapability(set map[string]struct{}) bool {
	for _, cap := range m.Capabilities {
		if _, ok := set[cap]; ok {
			return true
		}
	}
	return false
}

// DedupeCapabilities returns caps with duplicates removed, first occurrence kept.
func DedupeCapabilities(caps []string) []string {
	seen := make(map[string]struct{}, len(caps))
	out := make([]string, 0, len(caps))
	for _, c := range caps {
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
