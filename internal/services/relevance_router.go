package services

import (
	"fmt"
	"log"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"synapse/internal/models"
)

// DefaultRoutingTable returns the built-in event type to capability map.
// Event types absent from the table route to no modules at all.
func DefaultRoutingTable() map[models.EventKind][]string {
	return map[models.EventKind][]string{
		models.EventKindTaskCreated:      {"task_management", "automation", "analysis"},
		models.EventKindMessageReceived:  {"chat", "insights", "sentiment_analysis"},
		models.EventKindInsightGenerated: {"insights", "knowledge_base", "analytics"},
		models.EventKindUserActivity:     {"analytics", "insights", "automation"},
	}
}

// routingFile is the on-disk override shape:
//
//	routing:
//	  task_created: [task_management, automation]
type routingFile struct {
	Routing map[string][]string `yaml:"routing"`
}

// RelevanceRouter decides which registered modules should see an event. The
// table maps event types to capability sets; a module matches when any of
// its capabilities intersects the set. The table can be swapped at runtime,
// which is how the file watcher applies config changes without a restart.
type RelevanceRouter struct {
	mu       sync.RWMutex
	table    map[models.EventKind]map[string]struct{}
	registry *ModuleRegistry
}

// NewRelevanceRouter creates a router over the registry with the built-in
// default table.
func NewRelevanceRouter(registry *ModuleRegistry) *RelevanceRouter {
	r := &RelevanceRouter{registry: registry}
	r.install(DefaultRoutingTable())
	return r
}

// install compiles and swaps the table. Compiled capability sets are never
// mutated after installation, so readers may use them after releasing the
// lock.
func (r *RelevanceRouter) install(table map[models.EventKind][]string) {
	compiled := make(map[models.EventKind]map[string]struct{}, len(table))
	for kind, capabilities := range table {
		set := make(map[string]struct{}, len(capabilities))
		for _, capability := range capabilities {
			if capability == "" {
				continue
			}
			set[capability] = struct{}{}
		}
		compiled[kind] = set
	}

	r.mu.Lock()
	r.table = compiled
	r.mu.Unlock()
}

// ReplaceTable swaps the routing table atomically. Unknown event types are
// rejected and the previous table stays in effect.
func (r *RelevanceRouter) ReplaceTable(table map[models.EventKind][]string) error {
	for kind := range table {
		if !kind.IsValid() {
			return fmt.Errorf("routing table: %w: %q", ErrUnknownEventKind, kind)
		}
	}
	r.install(table)
	return nil
}

// LoadFile reads a YAML routing override and swaps it in. On any error the
// previous table keeps serving, so a broken edit never blanks the routing.
func (r *RelevanceRouter) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read routing config: %w", err)
	}

	var file routingFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse routing config: %w", err)
	}
	if len(file.Routing) == 0 {
		return fmt.Errorf("routing config %s has no routing section", path)
	}

	table := make(map[models.EventKind][]string, len(file.Routing))
	for key, capabilities := range file.Routing {
		table[models.EventKind(key)] = capabilities
	}
	if err := r.ReplaceTable(table); err != nil {
		return err
	}

	log.Printf("[ROUTER] Loaded routing table from %s (%d event types)", path, len(table))
	return nil
}

// Route returns the registered modules that should process the event, in
// registration order. The event's source module is excluded before
// capability matching, so an event never routes back to its producer.
func (r *RelevanceRouter) Route(event *models.Event) []*models.ModuleRegistration {
	if event == nil {
		return nil
	}

	r.mu.RLock()
	capabilities := r.table[event.Kind]
	r.mu.RUnlock()
	if len(capabilities) == 0 {
		return nil
	}

	var matched []*models.ModuleRegistration
	for _, reg := range r.registry.List() {
		if reg.ID == event.SourceModule {
			continue
		}
		if reg.HasAnyCapability(capabilities) {
			matched = append(matched, reg)
		}
	}
	return matched
}

// Table returns the current routing table with capability lists sorted, for
// inspection endpoints and tests.
func (r *RelevanceRouter) Table() map[models.EventKind][]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[models.EventKind][]string, len(r.table))
	for kind, set := range r.table {
		capabilities := make([]string, 0, len(set))
		for capability := range set {
			capabilities = append(capabilities, capability)
		}
		sort.Strings(capabilities)
		out[kind] = capabilities
	}
	return out
}
