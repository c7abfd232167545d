package services

import (
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"synapse/internal/models"
)

// ModuleRegistry tracks every module known to the hub. It is a pure store;
// publishing the module_registered event is the caller's job so the registry
// stays usable without a bus.
type ModuleRegistry struct {
	mu      sync.RWMutex
	modules map[string]*models.ModuleRegistration
}

// NewModuleRegistry creates an empty registry.
func NewModuleRegistry() *ModuleRegistry {
	return &ModuleRegistry{
		modules: make(map[string]*models.ModuleRegistration),
	}
}

// Register validates and stores a registration. Registering an id that
// already exists replaces the previous entry, so modules can re-register
// after a restart without unregistering first.
func (r *ModuleRegistry) Register(reg *models.ModuleRegistration) error {
	if reg == nil {
		return fmt.Errorf("%w: registration is nil", ErrInvalidRegistration)
	}
	if reg.ID == "" {
		return fmt.Errorf("%w: module_id is required", ErrInvalidRegistration)
	}
	if reg.Name == "" {
		return fmt.Errorf("%w: module_name is required", ErrInvalidRegistration)
	}
	if !reg.Category.IsValid() {
		return fmt.Errorf("%w: unknown module_type %q", ErrInvalidRegistration, reg.Category)
	}

	stored := reg.Clone()
	stored.Capabilities = models.DedupeCapabilities(stored.Capabilities)
	if stored.RegisteredAt.IsZero() {
		stored.RegisteredAt = time.Now().UTC()
	}

	r.mu.Lock()
	_, replaced := r.modules[stored.ID]
	r.modules[stored.ID] = stored
	r.mu.Unlock()

	if replaced {
		log.Printf("[REGISTRY] Updated: id=%s name=%q type=%s", stored.ID, stored.Name, stored.Category)
	} else {
		log.Printf("[REGISTRY] Registered: id=%s name=%q type=%s capabilities=%v",
			stored.ID, stored.Name, stored.Category, stored.Capabilities)
	}
	return nil
}

// Get returns a copy of one registration.
func (r *ModuleRegistry) Get(id string) (*models.ModuleRegistration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reg, ok := r.modules[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModule, id)
	}
	return reg.Clone(), nil
}

// Unregister removes a module.
func (r *ModuleRegistry) Unregister(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.modules[id]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownModule, id)
	}
	delete(r.modules, id)
	log.Printf("[REGISTRY] Unregistered: id=%s", id)
	return nil
}

// List returns copies of all registrations ordered by registration time,
// oldest first. Ties fall back to id so the order is stable.
func (r *ModuleRegistry) List() []*models.ModuleRegistration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.ModuleRegistration, 0, len(r.modules))
	for _, reg := range r.modules {
		out = append(out, reg.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].RegisteredAt.Equal(out[j].RegisteredAt) {
			return out[i].RegisteredAt.Before(out[j].RegisteredAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Count returns the number of registered modules.
func (r *ModuleRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.modules)
}

// Stats aggregates the registry by category and capability.
func (r *ModuleRegistry) Stats() models.ModuleStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byType := make(map[models.ModuleCategory]int)
	capSet := make(map[string]struct{})
	for _, reg := range r.modules {
		byType[reg.Category]++
		for _, capability := range reg.Capabilities {
			capSet[capability] = struct{}{}
		}
	}

	capabilities := make([]string, 0, len(capSet))
	for capability := range capSet {
		capabilities = append(capabilities, capability)
	}
	sort.Strings(capabilities)

	return models.ModuleStats{
		TotalModules:       len(r.modules),
		ModulesByType:      byType,
		ActiveCapabilities: capabilities,
	}
}
