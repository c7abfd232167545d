// Package modules contains the built-in modules that ship with the hub: a
// chat assistant, a task engine and an insight generator. Each registers
// with the hub like an external module would, binds an in-process invoker
// and reacts to bus events, so a fresh install produces real traffic for
// the intelligence pipeline from the first request.
package modules

import (
	"synapse/internal/models"
	"synapse/internal/services"
)

// Module is an in-process hub participant.
type Module interface {
	// Start registers the module with the hub and subscribes its handlers.
	Start() error
	// Stop detaches the module's bus subscriptions. The registration stays.
	Stop()
	// ID returns the hub-assigned module id, empty before Start.
	ID() string
	// Stats reports module-local counters for the observability endpoints.
	Stats() map[string]any
}

type busSubscription struct {
	kind models.EventKind
	id   string
}

// track subscribes handler to kind and records the subscription so Stop can
// detach it later.
func track(bus *services.EventBus, subs *[]busSubscription, kind models.EventKind, handler services.EventHandler) error {
	id, err := bus.Subscribe(kind, handler)
	if err != nil {
		return err
	}
	*subs = append(*subs, busSubscription{kind: kind, id: id})
	return nil
}

func unsubscribeAll(bus *services.EventBus, subs []busSubscription) {
	for _, sub := range subs {
		bus.Unsubscribe(sub.kind, sub.id)
	}
}

// snapshotKeys lists up to three populated snapshot sections, the same way
// simulated invokers report which context they used.
func snapshotKeys(snapshot *models.ContextSnapshot) []string {
	if snapshot == nil {
		return []string{}
	}
	keys := snapshot.Keys()
	if len(keys) > 3 {
		keys = keys[:3]
	}
	return keys
}

func clonePayload(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
