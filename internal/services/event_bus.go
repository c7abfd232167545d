package services

import (
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"synapse/internal/models"
)

// DefaultHistorySize is the number of events the bus retains when no
// explicit capacity is configured.
const DefaultHistorySize = 1000

// EventHandler processes one event delivered by the bus. Returning a non-nil
// error marks the delivery failed for this subscriber only; the bus logs it
// and moves on. Handlers must not mutate the event they receive.
type EventHandler func(event *models.Event) error

// subscription pairs a handler with the id handed back to the caller.
// Function values are not comparable in Go, so the id is the only reliable
// way to target a single handler for removal.
type subscription struct {
	id      string
	handler EventHandler
}

// EventBus is the synchronous pub/sub backbone of the hub. Publish delivers
// an event to every subscriber of its type in registration order, then
// appends it to a bounded FIFO history. A failing or panicking subscriber
// never prevents delivery to the rest.
//
// No lock is held while handlers run, so handlers may publish follow-up
// events from inside a delivery.
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[models.EventKind][]subscription
	history     []*models.Event
	historyCap  int
	totalEvents int
	byKind      map[models.EventKind]int
}

// NewEventBus creates a bus retaining up to historySize events. Sizes of
// zero or below fall back to DefaultHistorySize.
func NewEventBus(historySize int) *EventBus {
	if historySize <= 0 {
		historySize = DefaultHistorySize
	}
	return &EventBus{
		subscribers: make(map[models.EventKind][]subscription),
		history:     make([]*models.Event, 0, historySize),
		historyCap:  historySize,
		byKind:      make(map[models.EventKind]int),
	}
}

// Subscribe registers a handler for one event type and returns the
// subscription id used to remove it later.
func (b *EventBus) Subscribe(kind models.EventKind, handler EventHandler) (string, error) {
	if handler == nil {
		return "", fmt.Errorf("subscribe %s: handler is nil", kind)
	}
	if !kind.IsValid() {
		return "", fmt.Errorf("subscribe: %w: %q", ErrUnknownEventKind, kind)
	}

	subID := uuid.New().String()
	b.mu.Lock()
	b.subscribers[kind] = append(b.subscribers[kind], subscription{id: subID, handler: handler})
	count := len(b.subscribers[kind])
	b.mu.Unlock()

	log.Printf("[EVENT-BUS] Subscribe: type=%s sub=%s (total=%d)", kind, subID, count)
	return subID, nil
}

// Unsubscribe removes one subscription. It reports whether the id was found.
func (b *EventBus) Unsubscribe(kind models.EventKind, subID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subscribers[kind]
	for i, sub := range subs {
		if sub.id != subID {
			continue
		}
		next := make([]subscription, 0, len(subs)-1)
		next = append(next, subs[:i]...)
		next = append(next, subs[i+1:]...)
		if len(next) == 0 {
			delete(b.subscribers, kind)
		} else {
			b.subscribers[kind] = next
		}
		log.Printf("[EVENT-BUS] Unsubscribe: type=%s sub=%s (remaining=%d)", kind, subID, len(next))
		return true
	}
	return false
}

// Publish delivers the event to every subscriber of its type, in the order
// they subscribed, then records it in the history and counters. The event
// enters the history after delivery, so follow-up events published by
// handlers land in the history ahead of the event that triggered them.
func (b *EventBus) Publish(event *models.Event) error {
	if event == nil {
		return fmt.Errorf("publish: event is nil")
	}
	if !event.Kind.IsValid() {
		return fmt.Errorf("publish: %w: %q", ErrUnknownEventKind, event.Kind)
	}

	// Copy the handler list so no lock is held during delivery. Handlers may
	// subscribe, unsubscribe, or publish without deadlocking the bus.
	b.mu.RLock()
	subs := make([]subscription, len(b.subscribers[event.Kind]))
	copy(subs, b.subscribers[event.Kind])
	b.mu.RUnlock()

	log.Printf("[EVENT-BUS] Publish: type=%s source=%s id=%s (subscribers=%d)",
		event.Kind, event.SourceModule, event.ID, len(subs))

	for _, sub := range subs {
		b.deliver(sub, event)
	}

	b.mu.Lock()
	b.history = append(b.history, event)
	if len(b.history) > b.historyCap {
		b.history = b.history[len(b.history)-b.historyCap:]
	}
	b.totalEvents++
	b.byKind[event.Kind]++
	b.mu.Unlock()

	if m := GetMetrics(); m != nil {
		m.RecordEventPublished(string(event.Kind))
	}
	return nil
}

// deliver runs one handler, converting an error return or a panic into a
// logged failure so the remaining subscribers still see the event.
func (b *EventBus) deliver(sub subscription, event *models.Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[EVENT-BUS] Subscriber panic: type=%s sub=%s panic=%v", event.Kind, sub.id, r)
			if m := GetMetrics(); m != nil {
				m.RecordSubscriberFailure(string(event.Kind))
			}
		}
	}()

	if err := sub.handler(event); err != nil {
		log.Printf("[EVENT-BUS] Subscriber error: type=%s sub=%s err=%v", event.Kind, sub.id, err)
		if m := GetMetrics(); m != nil {
			m.RecordSubscriberFailure(string(event.Kind))
		}
	}
}

// Recent returns up to limit of the most recent events, oldest first. A
// limit of zero or below returns the full retained history. The returned
// events are deep copies, safe for the caller to hold or modify.
func (b *EventBus) Recent(limit int) []*models.Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if limit <= 0 || limit > len(b.history) {
		limit = len(b.history)
	}
	out := make([]*models.Event, 0, limit)
	for _, evt := range b.history[len(b.history)-limit:] {
		out = append(out, evt.Clone())
	}
	return out
}

// Stats reports cumulative publish counters alongside the current
// subscriber and history state. Counters survive history eviction.
func (b *EventBus) Stats() models.EventStats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	byKind := make(map[models.EventKind]int, len(b.byKind))
	for kind, n := range b.byKind {
		byKind[kind] = n
	}
	subs := make(map[models.EventKind]int, len(b.subscribers))
	for kind, list := range b.subscribers {
		subs[kind] = len(list)
	}
	return models.EventStats{
		TotalEvents:       b.totalEvents,
		EventsByType:      byKind,
		ActiveSubscribers: subs,
		HistorySize:       len(b.history),
		HistoryCapacity:   b.historyCap,
	}
}

// HistorySize returns the number of events currently retained.
func (b *EventBus) HistorySize() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.history)
}

// SubscriberCount returns the number of handlers registered for one type.
func (b *EventBus) SubscriberCount(kind models.EventKind) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[kind])
}
