package services

import (
	"log"
	"sort"
	"sync"
	"time"

	"synapse/internal/models"
)

// StreamWriteBuffer is the per-client frame buffer. A client that falls this
// far behind starts losing frames.
const StreamWriteBuffer = 32

// EventStream fans every bus event out to the /ws/events clients. Sends
// never block bus delivery: each client owns a buffered write channel and a
// slow client loses frames, not the bus.
type EventStream struct {
	bus   *EventBus
	mu    sync.RWMutex
	conns map[string]*models.StreamConnection
	subs  []hubSubscription
}

// NewEventStream creates a stream tap over the bus. Call Start to begin
// forwarding.
func NewEventStream(bus *EventBus) *EventStream {
	return &EventStream{
		bus:   bus,
		conns: make(map[string]*models.StreamConnection),
	}
}

// Start taps every event type, the hub's own output included.
func (s *EventStream) Start() error {
	for _, kind := range models.AllEventKinds() {
		subID, err := s.bus.Subscribe(kind, s.tap)
		if err != nil {
			s.Stop()
			return err
		}
		s.subs = append(s.subs, hubSubscription{kind: kind, subID: subID})
	}
	return nil
}

// Stop removes the tap subscriptions. Connections stay up; they just go
// quiet.
func (s *EventStream) Stop() {
	for _, sub := range s.subs {
		s.bus.Unsubscribe(sub.kind, sub.subID)
	}
	s.subs = nil
}

// tap forwards one event to every connection whose filter admits it.
func (s *EventStream) tap(evt *models.Event) error {
	frame := models.EventStreamFrame{
		Type:      "event",
		Event:     evt.Clone(),
		Timestamp: time.Now().UTC(),
	}

	s.mu.RLock()
	conns := make([]*models.StreamConnection, 0, len(s.conns))
	for _, conn := range s.conns {
		conns = append(conns, conn)
	}
	s.mu.RUnlock()

	for _, conn := range conns {
		if !conn.Wants(evt.Kind) {
			continue
		}
		if !conn.SafeSend(frame) {
			if m := GetMetrics(); m != nil {
				m.RecordStreamFrameDrop()
			}
		}
	}
	return nil
}

// Add registers a connection and greets it with the filter in effect.
func (s *EventStream) Add(conn *models.StreamConnection) {
	s.mu.Lock()
	s.conns[conn.ConnID] = conn
	total := len(s.conns)
	s.mu.Unlock()

	if m := GetMetrics(); m != nil {
		m.RecordStreamConnect()
	}

	var kinds []string
	if conn.Kinds == nil {
		for _, kind := range models.AllEventKinds() {
			kinds = append(kinds, string(kind))
		}
	} else {
		for kind := range conn.Kinds {
			kinds = append(kinds, string(kind))
		}
	}
	sort.Strings(kinds)
	conn.SafeSend(models.EventStreamFrame{
		Type:      "welcome",
		Kinds:     kinds,
		Timestamp: time.Now().UTC(),
	})

	log.Printf("[STREAM] Connected: id=%s ip=%s (total=%d)", conn.ConnID, conn.ClientIP, total)
}

// Remove drops a connection and closes its write channel, which stops the
// connection's writer pump. Removing twice is harmless.
func (s *EventStream) Remove(connID string) {
	s.mu.Lock()
	conn, ok := s.conns[connID]
	if ok {
		delete(s.conns, connID)
	}
	total := len(s.conns)
	s.mu.Unlock()
	if !ok {
		return
	}

	conn.MarkClosed()
	close(conn.WriteChan)

	if m := GetMetrics(); m != nil {
		m.RecordStreamDisconnect()
	}
	log.Printf("[STREAM] Disconnected: id=%s (total=%d)", connID, total)
}

// Count returns the number of connected clients.
func (s *EventStream) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns)
}
