package models

import (
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
)

// EventStreamFrame is one message pushed to a /ws/events client.
type EventStreamFrame struct {
	Type      string    `json:"type"` // "welcome", "event"
	Event     *Event    `json:"event,omitempty"`
	Kinds     []string  `json:"kinds,omitempty"` // active kind filter (welcome frame)
	Timestamp time.Time `json:"timestamp"`
}

// StreamConnection represents a single WebSocket tap connection.
type StreamConnection struct {
	ConnID    string
	ClientIP  string
	Conn      *websocket.Conn
	Kinds     map[EventKind]struct{} // nil means all kinds
	CreatedAt time.Time
	WriteChan chan EventStreamFrame
	Mutex     sync.Mutex
	closed    bool
}

// Wants reports whether the connection's filter admits the given kind.
func (sc *StreamConnection) Wants(kind EventKind) bool {
	if sc.Kinds == nil {
		return true
	}
	_, ok := sc.Kinds[kind]
	return ok
}

// SafeSend pushes a frame to WriteChan without ever blocking bus delivery.
// A full buffer or a closed connection drops the frame and returns false.
func (sc *StreamConnection) SafeSend(frame EventStreamFrame) bool {
	sc.Mutex.Lock()
	if sc.closed {
		sc.Mutex.Unlock()
		return false
	}
	sc.Mutex.Unlock()

	defer func() {
		if r := recover(); r != nil {
			// Channel was closed under us, mark connection as closed
			sc.Mutex.Lock()
			sc.closed = true
			sc.Mutex.Unlock()
		}
	}()

	select {
	case sc.WriteChan <- frame:
		return true
	default:
		return false
	}
}

// MarkClosed marks the connection as closed.
func (sc *StreamConnection) MarkClosed() {
	sc.Mutex.Lock()
	sc.closed = true
	sc.Mutex.Unlock()
}

// IsClosed returns true if the connection has been marked as closed.
func (sc *StreamConnection) IsClosed() bool {
	sc.Mutex.Lock()
	defer sc.Mutex.Unlock()
	return sc.closed
}
