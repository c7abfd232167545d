package handlers

import (
	"log"
	"strings"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"synapse/internal/models"
	"synapse/internal/services"
)

// streamPingInterval is how often the tap pings idle clients.
const streamPingInterval = 30 * time.Second

// EventStreamHandler runs the /ws/events tap: a read-only mirror of bus
// traffic, optionally filtered by event type.
type EventStreamHandler struct {
	stream *services.EventStream
}

// NewEventStreamHandler creates a new event stream handler
func NewEventStreamHandler(stream *services.EventStream) *EventStreamHandler {
	return &EventStreamHandler{stream: stream}
}

// Upgrade gates the route to WebSocket requests.
func (h *EventStreamHandler) Upgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// Handle runs one tap connection until the client goes away.
func (h *EventStreamHandler) Handle(c *websocket.Conn) {
	conn := &models.StreamConnection{
		ConnID:    uuid.New().String(),
		ClientIP:  c.RemoteAddr().String(),
		Conn:      c,
		Kinds:     parseKindFilter(c.Query("kinds")),
		CreatedAt: time.Now(),
		WriteChan: make(chan models.EventStreamFrame, services.StreamWriteBuffer),
	}

	done := make(chan struct{})

	// Write pump: sole writer on the socket. Exits when Remove closes
	// WriteChan or a write fails.
	go func() {
		defer close(done)
		ticker := time.NewTicker(streamPingInterval)
		defer ticker.Stop()
		for {
			select {
			case frame, ok := <-conn.WriteChan:
				if !ok {
					return
				}
				if err := c.WriteJSON(frame); err != nil {
					log.Printf("[STREAM] Write error: id=%s err=%v", conn.ConnID, err)
					return
				}
			case <-ticker.C:
				if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	h.stream.Add(conn)

	// The tap never consumes client payloads; the read loop only notices
	// closure.
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			break
		}
	}

	h.stream.Remove(conn.ConnID)
	<-done
}

// parseKindFilter turns ?kinds=a,b into a filter set. Unknown names are
// dropped; an empty result means no filter.
func parseKindFilter(raw string) map[models.EventKind]struct{} {
	if raw == "" {
		return nil
	}
	kinds := make(map[models.EventKind]struct{})
	for _, part := range strings.Split(raw, ",") {
		kind := models.EventKind(strings.TrimSpace(part))
		if kind.IsValid() {
			kinds[kind] = struct{}{}
		}
	}
	if len(kinds) == 0 {
		return nil
	}
	return kinds
}
