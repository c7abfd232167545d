package modules

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"synapse/internal/models"
	"synapse/internal/services"
)

const chatModuleName = "Smart Chat Assistant"

// assistantAck is the canned reply the assistant sends for every external
// message.
const assistantAck = "I understand your message. Let me help you with that."

// ChatAssistant is the built-in chat module. It accepts messages through
// SendMessage, replies to messages other modules publish, and answers hub
// invocations with a chat-shaped analysis.
type ChatAssistant struct {
	bus *services.EventBus
	hub *services.IntelligenceHub

	moduleID string
	subs     []busSubscription

	mu            sync.RWMutex
	conversations map[string][]map[string]any
	responsesSeen int
}

func NewChatAssistant(bus *services.EventBus, hub *services.IntelligenceHub) *ChatAssistant {
	return &ChatAssistant{
		bus:           bus,
		hub:           hub,
		conversations: make(map[string][]map[string]any),
	}
}

// Start registers with the hub, binds the invoker and subscribes handlers.
func (c *ChatAssistant) Start() error {
	stored, err := c.hub.RegisterModule(&models.ModuleRegistration{
		Name:        chatModuleName,
		Category:    models.ModuleCategoryChat,
		Version:     "1.0.0",
		Description: "AI-powered chat with context awareness and event-driven architecture",
		Endpoint:    "chat-module/internal/events",
		Capabilities: []string{
			"chat", "sentiment_analysis", "context_awareness", "response_suggestion",
		},
	})
	if err != nil {
		return err
	}
	c.moduleID = stored.ID
	c.hub.BindInvoker(c.moduleID, c)

	if err := track(c.bus, &c.subs, models.EventKindMessageReceived, c.handleMessage); err != nil {
		return err
	}
	if err := track(c.bus, &c.subs, models.EventKindIntelligenceResponse, c.handleIntelligenceResponse); err != nil {
		return err
	}

	log.Printf("💬 Chat module started: id=%s", c.moduleID)
	return nil
}

// Stop detaches the module from the bus.
func (c *ChatAssistant) Stop() {
	unsubscribeAll(c.bus, c.subs)
	c.subs = nil
	log.Printf("💬 Chat module stopped: id=%s", c.moduleID)
}

// ID returns the hub-assigned module id.
func (c *ChatAssistant) ID() string { return c.moduleID }

// SendMessage records a message and publishes it as a message_received
// event. Content is required; a missing conversation id starts a new
// conversation.
func (c *ChatAssistant) SendMessage(data map[string]any) (map[string]any, error) {
	content, _ := data["content"].(string)
	if content == "" {
		return nil, errors.New("message content is required")
	}
	conversationID, _ := data["conversation_id"].(string)
	if conversationID == "" {
		conversationID = uuid.New().String()
	}
	sender, _ := data["sender"].(string)
	if sender == "" {
		sender = "user"
	}
	metadata, _ := data["metadata"].(map[string]any)
	if metadata == nil {
		metadata = map[string]any{}
	}

	message := map[string]any{
		"message_id":      uuid.New().String(),
		"conversation_id": conversationID,
		"content":         content,
		"sender":          sender,
		"timestamp":       time.Now().UTC().Format(time.RFC3339Nano),
		"metadata":        metadata,
	}

	c.mu.Lock()
	c.conversations[conversationID] = append(c.conversations[conversationID], message)
	conversationContext := c.conversationContextLocked(conversationID)
	c.mu.Unlock()

	eventContext := map[string]any{"conversation_context": conversationContext}
	if userID, _ := data["user_id"].(string); userID != "" {
		eventContext["user_id"] = userID
	}

	event := models.NewEvent(models.EventKindMessageReceived, c.moduleID, clonePayload(message), eventContext)
	if err := c.bus.Publish(event); err != nil {
		return nil, err
	}

	return map[string]any{
		"message_id":      message["message_id"],
		"conversation_id": conversationID,
		"status":          "sent",
		"event_id":        event.ID,
	}, nil
}

// handleMessage replies to messages published by anyone else.
func (c *ChatAssistant) handleMessage(event *models.Event) error {
	if event.SourceModule == c.moduleID {
		return nil
	}
	reply := models.NewEvent(models.EventKindMessageSent, c.moduleID, map[string]any{
		"response_to":     event.PayloadString("message_id"),
		"content":         assistantAck,
		"sender":          "assistant",
		"conversation_id": event.PayloadString("conversation_id"),
	}, nil)
	return c.bus.Publish(reply)
}

func (c *ChatAssistant) handleIntelligenceResponse(event *models.Event) error {
	insights, _ := event.Payload["core_insights"].(map[string]any)
	if insights == nil {
		return nil
	}

	c.mu.Lock()
	c.responsesSeen++
	c.mu.Unlock()

	if synthesized, ok := insights["synthesized_insights"].([]string); ok && len(synthesized) > 0 {
		log.Printf("💬 Chat module received %d synthesized insights", len(synthesized))
	}
	return nil
}

// conversationContextLocked summarizes the tail of one conversation: how
// many of the last five messages exist, who sent them and when the latest
// arrived.
func (c *ChatAssistant) conversationContextLocked(conversationID string) map[string]any {
	messages := c.conversations[conversationID]
	if len(messages) == 0 {
		return map[string]any{}
	}
	if len(messages) > 5 {
		messages = messages[len(messages)-5:]
	}

	senders := make([]string, 0, len(messages))
	seen := make(map[string]struct{}, len(messages))
	for _, msg := range messages {
		sender, _ := msg["sender"].(string)
		if _, dup := seen[sender]; dup {
			continue
		}
		seen[sender] = struct{}{}
		senders = append(senders, sender)
	}

	return map[string]any{
		"message_count":  len(messages),
		"recent_senders": senders,
		"last_activity":  messages[len(messages)-1]["timestamp"],
	}
}

// Invoke answers hub invocations with the chat view of the event.
func (c *ChatAssistant) Invoke(_ context.Context, _ *models.Event, snapshot *models.ContextSnapshot) (map[string]any, error) {
	c.mu.RLock()
	active := len(c.conversations)
	c.mu.RUnlock()

	return map[string]any{
		"processed":            true,
		"confidence":           0.85,
		"context_used":         snapshotKeys(snapshot),
		"suggested_responses":  []string{"I understand your request.", "Let me help with that."},
		"sentiment":            "positive",
		"urgency":              "medium",
		"active_conversations": active,
	}, nil
}

// Stats reports conversation counters.
func (c *ChatAssistant) Stats() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()

	totalMessages := 0
	for _, conv := range c.conversations {
		totalMessages += len(conv)
	}
	return map[string]any{
		"total_conversations": len(c.conversations),
		"total_messages":      totalMessages,
		"module_id":           c.moduleID,
		"module_name":         chatModuleName,
	}
}
