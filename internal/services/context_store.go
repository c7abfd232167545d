package services

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"synapse/internal/models"
)

// DefaultInsightTTL is how long cached insights stay relevant.
const DefaultInsightTTL = time.Hour

// conversationLogCap bounds the shared conversation log.
const conversationLogCap = 100

// ContextStore aggregates the state modules share indirectly: per-task
// status, a bounded conversation log, per-user behavior counters and a
// time-windowed insight cache. The hub is the only writer; everyone else
// reads through Snapshot or Stats, which hand out copies.
type ContextStore struct {
	mu            sync.RWMutex
	tasks         map[string]map[string]any
	conversations []models.ConversationEntry
	behavior      map[string]map[string]int
	insights      *gocache.Cache
	lastUpdated   time.Time
}

// NewContextStore creates a store whose insight cache expires entries after
// insightTTL. Non-positive values fall back to DefaultInsightTTL.
func NewContextStore(insightTTL time.Duration) *ContextStore {
	if insightTTL <= 0 {
		insightTTL = DefaultInsightTTL
	}
	return &ContextStore{
		tasks:    make(map[string]map[string]any),
		behavior: make(map[string]map[string]int),
		// No janitor goroutine; expired insights are purged on every write.
		insights: gocache.New(insightTTL, 0),
	}
}

// Update folds one event into the store. The event type picks the mutator:
// task_* events merge into the task map, message_* events append to the
// conversation log, user_activity bumps behavior counters and
// insight_generated feeds the insight cache. Other types only move the
// last-updated stamp.
func (s *ContextStore) Update(event *models.Event) {
	if event == nil {
		return
	}

	s.mu.Lock()
	s.lastUpdated = time.Now().UTC()
	kind := string(event.Kind)
	switch {
	case strings.HasPrefix(kind, "task_"):
		s.updateTaskLocked(event)
	case strings.HasPrefix(kind, "message_"):
		s.appendConversationLocked(event)
	case event.Kind == models.EventKindUserActivity:
		s.bumpBehaviorLocked(event)
	}
	s.mu.Unlock()

	// The insight cache synchronizes itself.
	if event.Kind == models.EventKindInsightGenerated {
		s.cacheInsight(event)
	}
}

// updateTaskLocked merges the payload into the task entry. Keys absent from
// this event survive from earlier ones, but the status resets to "unknown"
// whenever the payload does not carry one.
func (s *ContextStore) updateTaskLocked(event *models.Event) {
	taskID := event.PayloadString("task_id")
	if taskID == "" {
		taskID = "unknown"
	}

	entry, ok := s.tasks[taskID]
	if !ok {
		entry = make(map[string]any, len(event.Payload)+2)
		s.tasks[taskID] = entry
	}
	entry["last_activity"] = time.Now().UTC()
	entry["status"] = "unknown"
	for k, v := range event.Payload {
		entry[k] = v
	}
}

// appendConversationLocked records both received and sent messages, evicting
// the oldest entry past the cap.
func (s *ContextStore) appendConversationLocked(event *models.Event) {
	entry := models.ConversationEntry{
		Timestamp: time.Now().UTC(),
		EventKind: event.Kind,
		Source:    event.SourceModule,
		Content:   event.PayloadString("content"),
		Metadata:  map[string]any{},
	}
	if meta, ok := event.Payload["metadata"].(map[string]any); ok {
		entry.Metadata = copyAnyMap(meta)
	}

	s.conversations = append(s.conversations, entry)
	if len(s.conversations) > conversationLogCap {
		s.conversations = s.conversations[len(s.conversations)-conversationLogCap:]
	}
}

func (s *ContextStore) bumpBehaviorLocked(event *models.Event) {
	userID := event.PayloadString("user_id")
	if userID == "" {
		userID = "default"
	}
	activity := event.PayloadString("activity_type")
	if activity == "" {
		activity = "unknown"
	}

	if s.behavior[userID] == nil {
		s.behavior[userID] = make(map[string]int)
	}
	s.behavior[userID][activity]++
}

// cacheInsight stores the full insight payload keyed by source module and a
// nanosecond stamp, then drops everything past the window. Purging on write
// keeps the cache honest without a janitor goroutine.
func (s *ContextStore) cacheInsight(event *models.Event) {
	now := time.Now().UTC()
	insight := models.ContextInsight{
		ID:           event.PayloadString("insight_id"),
		SourceModule: event.SourceModule,
		Content:      copyAnyMap(event.Payload),
		Timestamp:    now,
	}
	if insight.ID == "" {
		insight.ID = event.ID
	}
	if confidence, ok := toFloat(event.Payload["confidence"]); ok {
		insight.Confidence = confidence
	}

	key := fmt.Sprintf("%s_%d", event.SourceModule, now.UnixNano())
	s.insights.SetDefault(key, insight)
	s.insights.DeleteExpired()
}

// Snapshot builds the relevant-context view handed to modules: the last 5
// conversation entries, tasks still pending or in progress, the last 3
// cached insights oldest first, and the behavior counters for the user the
// event names, when tracked. Every part is a copy; mutating the snapshot
// never touches the store.
func (s *ContextStore) Snapshot(event *models.Event) *models.ContextSnapshot {
	s.mu.RLock()

	recent := make([]models.ConversationEntry, 0, 5)
	start := len(s.conversations) - 5
	if start < 0 {
		start = 0
	}
	for _, entry := range s.conversations[start:] {
		copied := entry
		copied.Metadata = copyAnyMap(entry.Metadata)
		recent = append(recent, copied)
	}

	active := make(map[string]map[string]any)
	for taskID, task := range s.tasks {
		if status, _ := task["status"].(string); status == "pending" || status == "in_progress" {
			active[taskID] = copyAnyMap(task)
		}
	}

	var userBehavior map[string]int
	if event != nil {
		if userID := event.PayloadString("user_id"); userID != "" {
			if counts, ok := s.behavior[userID]; ok {
				userBehavior = make(map[string]int, len(counts))
				for activity, n := range counts {
					userBehavior[activity] = n
				}
			}
		}
	}

	s.mu.RUnlock()

	return &models.ContextSnapshot{
		RecentConversations: recent,
		ActiveTasks:         active,
		RecentInsights:      s.recentInsights(3),
		UserBehavior:        userBehavior,
	}
}

// recentInsights returns the n newest unexpired insights, oldest first.
func (s *ContextStore) recentInsights(n int) []models.ContextInsight {
	items := s.insights.Items()
	all := make([]models.ContextInsight, 0, len(items))
	for _, item := range items {
		if insight, ok := item.Object.(models.ContextInsight); ok {
			insight.Content = copyAnyMap(insight.Content)
			all = append(all, insight)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].Timestamp.Before(all[j].Timestamp)
	})
	if len(all) > n {
		all = all[len(all)-n:]
	}
	return all
}

// PurgeExpiredInsights evicts expired insight entries and reports how many
// went away. Writes purge opportunistically too; this exists for the sweep
// job so a quiet bus still sheds stale insights.
func (s *ContextStore) PurgeExpiredInsights() int {
	before := s.insights.ItemCount()
	s.insights.DeleteExpired()
	return before - s.insights.ItemCount()
}

// Stats reports aggregate counts for the observability endpoints.
func (s *ContextStore) Stats() models.ContextStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	activeTasks := 0
	for _, task := range s.tasks {
		if status, _ := task["status"].(string); status == "pending" || status == "in_progress" {
			activeTasks++
		}
	}

	return models.ContextStats{
		TotalConversations: len(s.conversations),
		ActiveTasks:        activeTasks,
		TotalTasks:         len(s.tasks),
		CachedInsights:     len(s.insights.Items()),
		TrackedUsers:       len(s.behavior),
		LastUpdated:        s.lastUpdated,
	}
}

// copyAnyMap shallow-copies a payload-shaped map. Nested mutable values are
// shared, which matches how payloads travel through the bus.
func copyAnyMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
