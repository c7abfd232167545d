package jobs

import (
	"context"
	"log"
	"time"

	"synapse/internal/services"
)

// StatsSnapshotJob logs a one-line digest of bus, registry and context
// activity. It keeps long-running deployments observable from plain logs
// when nobody is scraping /metrics.
type StatsSnapshotJob struct {
	bus      *services.EventBus
	registry *services.ModuleRegistry
	store    *services.ContextStore
	interval time.Duration
	lastRun  time.Time
}

// NewStatsSnapshotJob creates a snapshot job. Non-positive intervals fall
// back to one minute.
func NewStatsSnapshotJob(bus *services.EventBus, registry *services.ModuleRegistry, store *services.ContextStore, interval time.Duration) *StatsSnapshotJob {
	if interval <= 0 {
		interval = time.Minute
	}
	return &StatsSnapshotJob{bus: bus, registry: registry, store: store, interval: interval}
}

// Run emits the digest line.
func (j *StatsSnapshotJob) Run(ctx context.Context) error {
	j.lastRun = time.Now()

	events := j.bus.Stats()
	modules := j.registry.Stats()
	contexts := j.store.Stats()

	log.Printf("📊 [STATS] events=%d history=%d/%d modules=%d conversations=%d active_tasks=%d insights=%d users=%d",
		events.TotalEvents, events.HistorySize, events.HistoryCapacity,
		modules.TotalModules, contexts.TotalConversations, contexts.ActiveTasks,
		contexts.CachedInsights, contexts.TrackedUsers)
	return nil
}

// GetNextRunTime returns when this job should next execute.
func (j *StatsSnapshotJob) GetNextRunTime() time.Time {
	if j.lastRun.IsZero() {
		return time.Now().Add(30 * time.Second)
	}
	return j.lastRun.Add(j.interval)
}
