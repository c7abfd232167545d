package jobs

import (
	"context"
	"log"
	"time"

	"synapse/internal/services"
)

// InsightSweepJob evicts expired insights from the context store. Writes
// purge opportunistically, so this only matters on a quiet bus, but a hub
// that idles overnight should not wake up advertising stale insights.
type InsightSweepJob struct {
	store    *services.ContextStore
	interval time.Duration
	lastRun  time.Time
}

// NewInsightSweepJob creates a sweep job. Non-positive intervals fall back
// to five minutes.
func NewInsightSweepJob(store *services.ContextStore, interval time.Duration) *InsightSweepJob {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &InsightSweepJob{store: store, interval: interval}
}

// Run purges expired insight cache entries.
func (j *InsightSweepJob) Run(ctx context.Context) error {
	j.lastRun = time.Now()

	purged := j.store.PurgeExpiredInsights()
	if purged > 0 {
		log.Printf("🧹 [INSIGHT-SWEEP] Evicted %d expired insights", purged)
	}
	return nil
}

// GetNextRunTime returns when this job should next execute.
func (j *InsightSweepJob) GetNextRunTime() time.Time {
	if j.lastRun.IsZero() {
		// First run shortly after startup; nothing can have expired yet.
		return time.Now().Add(1 * time.Minute)
	}
	return j.lastRun.Add(j.interval)
}
