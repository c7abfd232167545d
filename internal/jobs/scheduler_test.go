package jobs

import (
	"context"
	"sync"
	"testing"
	"time"

	"synapse/internal/models"
	"synapse/internal/services"
)

type stubJob struct {
	mu    sync.Mutex
	runs  int
	delay time.Duration
	ran   chan struct{}
}

func newStubJob(delay time.Duration) *stubJob {
	return &stubJob{delay: delay, ran: make(chan struct{}, 1)}
}

func (j *stubJob) Run(ctx context.Context) error {
	j.mu.Lock()
	j.runs++
	j.mu.Unlock()
	select {
	case j.ran <- struct{}{}:
	default:
	}
	return nil
}

func (j *stubJob) GetNextRunTime() time.Time {
	return time.Now().Add(j.delay)
}

func (j *stubJob) runCount() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.runs
}

func TestRunnerFiresAndStops(t *testing.T) {
	runner := NewRunner()
	job := newStubJob(15 * time.Millisecond)
	runner.Register("stub", job)

	if err := runner.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	select {
	case <-job.ran:
	case <-time.After(2 * time.Second):
		t.Fatal("job never fired")
	}

	runner.Stop()
	after := job.runCount()
	if after < 1 {
		t.Fatalf("expected at least one run, got %d", after)
	}

	time.Sleep(60 * time.Millisecond)
	if job.runCount() != after {
		t.Errorf("job ran after Stop: %d -> %d", after, job.runCount())
	}
}

func TestRunnerRunNow(t *testing.T) {
	runner := NewRunner()
	t.Cleanup(runner.Stop)

	job := newStubJob(time.Hour)
	runner.Register("parked", job)
	if err := runner.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := runner.RunNow("parked"); err != nil {
		t.Fatalf("run now: %v", err)
	}
	if job.runCount() != 1 {
		t.Errorf("expected 1 run, got %d", job.runCount())
	}

	if err := runner.RunNow("missing"); err == nil {
		t.Error("expected error for unknown job")
	}
}

func TestInsightSweepJobEvictsExpired(t *testing.T) {
	store := services.NewContextStore(20 * time.Millisecond)
	store.Update(models.NewEvent(models.EventKindInsightGenerated, "insight-module", map[string]any{
		"type":       "task_pattern",
		"confidence": 0.9,
	}, nil))

	time.Sleep(50 * time.Millisecond)

	job := NewInsightSweepJob(store, time.Minute)
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if purged := store.PurgeExpiredInsights(); purged != 0 {
		t.Errorf("sweep left %d expired insights behind", purged)
	}
}

func TestStatsSnapshotJobRuns(t *testing.T) {
	bus := services.NewEventBus(16)
	registry := services.NewModuleRegistry()
	store := services.NewContextStore(time.Minute)

	if err := bus.Publish(models.NewEvent(models.EventKindUserActivity, "", map[string]any{
		"user_id": "u-1",
	}, nil)); err != nil {
		t.Fatalf("publish: %v", err)
	}

	job := NewStatsSnapshotJob(bus, registry, store, time.Minute)
	firstDue := job.GetNextRunTime()
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !job.GetNextRunTime().After(firstDue) {
		t.Error("next run should move forward after a run")
	}
}
