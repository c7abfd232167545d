package services

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"

	"synapse/internal/models"
)

const (
	// SimulationSource marks events injected by the simulator so modules
	// can tell them apart from organic traffic.
	SimulationSource = "simulation-scheduler"

	// DefaultBurstRate paces burst publishing when the caller does not
	// pick a rate.
	DefaultBurstRate = 10.0

	// MaxBurstRate caps how fast a burst may publish.
	MaxBurstRate = 100.0

	// MaxBurstCount bounds a single burst request.
	MaxBurstCount = 1000
)

// SimulationScheduler drives synthetic traffic through the event bus. It
// runs ad-hoc bursts and cron-recurring schedules so the pipeline can be
// exercised without any real module activity.
type SimulationScheduler struct {
	bus       *EventBus
	scheduler gocron.Scheduler

	mu        sync.RWMutex
	schedules map[string]*models.SimulationSchedule
	jobs      map[string]gocron.Job
}

// NewSimulationScheduler creates the scheduler stopped. Call Start to
// begin firing registered schedules.
func NewSimulationScheduler(bus *EventBus) (*SimulationScheduler, error) {
	scheduler, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	return &SimulationScheduler{
		bus:       bus,
		scheduler: scheduler,
		schedules: make(map[string]*models.SimulationSchedule),
		jobs:      make(map[string]gocron.Job),
	}, nil
}

// Start begins executing registered schedules.
func (s *SimulationScheduler) Start() {
	s.scheduler.Start()
	log.Printf("✅ Simulation scheduler started (%d schedules)", s.Count())
}

// Stop shuts the scheduler down and waits for running jobs to finish.
func (s *SimulationScheduler) Stop() error {
	if err := s.scheduler.Shutdown(); err != nil {
		return fmt.Errorf("failed to stop scheduler: %w", err)
	}
	log.Printf("⏹️ Simulation scheduler stopped")
	return nil
}

// AddSchedule validates the cron expression and registers a recurring
// synthetic event. The schedule fires until removed.
func (s *SimulationScheduler) AddSchedule(name, cronExpr string, kind models.EventKind, payload map[string]any) (*models.SimulationSchedule, error) {
	if name == "" {
		name = "simulation"
	}
	if !kind.IsValid() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEventKind, kind)
	}

	// Validate before registering so a bad expression never reaches gocron.
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(cronExpr); err != nil {
		return nil, fmt.Errorf("invalid cron expression: %w", err)
	}

	schedule := &models.SimulationSchedule{
		ID:        uuid.New().String(),
		Name:      name,
		Cron:      cronExpr,
		Kind:      kind,
		Payload:   copyAnyMap(payload),
		CreatedAt: time.Now().UTC(),
	}

	job, err := s.scheduler.NewJob(
		gocron.CronJob(cronExpr, false),
		gocron.NewTask(func() { s.fire(schedule) }),
		gocron.WithName(schedule.Name),
		gocron.WithTags("simulation"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register schedule: %w", err)
	}

	s.mu.Lock()
	s.schedules[schedule.ID] = schedule
	s.jobs[schedule.ID] = job
	s.mu.Unlock()

	log.Printf("📅 Registered simulation schedule %s: %s (cron: %s, type: %s)",
		schedule.ID, schedule.Name, schedule.Cron, schedule.Kind)
	return schedule, nil
}

// RemoveSchedule stops and deletes a schedule by id.
func (s *SimulationScheduler) RemoveSchedule(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrScheduleNotFound, id)
	}
	if err := s.scheduler.RemoveJob(job.ID()); err != nil {
		log.Printf("⚠️ Failed to remove schedule job %s: %v", id, err)
	}
	delete(s.jobs, id)
	delete(s.schedules, id)

	log.Printf("🗑️ Removed simulation schedule %s", id)
	return nil
}

// ListSchedules returns registered schedules, oldest first.
func (s *SimulationScheduler) ListSchedules() []*models.SimulationSchedule {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.SimulationSchedule, 0, len(s.schedules))
	for _, schedule := range s.schedules {
		clone := *schedule
		clone.Payload = copyAnyMap(schedule.Payload)
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Count returns the number of registered schedules.
func (s *SimulationScheduler) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.schedules)
}

// Burst publishes count events of the given kind, paced at eventsPerSecond.
// It returns how many events were published before the context ended.
func (s *SimulationScheduler) Burst(ctx context.Context, kind models.EventKind, count int, eventsPerSecond float64, payload map[string]any) (int, error) {
	if !kind.IsValid() {
		return 0, fmt.Errorf("%w: %s", ErrUnknownEventKind, kind)
	}
	if count <= 0 {
		count = 1
	}
	if count > MaxBurstCount {
		count = MaxBurstCount
	}
	if eventsPerSecond <= 0 {
		eventsPerSecond = DefaultBurstRate
	}
	if eventsPerSecond > MaxBurstRate {
		eventsPerSecond = MaxBurstRate
	}

	limiter := rate.NewLimiter(rate.Limit(eventsPerSecond), 1)
	published := 0
	for i := 0; i < count; i++ {
		if err := limiter.Wait(ctx); err != nil {
			return published, err
		}
		eventPayload := copyAnyMap(payload)
		if eventPayload == nil {
			eventPayload = map[string]any{}
		}
		eventPayload["sequence"] = i
		if err := s.bus.Publish(models.NewEvent(kind, SimulationSource, eventPayload, nil)); err != nil {
			return published, err
		}
		published++
	}

	log.Printf("✅ Simulation burst complete: type=%s published=%d rate=%.1f/s", kind, published, eventsPerSecond)
	return published, nil
}

func (s *SimulationScheduler) fire(schedule *models.SimulationSchedule) {
	event := models.NewEvent(schedule.Kind, SimulationSource, copyAnyMap(schedule.Payload), map[string]any{
		"schedule_id":   schedule.ID,
		"schedule_name": schedule.Name,
	})
	if err := s.bus.Publish(event); err != nil {
		log.Printf("⚠️ Simulation schedule %s publish failed: %v", schedule.ID, err)
	}
}
