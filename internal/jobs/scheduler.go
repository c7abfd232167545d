package jobs

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// Job is a unit of recurring background work. GetNextRunTime tells the
// runner when the next execution is due; after each run the job is asked
// again, so jobs reschedule themselves by moving that time forward.
type Job interface {
	Run(ctx context.Context) error
	GetNextRunTime() time.Time
}

// Runner fires registered jobs at their requested times, one timer per
// job. Each job runs on its own goroutine so a slow sweep never delays
// the stats snapshot.
type Runner struct {
	jobs    map[string]Job
	timers  map[string]*time.Timer
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewRunner creates an empty job runner.
func NewRunner() *Runner {
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		jobs:   make(map[string]Job),
		timers: make(map[string]*time.Timer),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Register adds a job under a name. Registering before Start is the normal
// path; jobs added later are picked up immediately.
func (r *Runner) Register(name string, job Job) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.jobs[name] = job
	log.Printf("✅ [JOBS] Registered job: %s", name)
	if r.running {
		r.scheduleLocked(name, job)
	}
}

// Start arms a timer for every registered job.
func (r *Runner) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return nil
	}
	r.running = true
	log.Printf("🚀 [JOBS] Starting job runner with %d jobs", len(r.jobs))

	for name, job := range r.jobs {
		r.scheduleLocked(name, job)
	}
	return nil
}

func (r *Runner) scheduleLocked(name string, job Job) {
	nextRun := job.GetNextRunTime()
	wait := time.Until(nextRun)

	log.Printf("⏰ [JOBS] Job '%s' scheduled for %s (in %v)",
		name, nextRun.Format(time.RFC3339), wait.Round(time.Second))

	r.timers[name] = time.AfterFunc(wait, func() {
		r.runJob(name, job)
	})
}

// runJob executes one job and arms the next timer while the runner is
// still live.
func (r *Runner) runJob(name string, job Job) {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.wg.Add(1)
	r.mu.Unlock()
	defer r.wg.Done()

	start := time.Now()
	if err := job.Run(r.ctx); err != nil {
		log.Printf("❌ [JOBS] Job '%s' failed: %v", name, err)
	} else {
		log.Printf("✅ [JOBS] Job '%s' completed in %v", name, time.Since(start).Round(time.Millisecond))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		r.scheduleLocked(name, job)
	}
}

// Stop cancels every timer, then waits for in-flight runs to drain.
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	log.Println("🛑 [JOBS] Stopping job runner...")
	r.running = false

	for name, timer := range r.timers {
		timer.Stop()
		log.Printf("⏹️  [JOBS] Stopped job: %s", name)
	}
	r.timers = make(map[string]*time.Timer)
	r.mu.Unlock()

	r.cancel()
	r.wg.Wait()
	log.Println("✅ [JOBS] Job runner stopped")
}

// RunNow executes one job immediately, outside its schedule.
func (r *Runner) RunNow(name string) error {
	r.mu.Lock()
	job, ok := r.jobs[name]
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("unknown job: %s", name)
	}
	log.Printf("🚀 [JOBS] Running job '%s' immediately", name)
	return job.Run(r.ctx)
}
