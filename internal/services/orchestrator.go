package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"synapse/internal/models"
)

// DefaultModuleTimeout bounds a single module invocation.
const DefaultModuleTimeout = 5 * time.Second

// DefaultMaxParallelInvocations bounds how many invocations run at once.
const DefaultMaxParallelInvocations = 16

// invocationPanic marks a recovered invoker panic so it can be counted
// apart from ordinary errors.
type invocationPanic struct {
	value any
}

func (p invocationPanic) Error() string {
	return fmt.Sprintf("invoker panicked: %v", p.value)
}

// Orchestrator fans an event out to its routed modules in parallel and
// gathers the successful responses. A failing, slow or panicking module
// loses its own response only; the gather always returns what succeeded.
type Orchestrator struct {
	invokers  *InvokerTable
	timeout   time.Duration
	semaphore chan struct{}
}

// NewOrchestrator creates an orchestrator with the given per-invocation
// timeout and parallelism cap. Non-positive values fall back to the
// defaults.
func NewOrchestrator(invokers *InvokerTable, timeout time.Duration, maxParallel int) *Orchestrator {
	if timeout <= 0 {
		timeout = DefaultModuleTimeout
	}
	if maxParallel <= 0 {
		maxParallel = DefaultMaxParallelInvocations
	}
	return &Orchestrator{
		invokers:  invokers,
		timeout:   timeout,
		semaphore: make(chan struct{}, maxParallel),
	}
}

// Gather invokes every module concurrently and returns the successful
// responses in the same order the modules were given. There are no retries;
// a module that fails this event simply sits the round out.
func (o *Orchestrator) Gather(ctx context.Context, event *models.Event, snapshot *models.ContextSnapshot, modules []*models.ModuleRegistration) []models.ModuleResponse {
	if len(modules) == 0 {
		return nil
	}

	results := make([]*models.ModuleResponse, len(modules))
	var wg sync.WaitGroup
	for i, module := range modules {
		wg.Add(1)
		go func(idx int, reg *models.ModuleRegistration) {
			defer wg.Done()

			o.semaphore <- struct{}{}
			defer func() { <-o.semaphore }()

			results[idx] = o.invokeOne(ctx, event, snapshot, reg)
		}(i, module)
	}
	wg.Wait()

	responses := make([]models.ModuleResponse, 0, len(modules))
	for _, res := range results {
		if res != nil {
			responses = append(responses, *res)
		}
	}
	return responses
}

// invokeOne runs a single module under the invocation timeout and converts
// the outcome into a response or nil.
func (o *Orchestrator) invokeOne(ctx context.Context, event *models.Event, snapshot *models.ContextSnapshot, reg *models.ModuleRegistration) *models.ModuleResponse {
	invokeCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	start := time.Now()
	response, err := o.safeInvoke(invokeCtx, event, snapshot, reg)
	elapsed := time.Since(start)

	if m := GetMetrics(); m != nil {
		m.RecordInvocationLatency(reg.ID, elapsed.Seconds())
	}

	if err != nil {
		outcome := "error"
		var panicked invocationPanic
		switch {
		case errors.As(err, &panicked):
			outcome = "panic"
		case errors.Is(err, context.DeadlineExceeded):
			outcome = "timeout"
		}
		log.Printf("[ORCHESTRATOR] Invocation failed: module=%s event=%s outcome=%s err=%v",
			reg.ID, event.Kind, outcome, err)
		if m := GetMetrics(); m != nil {
			m.RecordModuleInvocation(reg.ID, outcome)
		}
		return nil
	}

	if response == nil {
		response = map[string]any{}
	}
	if m := GetMetrics(); m != nil {
		m.RecordModuleInvocation(reg.ID, "success")
	}
	return &models.ModuleResponse{
		ModuleID:   reg.ID,
		ModuleName: reg.Name,
		Response:   response,
		Timestamp:  time.Now().UTC(),
	}
}

// safeInvoke runs the invoker in its own goroutine so a module that ignores
// ctx still cannot stall the gather past the deadline. Panics come back as
// invocationPanic errors.
func (o *Orchestrator) safeInvoke(ctx context.Context, event *models.Event, snapshot *models.ContextSnapshot, reg *models.ModuleRegistration) (map[string]any, error) {
	type result struct {
		response map[string]any
		err      error
	}
	done := make(chan result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: invocationPanic{value: r}}
			}
		}()
		resp, err := o.invokers.Resolve(reg).Invoke(ctx, event, snapshot)
		done <- result{response: resp, err: err}
	}()

	select {
	case res := <-done:
		return res.response, res.err
	case <-ctx.Done():
		// The invoker goroutine is abandoned; done is buffered so it still
		// exits whenever the invoker eventually returns.
		return nil, ctx.Err()
	}
}
