package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Progress is the key/value metadata channel a running job reports through.
// A UI progress display consumes these keys.
type Progress interface {
	Set(key string, value any)
}

// Handler executes one job run. The payload is the JSON the job was
// triggered with.
type Handler func(ctx context.Context, payload json.RawMessage, progress Progress) (any, error)

// RunResult is the outcome of a synchronous job run.
type RunResult struct {
	Ok     bool
	Output any
	Err    string
}

// Runner submits work to the job execution service.
type Runner interface {
	// Trigger submits a job run fire-and-forget.
	Trigger(ctx context.Context, jobId string, payload any) error
	// TriggerAndWait submits a job run and waits for its result.
	TriggerAndWait(ctx context.Context, jobId string, payload any) (*RunResult, error)
}

// InProcessRunner executes registered job handlers in-process. It stands in
// for an external task-execution service: each run is a single logical
// thread of execution, panics are contained, and progress metadata is
// surfaced through structured logs.
type InProcessRunner struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	wg       sync.WaitGroup
}

func NewInProcessRunner() *InProcessRunner {
	return &InProcessRunner{
		handlers: make(map[string]Handler),
	}
}

func (r *InProcessRunner) Register(jobId string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[jobId] = handler
}

func (r *InProcessRunner) Trigger(ctx context.Context, jobId string, payload any) error {
	handler, raw, err := r.prepare(jobId, payload)
	if err != nil {
		return err
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		// Detach from the caller's context: a fire-and-forget run must not
		// die with the HTTP request that triggered it.
		result := r.run(context.Background(), jobId, handler, raw)
		if !result.Ok {
			log.Errorf("job %s failed: %s", jobId, result.Err)
		}
	}()
	return nil
}

func (r *InProcessRunner) TriggerAndWait(ctx context.Context, jobId string, payload any) (*RunResult, error) {
	handler, raw, err := r.prepare(jobId, payload)
	if err != nil {
		return nil, err
	}
	result := r.run(ctx, jobId, handler, raw)
	return &result, nil
}

// Wait blocks until all fire-and-forget runs have finished. Used on shutdown.
func (r *InProcessRunner) Wait() {
	r.wg.Wait()
}

func (r *InProcessRunner) prepare(jobId string, payload any) (Handler, json.RawMessage, error) {
	r.mu.RLock()
	handler, ok := r.handlers[jobId]
	r.mu.RUnlock()
	if !ok {
		return nil, nil, fmt.Errorf("no handler registered for job %s", jobId)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal job payload: %w", err)
	}
	return handler, raw, nil
}

func (r *InProcessRunner) run(ctx context.Context, jobId string, handler Handler, payload json.RawMessage) (result RunResult) {
	defer func() {
		if rec := recover(); rec != nil {
			result = RunResult{Ok: false, Err: fmt.Sprintf("job %s panicked: %v", jobId, rec)}
			log.Error(result.Err)
		}
	}()

	log.Debugf("running job %s", jobId)
	output, err := handler(ctx, payload, &logProgress{jobId: jobId})
	if err != nil {
		return RunResult{Ok: false, Output: output, Err: err.Error()}
	}
	return RunResult{Ok: true, Output: output}
}

// logProgress reports job metadata through structured logs.
type logProgress struct {
	jobId string
}

func (p *logProgress) Set(key string, value any) {
	log.WithFields(log.Fields{"job": p.jobId, key: value}).Debug("job progress")
}

// MemoryProgress records progress metadata for assertions in tests.
type MemoryProgress struct {
	mu     sync.Mutex
	values map[string]any
}

func NewMemoryProgress() *MemoryProgress {
	return &MemoryProgress{values: make(map[string]any)}
}

func (p *MemoryProgress) Set(key string, value any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values[key] = value
}

func (p *MemoryProgress) Get(key string) any {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.values[key]
}

// NopProgress discards all metadata.
type NopProgress struct{}

func (NopProgress) Set(string, any) {}
