package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dataspace/catalogue-coordinator/pkg/log"
)

// Status is the lifecycle state of a submitted task.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
	StatusNotFound  Status = "not_found"
)

// Func is a unit of work. The context is cancelled on pool shutdown.
type Func func(ctx context.Context) (interface{}, error)

type task struct {
	id string
	fn Func

	mu      sync.Mutex
	status  Status
	started bool
	result  interface{}
	err     error
	done    chan struct{}
}

// Pool is a bounded worker pool: at most W tasks run concurrently, queued
// submissions exert back-pressure on callers.
type Pool struct {
	workers int

	mu      sync.Mutex
	tasks   map[string]*task
	queue   chan *task
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewPool creates a pool with the given width. Widths above 100 are
// accepted with a warning at configuration time.
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = 10
	}
	return &Pool{
		workers: workers,
		tasks:   make(map[string]*task),
		queue:   make(chan *task, workers*4),
	}
}

// Start launches the workers. Submit starts the pool on first use.
func (p *Pool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}
	p.running = true
	p.ctx, p.cancel = context.WithCancel(context.Background())
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.run()
	}
	log.WithComponent("worker").Info().Int("workers", p.workers).Msg("worker pool started")
}

// Stop shuts the pool down. With wait, in-flight and queued tasks drain
// first; without, they are abandoned and not retried.
func (p *Pool) Stop(wait bool) {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.queue)
	p.mu.Unlock()

	if wait {
		p.wg.Wait()
	} else {
		p.cancel()
	}
	log.WithComponent("worker").Info().Bool("drained", wait).Msg("worker pool stopped")
}

func (p *Pool) run() {
	defer p.wg.Done()
	for t := range p.queue {
		p.execute(t)
	}
}

func (p *Pool) execute(t *task) {
	t.mu.Lock()
	if t.status == StatusCancelled {
		t.mu.Unlock()
		return
	}
	t.started = true
	t.mu.Unlock()

	result, err := p.guarded(t)

	t.mu.Lock()
	if err != nil {
		t.status = StatusFailed
		t.err = err
	} else {
		t.status = StatusCompleted
		t.result = result
	}
	t.mu.Unlock()
	close(t.done)
}

// guarded runs the task function, converting a panic into a failed task so
// one bad unit of work never kills a worker.
func (p *Pool) guarded(t *task) (result interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
			log.WithTaskID(t.id).Error().Err(err).Msg("recovered task panic")
		}
	}()
	return t.fn(p.ctx)
}

// Submit enqueues a unit of work and returns its task id. Blocks when the
// queue is full.
func (p *Pool) Submit(fn Func) string {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		p.Start()
		p.mu.Lock()
	}
	t := &task{
		id:     uuid.New().String(),
		fn:     fn,
		status: StatusPending,
		done:   make(chan struct{}),
	}
	p.tasks[t.id] = t
	p.mu.Unlock()

	p.queue <- t
	log.WithTaskID(t.id).Debug().Msg("task submitted")
	return t.id
}

// SubmitBatch enqueues several tasks; returned ids preserve input order.
func (p *Pool) SubmitBatch(fns []Func) []string {
	ids := make([]string, len(fns))
	for i, fn := range fns {
		ids[i] = p.Submit(fn)
	}
	log.WithComponent("worker").Info().Int("count", len(fns)).Msg("batch submitted")
	return ids
}

// Status reports the task's current state.
func (p *Pool) Status(id string) Status {
	p.mu.Lock()
	t, ok := p.tasks[id]
	p.mu.Unlock()
	if !ok {
		return StatusNotFound
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Result blocks until the task finishes or the timeout elapses. A timeout
// surfaces an error without cancelling the underlying task.
func (p *Pool) Result(id string, timeout time.Duration) (interface{}, error) {
	p.mu.Lock()
	t, ok := p.tasks[id]
	p.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("task %s not found", id)
	}

	var timeoutCh <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	select {
	case <-t.done:
	case <-timeoutCh:
		return nil, fmt.Errorf("timed out waiting for task %s", id)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status == StatusFailed {
		return nil, t.err
	}
	return t.result, nil
}

// Cancel marks a task cancelled; it succeeds only while the task has not
// started.
func (p *Pool) Cancel(id string) bool {
	p.mu.Lock()
	t, ok := p.tasks[id]
	p.mu.Unlock()
	if !ok {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status != StatusPending || t.started {
		return false
	}
	t.status = StatusCancelled
	close(t.done)
	log.WithTaskID(id).Info().Msg("task cancelled")
	return true
}

// WaitAll waits for every currently-known pending task, returning each
// task's value or an {error} record.
func (p *Pool) WaitAll(timeout time.Duration) map[string]interface{} {
	p.mu.Lock()
	var pending []string
	for id, t := range p.tasks {
		t.mu.Lock()
		if t.status == StatusPending {
			pending = append(pending, id)
		}
		t.mu.Unlock()
	}
	p.mu.Unlock()

	results := make(map[string]interface{}, len(pending))
	for _, id := range pending {
		value, err := p.Result(id, timeout)
		if err != nil {
			results[id] = map[string]string{"error": err.Error()}
		} else {
			results[id] = value
		}
	}
	return results
}
