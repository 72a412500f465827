// Package worker runs crawl tasks from the queue on a fixed set of goroutines.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/msci/internal/adapters/mq/queue"
	"github.com/okian/msci/pkg/logger"
	"github.com/okian/msci/pkg/metrics"
)

const (
	defaultWorkerMultiplier = 20 // multiplier for runtime.NumCPU()
	poolShutdownTimeout     = 30 * time.Second
)

// ErrTaskPanicked is reported to a Failer when a handler panics.
var ErrTaskPanicked = errors.New("task panicked")

// Task abstracts what workers read off the queue.
type Task = queue.Task

// Handler executes a task.
type Handler interface {
	Handle(ctx context.Context, t Task) error
}

// Failer is implemented by handlers that must learn about tasks whose
// Handle call panicked.
type Failer interface {
	Fail(ctx context.Context, t Task, err error)
}

// Queue defines how workers receive tasks.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Task
}

// InMemoryWorker pulls tasks from a queue and runs them one at a time.
type InMemoryWorker struct {
	queue   Queue
	handler Handler
	name    string

	shutdown chan struct{}
	done     chan struct{}
	once     sync.Once

	processed *atomic.Int64
	logger    logger.Logger
}

// NewInMemoryWorker creates a worker with configuration options.
func NewInMemoryWorker(q Queue, h Handler, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     q,
		handler:   h,
		name:      "worker",
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
		processed: new(atomic.Int64),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get().Named(w.name)
	}
	return w
}

// Run processes tasks until ctx is cancelled, Shutdown is called, or the
// queue is closed and drained.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	tasks := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case t, ok := <-tasks:
			if !ok {
				return
			}
			if err := w.process(ctx, t); err != nil {
				w.logger.Debug(ctx, "task failed",
					logger.String("job", t.JobID),
					logger.String("kind", string(t.Kind)),
					logger.Error(err),
				)
			}
		}
	}
}

// Shutdown stops the worker after its current task.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.once.Do(func() { close(w.shutdown) })
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) process(ctx context.Context, t Task) (err error) { //nolint:gocritic // hugeParam: Task is passed by value for channel semantics
	start := time.Now()
	metrics.WorkerBusy(1)
	defer func() {
		metrics.WorkerBusy(-1)
		if r := recover(); r != nil {
			metrics.RecordWorkerPanic()
			metrics.RecordErrorByComponent("worker", "panic")
			w.logger.Error(ctx, "task panicked",
				logger.String("job", t.JobID),
				logger.Any("panic", r),
			)
			err = fmt.Errorf("%w: %v", ErrTaskPanicked, r)
			if f, ok := w.handler.(Failer); ok {
				f.Fail(ctx, t, err)
			}
		}
		outcome := "success"
		if err != nil {
			outcome = "failure"
		}
		metrics.RecordTask(string(t.Kind), outcome, time.Since(start))
		w.processed.Add(1)
	}()
	return w.handler.Handle(ctx, t)
}

// Pool manages multiple workers.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue

	cancel    context.CancelFunc
	started   bool
	mu        sync.Mutex
	processed atomic.Int64

	logger logger.Logger
}

// NewPool creates a pool of workerCount workers. A count below one selects
// a multiple of the CPU count.
func NewPool(workerCount int, q Queue, h Handler, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}
	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := range p.workers {
		wopts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		w := NewInMemoryWorker(q, h, wopts...)
		w.processed = &p.processed
		p.workers[i] = w
	}
	metrics.UpdateWorkerCount(workerCount)
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return len(p.workers)
}

// Processed returns the number of tasks handled so far.
func (p *Pool) Processed() int64 {
	return p.processed.Load()
}

// Start launches every worker. In-flight tasks observe cancellation of ctx.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.started = true
	for _, w := range p.workers {
		go w.Run(runCtx)
	}
	p.logger.Info(ctx, "worker pool started", logger.Int("workers", len(p.workers)))
}

// Shutdown closes the queue, lets workers finish their current task and
// then cancels anything still running.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return nil
	}
	p.started = false

	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var errs []error
	for i, w := range p.workers {
		if err := w.Shutdown(shutdownCtx); err != nil {
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			errs = append(errs, err)
		}
	}
	p.cancel()
	return errors.Join(errs...)
}
