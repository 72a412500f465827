// Package crawler runs word-frequency crawl jobs.
//
// A job starts from one article. Its words are counted and, up to the
// requested depth, the titles it links to are fetched in batches and counted
// too. Every fetch is a task on the shared queue; the job finishes when its
// last pending task completes or on the first failure.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okian/msci/internal/domain/dedupe"
	"github.com/okian/msci/internal/domain/model"
	"github.com/okian/msci/internal/domain/types"
	"github.com/okian/msci/pkg/logger"
	"github.com/okian/msci/pkg/metrics"
)

const (
	defaultBatchSize = 5

	unknownErrorMessage = "An unknown error happened"
	queueFullMessage    = "task queue is full"
)

// Fetcher retrieves article content.
type Fetcher interface {
	Words(ctx context.Context, titles []string) (types.WordCounts, error)
	Links(ctx context.Context, titles []string) ([]string, error)
}

// Enqueuer accepts tasks without blocking.
type Enqueuer interface {
	Enqueue(ctx context.Context, t model.Task) bool
}

// UserFacing is implemented by errors whose message may be shown to API
// clients as the job's failure reason.
type UserFacing interface {
	error
	UserMessage() string
}

type job struct {
	id       string
	article  string
	depth    int
	started  time.Time
	words    types.WordCounts
	seen     dedupe.Deduper
	pending  int
	result   *model.Result
	done     chan struct{}
	ctx      context.Context //nolint:containedctx // cancels in-flight fetches of the job
	cancel   context.CancelFunc
	finished time.Time
}

// Engine tracks crawl jobs. It implements worker.Handler.
type Engine struct {
	mu        sync.Mutex
	jobs      map[string]*job
	fetcher   Fetcher
	queue     Enqueuer
	batchSize int
	logger    logger.Logger
}

// New creates an engine that fetches with f and schedules tasks on q.
func New(f Fetcher, q Enqueuer, opts ...Option) *Engine {
	e := &Engine{
		jobs:      make(map[string]*job),
		fetcher:   f,
		queue:     q,
		batchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = logger.Get().Named("crawler")
	}
	return e
}

// AddJob starts crawling article down to depth link levels and returns the
// job id. A depth below one counts only the article itself. ErrBackpressure
// is returned when the queue cannot take the first tasks.
func (e *Engine) AddJob(ctx context.Context, article string, depth int) (string, error) {
	jctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	j := &job{
		id:      uuid.NewString(),
		article: article,
		depth:   depth,
		started: time.Now(),
		words:   make(types.WordCounts),
		seen:    dedupe.NewInMemoryDeduper(),
		done:    make(chan struct{}),
		ctx:     jctx,
		cancel:  cancel,
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.jobs[j.id] = j
	ok := e.schedule(ctx, j, model.Task{JobID: j.id, Kind: model.KindWords, Titles: []string{article}})
	if ok && depth > 0 {
		ok = e.schedule(ctx, j, model.Task{JobID: j.id, Kind: model.KindLinks, Titles: []string{article}, Level: 1, MaxDepth: depth})
	}
	if !ok {
		delete(e.jobs, j.id)
		cancel()
		return "", ErrBackpressure
	}

	metrics.RecordJobStarted()
	metrics.UpdateActiveJobs(len(e.jobs))
	e.logger.Info(ctx, "job started",
		logger.String("job", j.id),
		logger.String("article", article),
		logger.Int("depth", depth),
	)
	return j.id, nil
}

// schedule must be called with e.mu held.
func (e *Engine) schedule(ctx context.Context, j *job, t model.Task) bool { //nolint:gocritic // hugeParam: Task is passed by value for channel semantics
	if !e.queue.Enqueue(ctx, t) {
		return false
	}
	j.pending++
	return true
}

// Handle runs one task and folds its output into the owning job.
func (e *Engine) Handle(ctx context.Context, t model.Task) error { //nolint:gocritic // hugeParam: Task is passed by value for channel semantics
	e.mu.Lock()
	j, ok := e.jobs[t.JobID]
	if !ok || j.result != nil {
		e.mu.Unlock()
		return ErrJobGone
	}
	jctx := j.ctx
	e.mu.Unlock()

	fetchCtx, stop := context.WithCancel(ctx)
	defer stop()
	unregister := context.AfterFunc(jctx, stop)
	defer unregister()

	var out model.TaskOutput
	switch t.Kind {
	case model.KindWords:
		out.Words, out.Err = e.fetcher.Words(fetchCtx, t.Titles)
	case model.KindLinks:
		out.Links, out.Err = e.fetcher.Links(fetchCtx, t.Titles)
	default:
		out.Err = fmt.Errorf("unknown task kind %q", t.Kind)
	}
	e.complete(ctx, t, out)
	return out.Err
}

// Fail records that t could not run.
func (e *Engine) Fail(ctx context.Context, t model.Task, err error) { //nolint:gocritic // hugeParam: Task is passed by value for channel semantics
	e.complete(ctx, t, model.TaskOutput{Err: err})
}

func (e *Engine) complete(ctx context.Context, t model.Task, out model.TaskOutput) { //nolint:gocritic // hugeParam: Task is passed by value for channel semantics
	e.mu.Lock()
	defer e.mu.Unlock()

	j, ok := e.jobs[t.JobID]
	if !ok || j.result != nil {
		return
	}
	j.pending--

	if out.Err != nil {
		e.fail(ctx, j, out.Err)
		return
	}

	switch t.Kind {
	case model.KindWords:
		j.words.Merge(out.Words)
		metrics.RecordWordsCounted(out.Words.Total())
	case model.KindLinks:
		if !e.expand(ctx, j, t, out.Links) {
			e.fail(ctx, j, ErrBackpressure)
			return
		}
	}

	if j.pending == 0 {
		e.finish(ctx, j, model.Result{Success: true, Words: j.words})
	}
}

// expand schedules words tasks for unseen links, plus links tasks while the
// depth allows it. Must be called with e.mu held.
func (e *Engine) expand(ctx context.Context, j *job, t model.Task, links []string) bool { //nolint:gocritic // hugeParam: Task is passed by value for channel semantics
	fresh := make([]string, 0, len(links))
	for _, l := range links {
		if !j.seen.SeenAndRecord(ctx, l) {
			fresh = append(fresh, l)
		}
	}
	for start := 0; start < len(fresh); start += e.batchSize {
		end := min(start+e.batchSize, len(fresh))
		batch := fresh[start:end]
		if !e.schedule(ctx, j, model.Task{JobID: j.id, Kind: model.KindWords, Titles: batch}) {
			return false
		}
		if t.Level < t.MaxDepth {
			next := model.Task{JobID: j.id, Kind: model.KindLinks, Titles: batch, Level: t.Level + 1, MaxDepth: t.MaxDepth}
			if !e.schedule(ctx, j, next) {
				return false
			}
		}
	}
	return true
}

// fail must be called with e.mu held.
func (e *Engine) fail(ctx context.Context, j *job, err error) {
	msg := unknownErrorMessage
	var uf UserFacing
	switch {
	case errors.As(err, &uf):
		msg = uf.UserMessage()
	case errors.Is(err, ErrBackpressure):
		msg = queueFullMessage
	default:
		e.logger.Error(ctx, "task failed", logger.String("job", j.id), logger.Error(err))
	}
	e.finish(ctx, j, model.Result{Success: false, Error: msg})
}

// finish must be called with e.mu held.
func (e *Engine) finish(ctx context.Context, j *job, res model.Result) { //nolint:gocritic // hugeParam: Result copied once per job
	j.result = &res
	j.finished = time.Now()
	fetched := j.seen.Size()
	j.words = nil
	j.seen = nil
	j.cancel()
	close(j.done)

	outcome := "success"
	if !res.Success {
		outcome = "failure"
	}
	metrics.RecordJobFinished(outcome, j.finished.Sub(j.started))
	e.logger.Info(ctx, "job finished",
		logger.String("job", j.id),
		logger.String("outcome", outcome),
		logger.Duration("elapsed", j.finished.Sub(j.started)),
		logger.Int("linked_articles", fetched),
		logger.Int("distinct_words", len(res.Words)),
	)
}

// GetResult returns the job result without blocking. ok is false while the
// job is running or when the id is unknown. The returned word map is shared;
// clone it before mutating.
func (e *Engine) GetResult(id string) (model.Result, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	j, ok := e.jobs[id]
	if !ok || j.result == nil {
		return model.Result{}, false
	}
	return *j.result, true
}

// Wait blocks until the job finishes or ctx is done.
func (e *Engine) Wait(ctx context.Context, id string) (model.Result, error) {
	e.mu.Lock()
	j, ok := e.jobs[id]
	e.mu.Unlock()
	if !ok {
		return model.Result{}, ErrJobNotFound
	}

	select {
	case <-j.done:
		e.mu.Lock()
		defer e.mu.Unlock()
		return *j.result, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return model.Result{}, fmt.Errorf("%w: %w", ErrJobTimeout, ctx.Err())
		}
		return model.Result{}, ctx.Err()
	}
}

// Cleanup forgets the job and cancels its outstanding fetches. Tasks still
// queued for it are dropped when a worker picks them up.
func (e *Engine) Cleanup(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	j, ok := e.jobs[id]
	if !ok {
		return
	}
	if j.result == nil {
		metrics.RecordJobFinished("cancelled", time.Since(j.started))
	}
	j.cancel()
	delete(e.jobs, id)
	metrics.UpdateActiveJobs(len(e.jobs))
}

// Stats summarises tracked jobs.
type Stats struct {
	Running  int `json:"running"`
	Finished int `json:"finished"`
	Pending  int `json:"pendingTasks"`
}

// Stats returns counts of running and finished-but-not-cleaned jobs.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	var s Stats
	for _, j := range e.jobs {
		if j.result == nil {
			s.Running++
			s.Pending += j.pending
		} else {
			s.Finished++
		}
	}
	return s
}
