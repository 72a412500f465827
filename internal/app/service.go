// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/msci/internal/adapters/mq/queue"
	"github.com/okian/msci/internal/adapters/mq/worker"
	"github.com/okian/msci/internal/adapters/repository"
	"github.com/okian/msci/internal/adapters/wiki"
	"github.com/okian/msci/internal/domain/crawler"
	"github.com/okian/msci/internal/domain/keywords"
	"github.com/okian/msci/internal/domain/types"
	"github.com/okian/msci/pkg/logger"
	"github.com/okian/msci/pkg/metrics"
	"golang.org/x/sync/singleflight"
)

const stopTimeout = 30 * time.Second

// Service implements the API dependencies for the word-frequency system.
type Service struct {
	mu sync.RWMutex

	// Core components
	queue   *queue.InMemoryQueue
	pool    *worker.Pool
	engine  *crawler.Engine
	cache   *repository.MemoryStore
	fetcher crawler.Fetcher
	group   singleflight.Group

	// Configuration
	workerCount int
	queueSize   int
	batchSize   int
	maxDepth    int
	jobTimeout  time.Duration
	cacheSize   int
	cacheTTL    time.Duration
	wikiURL     string
	wikiOpts    []wiki.Option

	// State
	started bool
	cancel  context.CancelFunc

	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount: 200,
		queueSize:   100000,
		batchSize:   5,
		maxDepth:    3,
		jobTimeout:  2 * time.Minute,
		cacheSize:   256,
		cacheTTL:    5 * time.Minute,
		wikiURL:     wiki.DefaultAPIURL,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	s.logger.Info(ctx, "starting word-frequency service...")

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel

	fetcher := s.fetcher
	if fetcher == nil {
		fetcher = wiki.NewClient(s.wikiURL, s.wikiOpts...)
	}
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.engine = crawler.New(fetcher, s.queue, crawler.WithBatchSize(s.batchSize))
	s.cache = repository.NewMemoryStore(runCtx,
		repository.WithMaxEntries(s.cacheSize),
		repository.WithTTL(s.cacheTTL),
	)
	s.pool = worker.NewPool(s.workerCount, s.queue, s.engine, worker.WithName("wiki-worker"))
	s.pool.Start(runCtx)

	s.started = true
	s.logger.Info(ctx, "word-frequency service started",
		logger.Int("workers", s.pool.Size()),
		logger.Int("queueSize", s.queueSize),
		logger.Int("batchSize", s.batchSize),
		logger.Int("maxDepth", s.maxDepth),
		logger.Duration("jobTimeout", s.jobTimeout),
	)
	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	s.logger.Info(ctx, "stopping word-frequency service...")

	if err := s.pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "worker pool shutdown", logger.Error(err))
	}
	_ = s.cache.Close()
	s.cancel()

	s.started = false
	s.logger.Info(ctx, "word-frequency service stopped")
}

// WordFrequency returns the word counts of article and, up to depth link
// levels, the articles it links to. A depth below one counts the article
// only. Identical concurrent requests share one crawl. The returned map
// belongs to the caller.
func (s *Service) WordFrequency(ctx context.Context, article string, depth int) (types.WordCounts, error) {
	if err := s.validate(article, depth); err != nil {
		return nil, err
	}
	depth = max(depth, 0)

	s.mu.RLock()
	engine, cache, started := s.engine, s.cache, s.started
	s.mu.RUnlock()
	if !started {
		return nil, ErrNotStarted
	}

	key := repository.Key{Article: article, Depth: depth}
	if words, ok := cache.Get(ctx, key); ok {
		s.logger.Debug(ctx, "cache hit", logger.String("article", article), logger.Int("depth", depth))
		return words, nil
	}

	ch := s.group.DoChan(fmt.Sprintf("%d|%s", depth, article), func() (any, error) {
		return s.crawl(context.WithoutCancel(ctx), engine, cache, key)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(types.WordCounts).Clone(), nil
	}
}

func (s *Service) crawl(ctx context.Context, engine *crawler.Engine, cache repository.Store, key repository.Key) (types.WordCounts, error) {
	id, err := engine.AddJob(ctx, key.Article, key.Depth)
	if err != nil {
		return nil, err
	}
	defer engine.Cleanup(id)

	wctx, cancel := context.WithTimeout(ctx, s.jobTimeout)
	defer cancel()
	res, err := engine.Wait(wctx, id)
	if err != nil {
		s.logger.Warn(ctx, "job abandoned", logger.String("job", id), logger.Error(err))
		return nil, err
	}
	if !res.Success {
		return nil, &JobError{Message: res.Error}
	}
	cache.Put(ctx, key, res.Words)
	return res.Words, nil
}

// Keywords returns the word counts of the crawl with ignore removed and, when
// percentile is set, only the words counted strictly less often than that
// percentile of all counts.
func (s *Service) Keywords(ctx context.Context, article string, depth int, ignore []string, percentile *int) (types.WordCounts, error) {
	if percentile != nil && (*percentile < 0 || *percentile > 100) {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, keywords.ErrPercentileRange)
	}
	words, err := s.WordFrequency(ctx, article, depth)
	if err != nil {
		return nil, err
	}
	words = keywords.Filter(words, ignore)
	if percentile == nil {
		return words, nil
	}
	out, err := keywords.BelowPercentile(words, float64(*percentile))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return out, nil
}

// MaxDepth returns the deepest crawl accepted.
func (s *Service) MaxDepth() int {
	return s.maxDepth
}

func (s *Service) validate(article string, depth int) error {
	if article == "" {
		return fmt.Errorf("%w: article is required", ErrInvalidInput)
	}
	if depth > s.maxDepth {
		return fmt.Errorf("%w: depth must be at most %d", ErrInvalidInput, s.maxDepth)
	}
	return nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"batchSize":   s.batchSize,
		"maxDepth":    s.maxDepth,
	}

	if s.started {
		queueLen := s.queue.Len(ctx)
		jobs := s.engine.Stats()

		stats["queueLength"] = queueLen
		stats["jobsRunning"] = jobs.Running
		stats["jobsFinished"] = jobs.Finished
		stats["pendingTasks"] = jobs.Pending
		stats["tasksProcessed"] = s.pool.Processed()
		stats["cachedResults"] = s.cache.Count(ctx)

		metrics.UpdateQueueSize(queueLen, s.queue.Cap())
		metrics.UpdateWorkerCount(s.pool.Size())
		metrics.UpdateActiveJobs(jobs.Running)
	}

	return stats
}
