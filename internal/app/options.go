package service

import (
	"time"

	"github.com/okian/msci/internal/adapters/wiki"
	"github.com/okian/msci/internal/domain/crawler"
	"github.com/okian/msci/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of concurrent wiki workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum number of pending tasks.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithBatchSize sets how many titles go into one wiki request.
func WithBatchSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.batchSize = size
		}
	}
}

// WithMaxDepth sets the deepest crawl a caller may request.
func WithMaxDepth(depth int) Option {
	return func(s *Service) {
		if depth >= 0 {
			s.maxDepth = depth
		}
	}
}

// WithJobTimeout bounds how long a single crawl may run.
func WithJobTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.jobTimeout = d
		}
	}
}

// WithResultCache sets the result cache size and freshness. A zero size
// disables caching.
func WithResultCache(size int, ttl time.Duration) Option {
	return func(s *Service) {
		if size >= 0 {
			s.cacheSize = size
		}
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

// WithWikiAPI sets the MediaWiki endpoint and client options.
func WithWikiAPI(apiURL string, opts ...wiki.Option) Option {
	return func(s *Service) {
		if apiURL != "" {
			s.wikiURL = apiURL
		}
		s.wikiOpts = append(s.wikiOpts, opts...)
	}
}

// WithFetcher replaces the wiki client.
func WithFetcher(f crawler.Fetcher) Option {
	return func(s *Service) {
		s.fetcher = f
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
