package probe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/okian/msci/internal/domain/keywords"
	"github.com/okian/msci/pkg/logger"
	"golang.org/x/sync/errgroup"
)

// ErrAllFailed is returned when no request succeeded.
var ErrAllFailed = errors.New("every probe request failed")

// Run checks the service health, fires cfg.Requests requests with
// cfg.Workers in flight and returns the collected statistics.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	if len(cfg.Articles) == 0 {
		return nil, errors.New("no articles to request")
	}
	log := logger.Get().Named("probe")
	log.Info(ctx, "starting msci probe",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("requests", cfg.Requests),
		logger.Int("workers", cfg.Workers),
		logger.Int("depth", cfg.Depth),
		logger.Any("keywords", cfg.Keywords),
	)

	client := newHTTPClient(cfg.BaseURL, cfg.Timeout)
	if err := checkServiceHealth(ctx, client); err != nil {
		return nil, fmt.Errorf("service health check failed: %w", err)
	}

	stats := &Stats{StartTime: time.Now(), ByStatus: map[int]int{}}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, cfg.Workers))
	for i := range cfg.Requests {
		article := cfg.Articles[i%len(cfg.Articles)]
		g.Go(func() error {
			res := client.request(gctx, cfg, article)

			mu.Lock()
			defer mu.Unlock()
			stats.Submitted++
			stats.Latencies = append(stats.Latencies, res.latency)
			if res.status != 0 {
				stats.ByStatus[res.status]++
			}
			if res.err == nil && res.status == http.StatusOK {
				stats.Successful++
				stats.Words = max(stats.Words, res.words)
			} else {
				stats.Failed++
			}
			if cfg.Verbose {
				log.Info(gctx, "request done",
					logger.String("article", article),
					logger.Int("status", res.status),
					logger.Duration("latency", res.latency),
					logger.Error(res.err),
				)
			}
			return nil
		})
	}
	_ = g.Wait()

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, log, stats)

	if stats.Submitted > 0 && stats.Successful == 0 {
		return stats, ErrAllFailed
	}
	return stats, ctx.Err()
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, client *HTTPClient) error {
	resp, err := client.Get(ctx, "/healthz", nil)
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

// Summarize computes latency percentiles and throughput.
func (s *Stats) Summarize() Summary {
	var sum Summary
	if s.Submitted > 0 {
		sum.SuccessRate = float64(s.Successful) / float64(s.Submitted) * 100
	}
	if s.Duration > 0 {
		sum.RequestsPerSec = float64(s.Submitted) / s.Duration.Seconds()
	}
	if len(s.Latencies) == 0 {
		return sum
	}
	micros := make([]int, len(s.Latencies))
	for i, l := range s.Latencies {
		micros[i] = int(l.Microseconds())
	}
	p50, _ := keywords.Percentile(micros, 50)
	p95, _ := keywords.Percentile(micros, 95)
	p100, _ := keywords.Percentile(micros, 100)
	sum.P50 = time.Duration(p50) * time.Microsecond
	sum.P95 = time.Duration(p95) * time.Microsecond
	sum.Max = time.Duration(p100) * time.Microsecond
	return sum
}

func displayFinalStats(ctx context.Context, log logger.Logger, stats *Stats) {
	sum := stats.Summarize()
	log.Info(ctx, "final statistics",
		logger.Int("submitted", stats.Submitted),
		logger.Int("successful", stats.Successful),
		logger.Int("failed", stats.Failed),
		logger.Any("byStatus", stats.ByStatus),
		logger.Int("maxDistinctWords", stats.Words),
		logger.Duration("duration", stats.Duration),
		logger.Duration("p50", sum.P50),
		logger.Duration("p95", sum.P95),
		logger.Duration("max", sum.Max),
		logger.Float64("successRate", sum.SuccessRate),
		logger.Float64("requestsPerSecond", sum.RequestsPerSec),
	)
}
