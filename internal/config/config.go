// Package config defines service configuration and its layered loader.
package config

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8000".
	Addr string `koanf:"addr"`

	// WikiThreadCount sets the number of crawl workers.
	WikiThreadCount int `koanf:"wiki_thread_count"`

	WikiAPIURL      string `koanf:"wiki_api_url"`
	WikiUserAgent   string `koanf:"wiki_user_agent"`
	WikiAccessToken string `koanf:"wiki_access_token"`

	// WikiBatchSize is the number of titles sent per MediaWiki query.
	WikiBatchSize int `koanf:"wiki_batch_size"`

	WikiRequestTimeoutMS int `koanf:"wiki_request_timeout_ms"`
	WikiMaxRetries       int `koanf:"wiki_max_retries"`

	// WikiRateLimit caps outgoing requests per second. Zero disables limiting.
	WikiRateLimit float64 `koanf:"wiki_rate_limit"`

	// TaskQueueSize bounds the in-memory crawl task queue.
	TaskQueueSize int `koanf:"task_queue_size"`

	// MaxDepth caps the crawl depth accepted from clients.
	MaxDepth int `koanf:"max_depth"`

	// JobTimeoutMS bounds how long a request waits for its crawl.
	JobTimeoutMS int `koanf:"job_timeout_ms"`

	// ResultCacheSize bounds cached crawl results. Zero disables caching.
	ResultCacheSize  int `koanf:"result_cache_size"`
	ResultCacheTTLMS int `koanf:"result_cache_ttl_ms"`

	// MetricsEnabled turns recording of Prometheus metrics on or off.
	MetricsEnabled   bool   `koanf:"metrics_enabled"`
	MetricsNamespace string `koanf:"metrics_namespace"`

	// MetricsRefreshIntervalMS sets how often runtime and service gauges are sampled.
	MetricsRefreshIntervalMS int `koanf:"metrics_refresh_interval_ms"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:             "info",
		LogFormat:            "text",
		Addr:                 ":8000",
		WikiThreadCount:      200,
		WikiAPIURL:           "https://en.wikipedia.org/w/api.php",
		WikiUserAgent:        "MSCI-test/1.0 (contact@example.com)",
		WikiBatchSize:        5,
		WikiRequestTimeoutMS: 3000,
		WikiMaxRetries:       5,
		TaskQueueSize:        100_000,
		MaxDepth:             3,
		JobTimeoutMS:         120_000,
		ResultCacheSize:      256,
		ResultCacheTTLMS:     300_000,

		MetricsEnabled:           true,
		MetricsNamespace:         "msci",
		MetricsRefreshIntervalMS: 10_000,
	}
}

// Validate checks bounds that the service relies on.
func (c *Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.Addr) == "" {
		problems = append(problems, "addr must not be empty")
	}
	if c.WikiThreadCount < 1 {
		problems = append(problems, "wiki_thread_count must be at least 1")
	}
	if strings.TrimSpace(c.WikiAPIURL) == "" {
		problems = append(problems, "wiki_api_url must not be empty")
	}
	if c.WikiBatchSize < 1 {
		problems = append(problems, "wiki_batch_size must be at least 1")
	}
	if c.WikiRequestTimeoutMS < 1 {
		problems = append(problems, "wiki_request_timeout_ms must be positive")
	}
	if c.WikiMaxRetries < 1 {
		problems = append(problems, "wiki_max_retries must be at least 1")
	}
	if c.WikiRateLimit < 0 {
		problems = append(problems, "wiki_rate_limit must not be negative")
	}
	if c.TaskQueueSize < 1 {
		problems = append(problems, "task_queue_size must be at least 1")
	}
	if c.MaxDepth < 0 {
		problems = append(problems, "max_depth must not be negative")
	}
	if c.JobTimeoutMS < 1 {
		problems = append(problems, "job_timeout_ms must be positive")
	}
	if c.ResultCacheSize < 0 || c.ResultCacheTTLMS < 0 {
		problems = append(problems, "result cache settings must not be negative")
	}
	if c.MetricsRefreshIntervalMS < 1 {
		problems = append(problems, "metrics_refresh_interval_ms must be positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// WikiRequestTimeout returns the per-request upstream timeout.
func (c *Config) WikiRequestTimeout() time.Duration {
	return time.Duration(c.WikiRequestTimeoutMS) * time.Millisecond
}

// JobTimeout returns the maximum wait for a crawl.
func (c *Config) JobTimeout() time.Duration {
	return time.Duration(c.JobTimeoutMS) * time.Millisecond
}

// ResultCacheTTL returns how long results stay cached.
func (c *Config) ResultCacheTTL() time.Duration {
	return time.Duration(c.ResultCacheTTLMS) * time.Millisecond
}

// MetricsRefreshInterval returns the gauge sampling period.
func (c *Config) MetricsRefreshInterval() time.Duration {
	return time.Duration(c.MetricsRefreshIntervalMS) * time.Millisecond
}

// loadContextKey carries an explicit config file path.
type loadContextKey struct{}

// WithPath returns a context that makes Load read the YAML file at path,
// taking precedence over MSCI_CONFIG.
func WithPath(ctx context.Context, path string) context.Context {
	return context.WithValue(ctx, loadContextKey{}, path)
}
