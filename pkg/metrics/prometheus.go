// Package metrics provides Prometheus metrics for the msci word-frequency service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const defaultRefreshInterval = 10 * time.Second

// Manager owns every collector exported by the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	registry         prometheus.Registerer

	// Jobs
	jobsStarted  prometheus.Counter
	jobsFinished *prometheus.CounterVec
	jobDuration  prometheus.Histogram
	activeJobs   prometheus.Gauge
	wordsCounted prometheus.Counter

	// Tasks
	tasksProcessed *prometheus.CounterVec
	taskLatency    *prometheus.HistogramVec

	// Upstream
	wikiRequests       *prometheus.CounterVec
	wikiRetries        *prometheus.CounterVec
	wikiRequestLatency prometheus.Histogram

	// Queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueueTotal  prometheus.Counter
	queueDequeueTotal  prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Workers
	workerCount       prometheus.Gauge
	workerBusy        prometheus.Gauge
	workerPanicsTotal prometheus.Counter

	// Result cache
	cacheLookups *prometheus.CounterVec
	cacheEntries prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec
	errorsByEndpoint  *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

var (
	globalManager  *Manager             //nolint:gochecknoglobals // singleton metrics manager
	customRegistry *prometheus.Registry //nolint:gochecknoglobals // registry without default Go collectors
)

func init() { //nolint:gochecknoinits // global metrics setup
	Init()
}

// Init replaces the global manager with one built from opts on a fresh
// registry. Call it at startup, before anything records or serves metrics.
// A registry passed with WithPrometheusRegistry is ignored.
func Init(opts ...Option) {
	reg := prometheus.NewRegistry()
	all := make([]Option, 0, len(opts)+1)
	all = append(all, opts...)
	all = append(all, WithPrometheusRegistry(reg))
	globalManager = NewManager(all...)
	customRegistry = reg
}

// RefreshInterval returns how often the global manager's gauges should be
// sampled.
func RefreshInterval() time.Duration {
	return globalManager.RefreshInterval()
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "msci",
		subsystem:        "wordfreq",
		histogramBuckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

// RefreshInterval returns how often gauge snapshots should be refreshed.
func (m *Manager) RefreshInterval() time.Duration {
	return m.refreshInterval
}

// Enabled reports whether recording is active.
func (m *Manager) Enabled() bool {
	return m.enabled
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.customLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.customLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.customLabels,
	})
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.customLabels,
		Buckets: m.histogramBuckets,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.customLabels,
		Buckets: m.histogramBuckets,
	}, labels)
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	m.jobsStarted = m.counter("jobs_started_total", "Total number of crawl jobs started")
	m.jobsFinished = m.counterVec("jobs_finished_total", "Total number of crawl jobs finished by outcome", "outcome")
	m.jobDuration = m.histogram("job_duration_milliseconds", "Crawl job duration in milliseconds")
	m.activeJobs = m.gauge("active_jobs", "Number of crawl jobs currently tracked")
	m.wordsCounted = m.counter("words_counted_total", "Total number of word occurrences counted")

	m.tasksProcessed = m.counterVec("tasks_processed_total", "Total number of crawl tasks processed", "kind", "outcome")
	m.taskLatency = m.histogramVec("task_latency_milliseconds", "Crawl task latency in milliseconds", "kind")

	m.wikiRequests = m.counterVec("wiki_requests_total", "Total number of MediaWiki API requests", "prop", "status_code")
	m.wikiRetries = m.counterVec("wiki_retries_total", "Total number of MediaWiki API retries", "reason")
	m.wikiRequestLatency = m.histogram("wiki_request_latency_milliseconds", "MediaWiki API request latency in milliseconds")

	m.queueSize = m.gauge("queue_size", "Current number of queued crawl tasks")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum number of queued crawl tasks")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Queue size divided by capacity")
	m.queueEnqueueTotal = m.counter("queue_enqueue_total", "Total number of enqueued crawl tasks")
	m.queueDequeueTotal = m.counter("queue_dequeue_total", "Total number of dequeued crawl tasks")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Total number of rejected enqueue attempts")

	m.workerCount = m.gauge("worker_count", "Number of workers in the pool")
	m.workerBusy = m.gauge("worker_busy", "Number of workers currently processing a task")
	m.workerPanicsTotal = m.counter("worker_panics_total", "Total number of recovered worker panics")

	m.cacheLookups = m.counterVec("result_cache_lookups_total", "Result cache lookups by outcome", "outcome")
	m.cacheEntries = m.gauge("result_cache_entries", "Number of cached results")

	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds",
		"endpoint", "method", "status_code")

	m.errorsByComponent = m.counterVec("errors_by_component_total", "Errors by component and type", "component", "error_type")
	m.errorsByEndpoint = m.counterVec("errors_by_endpoint_total", "Errors by endpoint", "endpoint", "method", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_bytes", "Allocated heap bytes")
	m.systemGoroutineCount = m.gauge("system_goroutines", "Number of goroutines")
}

func on() bool { return globalManager.enabled }

// Job metrics.

// RecordJobStarted increments the started jobs counter.
func RecordJobStarted() {
	if on() {
		globalManager.jobsStarted.Inc()
	}
}

// RecordJobFinished records a finished job with its outcome ("success", "failure", "cancelled").
func RecordJobFinished(outcome string, d time.Duration) {
	if !on() {
		return
	}
	globalManager.jobsFinished.WithLabelValues(outcome).Inc()
	globalManager.jobDuration.Observe(float64(d.Milliseconds()))
}

// UpdateActiveJobs sets the tracked jobs gauge.
func UpdateActiveJobs(n int) {
	if on() {
		globalManager.activeJobs.Set(float64(n))
	}
}

// RecordWordsCounted adds n counted word occurrences.
func RecordWordsCounted(n int) {
	if on() && n > 0 {
		globalManager.wordsCounted.Add(float64(n))
	}
}

// Task metrics.

// RecordTask records a processed task of the given kind.
func RecordTask(kind, outcome string, d time.Duration) {
	if !on() {
		return
	}
	globalManager.tasksProcessed.WithLabelValues(kind, outcome).Inc()
	globalManager.taskLatency.WithLabelValues(kind).Observe(float64(d.Milliseconds()))
}

// Upstream metrics.

// RecordWikiRequest records one MediaWiki API round trip.
func RecordWikiRequest(prop, statusCode string, d time.Duration) {
	if !on() {
		return
	}
	globalManager.wikiRequests.WithLabelValues(prop, statusCode).Inc()
	globalManager.wikiRequestLatency.Observe(float64(d.Milliseconds()))
}

// RecordWikiRetry records a retry caused by reason ("rate_limited", "timeout").
func RecordWikiRetry(reason string) {
	if on() {
		globalManager.wikiRetries.WithLabelValues(reason).Inc()
	}
}

// Queue metrics.

// UpdateQueueCapacity sets the queue capacity gauge.
func UpdateQueueCapacity(capacity int) {
	if on() {
		globalManager.queueCapacity.Set(float64(capacity))
	}
}

// UpdateQueueSize sets the queue size and utilization gauges.
func UpdateQueueSize(size, capacity int) {
	if !on() {
		return
	}
	globalManager.queueSize.Set(float64(size))
	if capacity > 0 {
		globalManager.queueUtilization.Set(float64(size) / float64(capacity))
	}
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	if on() {
		globalManager.queueEnqueueTotal.Inc()
	}
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	if on() {
		globalManager.queueDequeueTotal.Inc()
	}
}

// RecordQueueEnqueueError increments the rejected enqueue counter.
func RecordQueueEnqueueError() {
	if on() {
		globalManager.queueEnqueueErrors.Inc()
	}
}

// Worker metrics.

// UpdateWorkerCount sets the pool size gauge.
func UpdateWorkerCount(count int) {
	if on() {
		globalManager.workerCount.Set(float64(count))
	}
}

// WorkerBusy adjusts the busy workers gauge by delta.
func WorkerBusy(delta int) {
	if on() {
		globalManager.workerBusy.Add(float64(delta))
	}
}

// RecordWorkerPanic increments the recovered panic counter.
func RecordWorkerPanic() {
	if on() {
		globalManager.workerPanicsTotal.Inc()
	}
}

// Cache metrics.

// RecordCacheLookup records a result cache lookup ("hit", "miss", "expired").
func RecordCacheLookup(outcome string) {
	if on() {
		globalManager.cacheLookups.WithLabelValues(outcome).Inc()
	}
}

// UpdateCacheEntries sets the cached results gauge.
func UpdateCacheEntries(n int) {
	if on() {
		globalManager.cacheEntries.Set(float64(n))
	}
}

// HTTP metrics.

// RecordHTTPRequest records a served request and its duration in milliseconds.
func RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	if !on() {
		return
	}
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// Error metrics.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	if on() {
		globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
	}
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	if on() {
		globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
	}
}

// System metrics.

// UpdateSystemMemoryUsage sets the allocated heap bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	if on() {
		globalManager.systemMemoryUsage.Set(float64(bytes))
	}
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	if on() {
		globalManager.systemGoroutineCount.Set(float64(count))
	}
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
