// Package metrics provides Prometheus metrics for the gridstat service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the gridstat service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Cache Metrics - Tier hits and misses
	cacheLookups   *prometheus.CounterVec
	inflightShared prometheus.Counter
	memoryEntries  prometheus.Gauge

	// Completion and merge
	completionMarks prometheus.Counter
	mergeRequests   *prometheus.CounterVec
	mergedWeeks     prometheus.Counter

	// Analytics
	rankingRecalculations prometheus.Counter
	rankingLatency        prometheus.Histogram

	// Backend Metrics - Upstream data source
	backendRequests *prometheus.CounterVec
	backendLatency  *prometheus.HistogramVec

	// Store Metrics - Durable tier
	storeLatency *prometheus.HistogramVec
	storeErrors  *prometheus.CounterVec
	storeRecords *prometheus.GaugeVec

	// Sessions
	sessionsActive prometheus.Gauge

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Queue Metrics - Warm job queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueueRate   prometheus.Counter
	queueDequeueRate   prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Worker Metrics - Warm job processing
	workerCount             prometheus.Gauge
	workerActiveCount       prometheus.Gauge
	workerIdleCount         prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrorRate         prometheus.Counter

	// Error Metrics
	errorRateByComponent *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

	// System Performance Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "gridstat",
		subsystem:        "service",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: buckets,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: m.histogramBuckets,
	}, labels)
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() {
	m.cacheLookups = m.counterVec("cache_lookups_total", "Cache lookups by tier and result", "tier", "result")
	m.inflightShared = m.counter("cache_inflight_shared_total", "Requests answered by an identical in-flight fetch")
	m.memoryEntries = m.gauge("cache_memory_entries", "Entries held by the in-memory tier across sessions")

	m.completionMarks = m.counter("completion_marks_total", "Slices marked as loaded")
	m.mergeRequests = m.counterVec("merge_requests_total", "Player merges by outcome", "outcome")
	m.mergedWeeks = m.counter("merged_weeks_total", "Weeks added to player records by merges")

	m.rankingRecalculations = m.counter("ranking_recalculations_total", "League rankings recalculated")
	m.rankingLatency = m.histogram("ranking_latency_seconds", "Ranking recalculation latency in seconds", m.histogramBuckets)

	m.backendRequests = m.counterVec("backend_requests_total", "Backend requests by endpoint and outcome", "endpoint", "outcome")
	m.backendLatency = m.histogramVec("backend_latency_seconds", "Backend request latency in seconds", "endpoint")

	m.storeLatency = m.histogramVec("store_operation_seconds", "Durable store operation latency in seconds", "driver", "operation")
	m.storeErrors = m.counterVec("store_errors_total", "Durable store errors", "driver", "operation")
	m.storeRecords = promauto.With(m.registry).NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "store_records", Help: "Records per durable collection",
	}, []string{"collection"})

	m.sessionsActive = m.gauge("sessions_active", "Open cache sessions")

	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method",
		"endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_seconds", "HTTP request duration in seconds",
		"endpoint", "method", "status_code")

	m.queueSize = m.gauge("queue_size", "Current size of the warm job queue")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum warm job queue capacity")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Queue utilization ratio (current size / capacity)")
	m.queueEnqueueRate = m.counter("queue_enqueue_total", "Total number of warm jobs enqueued")
	m.queueDequeueRate = m.counter("queue_dequeue_total", "Total number of warm jobs dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Total number of enqueue errors")

	m.workerCount = m.gauge("worker_count", "Configured warm workers")
	m.workerActiveCount = m.gauge("worker_active_count", "Number of busy warm workers")
	m.workerIdleCount = m.gauge("worker_idle_count", "Number of idle warm workers")
	m.workerProcessingLatency = m.histogram("worker_processing_seconds", "Warm job processing latency in seconds", m.histogramBuckets)
	m.workerErrorRate = m.counter("worker_errors_total", "Total number of failed warm jobs")

	m.errorRateByComponent = m.counterVec("errors_by_component_total", "Total number of errors by component",
		"component", "error_type")
	m.errorRateByEndpoint = m.counterVec("errors_by_endpoint_total", "Total number of errors by endpoint",
		"endpoint", "method", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

// Cache Metrics Functions.

// RecordCacheLookup counts a lookup against tier ("memory", "store", "backend").
func RecordCacheLookup(tier string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	globalManager.cacheLookups.WithLabelValues(tier, result).Inc()
}

// RecordInflightShared counts a caller that joined an in-flight fetch.
func RecordInflightShared() {
	globalManager.inflightShared.Inc()
}

// UpdateMemoryEntries sets the in-memory tier size.
func UpdateMemoryEntries(n int) {
	globalManager.memoryEntries.Set(float64(n))
}

// RecordCompletionMark counts a slice marked loaded.
func RecordCompletionMark() {
	globalManager.completionMarks.Inc()
}

// RecordMerge counts a player merge with its outcome and added weeks.
func RecordMerge(outcome string, weeksAdded int) {
	globalManager.mergeRequests.WithLabelValues(outcome).Inc()
	if weeksAdded > 0 {
		globalManager.mergedWeeks.Add(float64(weeksAdded))
	}
}

// RecordRankingRecalculation records one rankings rebuild.
func RecordRankingRecalculation(seconds float64) {
	globalManager.rankingRecalculations.Inc()
	globalManager.rankingLatency.Observe(seconds)
}

// Backend Metrics Functions.

// RecordBackendRequest records one backend call.
func RecordBackendRequest(endpoint, outcome string, seconds float64) {
	globalManager.backendRequests.WithLabelValues(endpoint, outcome).Inc()
	globalManager.backendLatency.WithLabelValues(endpoint).Observe(seconds)
}

// Store Metrics Functions.

// RecordStoreOperation records a durable store call and its outcome.
func RecordStoreOperation(driver, operation string, seconds float64, err error) {
	globalManager.storeLatency.WithLabelValues(driver, operation).Observe(seconds)
	if err != nil {
		globalManager.storeErrors.WithLabelValues(driver, operation).Inc()
	}
}

// UpdateStoreRecords sets the record count of a collection.
func UpdateStoreRecords(collection string, n int) {
	globalManager.storeRecords.WithLabelValues(collection).Set(float64(n))
}

// UpdateSessionsActive sets the number of open sessions.
func UpdateSessionsActive(n int) {
	globalManager.sessionsActive.Set(float64(n))
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in seconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, seconds float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(seconds)
}

// Queue Metrics Functions.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueueRate.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeueRate.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// Worker Metrics Functions.

// UpdateWorkerCount sets the configured worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// UpdateWorkerActiveCount sets the number of active workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// UpdateWorkerIdleCount sets the number of idle workers.
func UpdateWorkerIdleCount(count int) {
	globalManager.workerIdleCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records warm job latency in seconds.
func RecordWorkerProcessingLatency(seconds float64) {
	globalManager.workerProcessingLatency.Observe(seconds)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrorRate.Inc()
}

// Error Metrics Functions.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// System Performance Metrics Functions.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
