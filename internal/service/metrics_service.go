package service

import (
	"net/http"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/taxdesk-api/internal/models"
	"github.com/noah-isme/taxdesk-api/pkg/jobs"
)

const metricsNamespace = "taxdesk"

// runningMean accumulates a count and a total duration without locking.
type runningMean struct {
	count atomic.Uint64
	total atomic.Int64
}

func (r *runningMean) add(d time.Duration) {
	r.count.Add(1)
	r.total.Add(int64(d))
}

func (r *runningMean) millis() (uint64, float64) {
	n := r.count.Load()
	if n == 0 {
		return 0, 0
	}
	return n, float64(r.total.Load()) / float64(n) / float64(time.Millisecond)
}

// MetricsService owns a private Prometheus registry and mirrors the headline
// numbers into counters that back the admin system endpoint.
type MetricsService struct {
	registry *prometheus.Registry
	handler  http.Handler
	started  time.Time

	httpDuration   *prometheus.HistogramVec
	httpInFlight   prometheus.Gauge
	cacheLookups   *prometheus.CounterVec
	cacheLatency   *prometheus.HistogramVec
	dbQueries      *prometheus.HistogramVec
	guardDecisions *prometheus.CounterVec
	adminMonitors  prometheus.Gauge
	streams        prometheus.Gauge
	blobOps        *prometheus.CounterVec
	events         *prometheus.CounterVec

	requests  runningMean
	queries   runningMean
	hits      atomic.Uint64
	misses    atomic.Uint64
	monitors  atomic.Int64
	openFeeds atomic.Int64
}

// NewMetricsService registers the application collectors alongside the Go runtime and process collectors.
func NewMetricsService() *MetricsService {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	m := &MetricsService{
		registry: reg,
		started:  time.Now(),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route template and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		httpInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "Requests currently being served.",
		}),
		cacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Cache reads by outcome.",
		}, []string{"outcome"}),
		cacheLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "cache",
			Name:      "operation_duration_seconds",
			Help:      "Cache round trip latency by operation.",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
		}, []string{"operation"}),
		dbQueries: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "db",
			Name:      "query_duration_seconds",
			Help:      "Database query latency by query name.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"query"}),
		guardDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "admin_guard",
			Name:      "decisions_total",
			Help:      "Admin guard outcomes by state and reason.",
		}, []string{"state", "reason"}),
		adminMonitors: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "admin_guard",
			Name:      "session_monitors",
			Help:      "Admin sessions currently watched for inactivity.",
		}),
		streams: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "dashboard",
			Name:      "stream_subscribers",
			Help:      "Open dashboard live refresh streams.",
		}),
		blobOps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "blob",
			Name:      "operations_total",
			Help:      "Blob storage calls by bucket, operation and result.",
		}, []string{"bucket", "operation", "result"}),
		events: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Domain events published by type and result.",
		}, []string{"type", "result"}),
	}
	m.handler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// TrackInFlight increments the in-flight gauge and returns its decrement.
func (m *MetricsService) TrackInFlight() func() {
	if m == nil {
		return func() {}
	}
	m.httpInFlight.Inc()
	return m.httpInFlight.Dec
}

// ObserveHTTPRequest records one served request under its route template.
func (m *MetricsService) ObserveHTTPRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
	m.requests.add(elapsed)
}

// RecordCacheOperation records a cache read as a hit or a miss.
func (m *MetricsService) RecordCacheOperation(hit bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	outcome := "miss"
	if hit {
		outcome = "hit"
		m.hits.Add(1)
	} else {
		m.misses.Add(1)
	}
	m.cacheLookups.WithLabelValues(outcome).Inc()
	m.cacheLatency.WithLabelValues("get").Observe(elapsed.Seconds())
}

// ObserveCacheWrite records the latency of a cache write.
func (m *MetricsService) ObserveCacheWrite(elapsed time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.WithLabelValues("set").Observe(elapsed.Seconds())
}

// ObserveDBQuery records a named query's latency.
func (m *MetricsService) ObserveDBQuery(query string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.dbQueries.WithLabelValues(query).Observe(elapsed.Seconds())
	m.queries.add(elapsed)
}

// RecordGuardDecision counts an admin guard outcome.
func (m *MetricsService) RecordGuardDecision(result GuardResult) {
	if m == nil {
		return
	}
	reason := result.Reason
	if reason == "" {
		reason = "none"
	}
	m.guardDecisions.WithLabelValues(string(result.State), reason).Inc()
}

// SetActiveMonitors publishes the number of running session monitors.
func (m *MetricsService) SetActiveMonitors(count int) {
	if m == nil {
		return
	}
	m.monitors.Store(int64(count))
	m.adminMonitors.Set(float64(count))
}

// AddDashboardStreams adjusts the open dashboard stream gauge by delta.
func (m *MetricsService) AddDashboardStreams(delta int) {
	if m == nil {
		return
	}
	m.openFeeds.Add(int64(delta))
	m.streams.Add(float64(delta))
}

// RecordBlobOperation counts a blob storage call.
func (m *MetricsService) RecordBlobOperation(bucket, operation string, err error) {
	if m == nil {
		return
	}
	m.blobOps.WithLabelValues(bucket, operation, resultLabel(err)).Inc()
}

// RecordDomainEvent counts a published domain event.
func (m *MetricsService) RecordDomainEvent(eventType string, err error) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(eventType, resultLabel(err)).Inc()
}

// QueueStatsSource is satisfied by *jobs.Queue.
type QueueStatsSource interface {
	Stats() jobs.Stats
}

// TrackQueue exports a job queue's counters, read at scrape time.
func (m *MetricsService) TrackQueue(name string, queue QueueStatsSource) {
	if m == nil || queue == nil {
		return
	}
	labels := prometheus.Labels{"queue": name}
	counter := func(metric, help string, read func(jobs.Stats) uint64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: metricsNamespace, Subsystem: "jobs", Name: metric, Help: help, ConstLabels: labels,
		}, func() float64 { return float64(read(queue.Stats())) })
	}
	m.registry.MustRegister(
		counter("processed_total", "Jobs completed successfully.", func(s jobs.Stats) uint64 { return s.Processed }),
		counter("retried_total", "Job attempts that failed and were rescheduled.", func(s jobs.Stats) uint64 { return s.Retried }),
		counter("abandoned_total", "Jobs dropped after exhausting retries.", func(s jobs.Stats) uint64 { return s.Abandoned }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: metricsNamespace, Subsystem: "jobs", Name: "delayed", Help: "Jobs waiting for their due time.", ConstLabels: labels,
		}, func() float64 { return float64(queue.Stats().Delayed) }),
	)
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Snapshot summarises the counters for the admin system endpoint.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{}
	}
	hits, misses := m.hits.Load(), m.misses.Load()
	var ratio float64
	if lookups := hits + misses; lookups > 0 {
		ratio = float64(hits) / float64(lookups)
	}
	requests, avgRequest := m.requests.millis()
	queries, avgQuery := m.queries.millis()

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	now := time.Now()

	return models.SystemMetrics{
		CacheHitRatio:            ratio,
		CacheHits:                hits,
		CacheMisses:              misses,
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequest,
		DBQueryCount:             queries,
		AverageDBQueryDurationMs: avgQuery,
		ActiveAdminMonitors:      int(m.monitors.Load()),
		DashboardStreams:         int(m.openFeeds.Load()),
		Goroutines:               runtime.NumGoroutine(),
		HeapAllocBytes:           mem.HeapAlloc,
		UptimeSeconds:            int64(now.Sub(m.started).Seconds()),
		GeneratedAt:              now.UTC(),
	}
}
