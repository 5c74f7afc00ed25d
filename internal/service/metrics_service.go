package service

import (
	"math"
	"net/http"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

const metricsNamespace = "timetable"

// Generation runs range from milliseconds (greedy) to tens of seconds (genetic).
var runBuckets = []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

// meanTracker accumulates a count and total duration for summary averages.
type meanTracker struct {
	count uint64
	nanos uint64
}

func (t *meanTracker) add(d time.Duration) {
	atomic.AddUint64(&t.count, 1)
	atomic.AddUint64(&t.nanos, uint64(d.Nanoseconds()))
}

func (t *meanTracker) load() (uint64, float64) {
	count := atomic.LoadUint64(&t.count)
	if count == 0 {
		return 0, 0
	}
	return count, float64(atomic.LoadUint64(&t.nanos)) / float64(count) / float64(time.Millisecond)
}

// MetricsService owns the service's Prometheus registry and keeps the running
// totals behind the JSON summary.
type MetricsService struct {
	handler http.Handler

	httpDuration *prometheus.HistogramVec
	httpTotal    *prometheus.CounterVec

	cacheLookups *prometheus.HistogramVec
	cacheWrites  prometheus.Histogram
	cacheRatio   prometheus.Gauge

	dbQueries *prometheus.HistogramVec

	runDuration  *prometheus.HistogramVec
	runTotal     *prometheus.CounterVec
	fitness      *prometheus.GaugeVec
	utilization  *prometheus.GaugeVec
	unassigned   *prometheus.CounterVec
	placeholders prometheus.Counter
	jobsInFlight prometheus.Gauge

	requests        meanTracker
	queries         meanTracker
	runs            meanTracker
	cacheHits       uint64
	cacheMisses     uint64
	runFailures     uint64
	lastFitness     int64
	lastUtilization uint64
}

// NewMetricsService builds a private registry with Go runtime collectors and
// the scheduler's own metrics under the "timetable" namespace.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(registry)

	return &MetricsService{
		handler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),

		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace, Subsystem: "http", Name: "request_duration_seconds",
			Help: "HTTP request latency by route template.", Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		httpTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace, Subsystem: "http", Name: "requests_total",
			Help: "HTTP requests by route template and status.",
		}, []string{"method", "route", "status"}),

		cacheLookups: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace, Subsystem: "cache", Name: "lookup_seconds",
			Help: "Schedule cache lookup latency by result.", Buckets: prometheus.DefBuckets,
		}, []string{"result"}),
		cacheWrites: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace, Subsystem: "cache", Name: "write_seconds",
			Help: "Schedule cache write latency.", Buckets: prometheus.DefBuckets,
		}),
		cacheRatio: f.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace, Subsystem: "cache", Name: "hit_ratio",
			Help: "Share of schedule cache lookups that hit.",
		}),

		dbQueries: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace, Subsystem: "db", Name: "query_duration_seconds",
			Help: "Schedule store query latency.", Buckets: prometheus.DefBuckets,
		}, []string{"query"}),

		runDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace, Subsystem: "scheduler", Name: "run_duration_seconds",
			Help: "Schedule generation run time.", Buckets: runBuckets,
		}, []string{"algorithm"}),
		runTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace, Subsystem: "scheduler", Name: "runs_total",
			Help: "Generation runs by outcome: complete, partial or error.",
		}, []string{"algorithm", "outcome"}),
		fitness: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace, Subsystem: "scheduler", Name: "last_fitness",
			Help: "Fitness of the latest schedule; 0 means every requirement is met.",
		}, []string{"algorithm"}),
		utilization: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace, Subsystem: "scheduler", Name: "last_utilization_percent",
			Help: "Share of available slots holding a real session in the latest schedule.",
		}, []string{"algorithm"}),
		unassigned: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace, Subsystem: "scheduler", Name: "unassigned_sessions_total",
			Help: "Required sessions that could not be placed.",
		}, []string{"algorithm"}),
		placeholders: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace, Subsystem: "scheduler", Name: "placeholders_total",
			Help: "Placeholder sessions emitted by the slot filler.",
		}),
		jobsInFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace, Subsystem: "jobs", Name: "in_flight",
			Help: "Asynchronous generations queued or running.",
		}),
	}
}

// Handler serves the registry in the Prometheus text format. A nil service
// answers 503 so a misconfigured scrape is visible.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records one request against its route template.
func (m *MetricsService) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	code := strconv.Itoa(status)
	m.httpDuration.WithLabelValues(method, route, code).Observe(duration.Seconds())
	m.httpTotal.WithLabelValues(method, route, code).Inc()
	m.requests.add(duration)
}

// RecordCacheOperation records a schedule cache lookup.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
		atomic.AddUint64(&m.cacheHits, 1)
	} else {
		atomic.AddUint64(&m.cacheMisses, 1)
	}
	m.cacheLookups.WithLabelValues(result).Observe(duration.Seconds())
	if ratio, ok := m.hitRatio(); ok {
		m.cacheRatio.Set(ratio)
	}
}

func (m *MetricsService) hitRatio() (float64, bool) {
	hits := atomic.LoadUint64(&m.cacheHits)
	total := hits + atomic.LoadUint64(&m.cacheMisses)
	if total == 0 {
		return 0, false
	}
	return float64(hits) / float64(total), true
}

// ObserveCacheWrite records a schedule cache write.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrites.Observe(duration.Seconds())
}

// ObserveDBQuery records a schedule store query under label.
func (m *MetricsService) ObserveDBQuery(label string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbQueries.WithLabelValues(label).Observe(duration.Seconds())
	m.queries.add(duration)
}

// ScheduleRun summarises one generation for instrumentation.
type ScheduleRun struct {
	Algorithm    string
	Duration     time.Duration
	Fitness      int
	Utilization  float64
	Unassigned   int
	Placeholders int
	Err          error
}

// ObserveScheduleRun records the outcome of a generation. Runs that leave
// sessions unassigned count as partial.
func (m *MetricsService) ObserveScheduleRun(run ScheduleRun) {
	if m == nil {
		return
	}
	algorithm := run.Algorithm
	if algorithm == "" {
		algorithm = "unknown"
	}
	m.runs.add(run.Duration)
	m.runDuration.WithLabelValues(algorithm).Observe(run.Duration.Seconds())

	outcome := "complete"
	switch {
	case run.Err != nil:
		atomic.AddUint64(&m.runFailures, 1)
		m.runTotal.WithLabelValues(algorithm, "error").Inc()
		return
	case run.Unassigned > 0:
		outcome = "partial"
	}
	m.runTotal.WithLabelValues(algorithm, outcome).Inc()
	m.fitness.WithLabelValues(algorithm).Set(float64(run.Fitness))
	m.utilization.WithLabelValues(algorithm).Set(run.Utilization)
	m.unassigned.WithLabelValues(algorithm).Add(float64(run.Unassigned))
	m.placeholders.Add(float64(run.Placeholders))
	atomic.StoreInt64(&m.lastFitness, int64(run.Fitness))
	atomic.StoreUint64(&m.lastUtilization, math.Float64bits(run.Utilization))
}

// JobQueued counts an asynchronous generation entering the backlog.
func (m *MetricsService) JobQueued() {
	if m != nil {
		m.jobsInFlight.Inc()
	}
}

// JobFinished releases a backlog slot once a job settles.
func (m *MetricsService) JobFinished() {
	if m != nil {
		m.jobsInFlight.Dec()
	}
}

// Snapshot returns the running totals for the summary endpoint.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{}
	}
	requests, requestMs := m.requests.load()
	queries, queryMs := m.queries.load()
	runs, runMs := m.runs.load()
	ratio, _ := m.hitRatio()

	return models.SystemMetrics{
		CacheHitRatio:             ratio,
		CacheHits:                 atomic.LoadUint64(&m.cacheHits),
		CacheMisses:               atomic.LoadUint64(&m.cacheMisses),
		RequestsTotal:             requests,
		AverageRequestDurationMs:  requestMs,
		DBQueryCount:              queries,
		AverageDBQueryDurationMs:  queryMs,
		SchedulerRuns:             runs,
		SchedulerFailures:         atomic.LoadUint64(&m.runFailures),
		AverageSchedulerRunMs:     runMs,
		LastFitness:               int(atomic.LoadInt64(&m.lastFitness)),
		LastUtilizationPercentage: math.Float64frombits(atomic.LoadUint64(&m.lastUtilization)),
		Goroutines:                runtime.NumGoroutine(),
		GeneratedAt:               time.Now().UTC(),
	}
}
