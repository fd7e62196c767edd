package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation.
type MetricsService struct {
	registry         *prometheus.Registry
	handler          http.Handler
	requestDuration  *prometheus.HistogramVec
	requestTotal     *prometheus.CounterVec
	cacheLatency     prometheus.Observer
	cacheWrite       prometheus.Observer
	cacheHits        prometheus.Counter
	cacheMisses      prometheus.Counter
	upstreamDuration *prometheus.HistogramVec
	parseFailures    prometheus.Counter
	planCoverage     prometheus.Histogram
	planShortfall    prometheus.Counter
	slotOutcomes     *prometheus.CounterVec
	extractions      *prometheus.CounterVec
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	upstreamDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "portal_request_duration_seconds",
		Help:    "Duration of booking portal calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "status"})

	parseFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "schedule_parse_failures_total",
		Help: "Schedule pages that could not be parsed",
	})

	planCoverage := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "booking_plan_coverage_ratio",
		Help:    "Covered hours divided by requested hours per plan",
		Buckets: []float64{0, 0.25, 0.5, 0.75, 0.99, 1},
	})

	planShortfall := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "booking_plan_shortfall_total",
		Help: "Plans that could not cover every requested hour",
	})

	slotOutcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "booking_slot_submissions_total",
		Help: "Submitted booking slots by outcome",
	}, []string{"status"})

	extractions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "booking_extractions_total",
		Help: "Natural language extraction attempts by result",
	}, []string{"result"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHits, cacheMisses,
		upstreamDuration, parseFailures, planCoverage, planShortfall, slotOutcomes, extractions, goroutines)

	return &MetricsService{
		registry:         registry,
		handler:          promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:  requestDuration,
		requestTotal:     requestTotal,
		cacheLatency:     cacheLatency,
		cacheWrite:       cacheWrite,
		cacheHits:        cacheHits,
		cacheMisses:      cacheMisses,
		upstreamDuration: upstreamDuration,
		parseFailures:    parseFailures,
		planCoverage:     planCoverage,
		planShortfall:    planShortfall,
		slotOutcomes:     slotOutcomes,
		extractions:      extractions,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registry exposes the underlying registry for tests and custom collectors.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records cache hit/miss metrics.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		return
	}
	m.cacheMisses.Inc()
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveUpstream records a booking portal call.
func (m *MetricsService) ObserveUpstream(operation string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.upstreamDuration.WithLabelValues(operation, fmt.Sprintf("%d", status)).Observe(duration.Seconds())
}

// RecordParseFailure counts a schedule page that failed to parse.
func (m *MetricsService) RecordParseFailure() {
	if m == nil {
		return
	}
	m.parseFailures.Inc()
}

// ObservePlan records how much of a request a plan covers.
func (m *MetricsService) ObservePlan(requested, covered int) {
	if m == nil || requested <= 0 {
		return
	}
	m.planCoverage.Observe(float64(covered) / float64(requested))
	if covered < requested {
		m.planShortfall.Inc()
	}
}

// RecordSlotOutcome counts one slot submission result.
func (m *MetricsService) RecordSlotOutcome(status string) {
	if m == nil {
		return
	}
	m.slotOutcomes.WithLabelValues(status).Inc()
}

// RecordExtraction counts one extraction attempt result.
func (m *MetricsService) RecordExtraction(result string) {
	if m == nil {
		return
	}
	m.extractions.WithLabelValues(result).Inc()
}
