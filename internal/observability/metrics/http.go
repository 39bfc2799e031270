package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTPServerMetrics is the per-process registry for the API service:
// generic HTTP counters plus the retrieval pipeline's own series.
type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	searchesTotal    *prometheus.CounterVec
	searchDuration   *prometheus.HistogramVec
	resultChunks     *prometheus.HistogramVec
	stageDuration    *prometheus.HistogramVec
	degradedTotal    *prometheus.CounterVec
	rateLimitedTotal *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "krs",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "krs",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "krs",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	searchesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "krs",
			Subsystem: "retrieval",
			Name:      "searches_total",
			Help:      "Total completed searches by strategy and intent.",
		},
		[]string{"service", "strategy", "intent"},
	)
	searchDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "krs",
			Subsystem: "retrieval",
			Name:      "search_duration_seconds",
			Help:      "End-to-end search duration in seconds by strategy.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "strategy"},
	)
	resultChunks := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "krs",
			Subsystem: "retrieval",
			Name:      "result_chunks",
			Help:      "Distribution of returned chunks per search.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"service", "strategy"},
	)
	stageDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "krs",
			Subsystem: "retrieval",
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage duration in seconds.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"service", "stage"},
	)
	degradedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "krs",
			Subsystem: "retrieval",
			Name:      "degraded_total",
			Help:      "Total searches that completed on a degraded path.",
		},
		[]string{"service", "reason"},
	)
	rateLimitedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "krs",
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Total requests rejected by the per-key rate limiter.",
		},
		[]string{"service"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		searchesTotal,
		searchDuration,
		resultChunks,
		stageDuration,
		degradedTotal,
		rateLimitedTotal,
	)

	return &HTTPServerMetrics{
		registry:         registry,
		requestTotal:     requestTotal,
		requestDuration:  requestDuration,
		requestInFlight:  requestInFlight,
		searchesTotal:    searchesTotal,
		searchDuration:   searchDuration,
		resultChunks:     resultChunks,
		stageDuration:    stageDuration,
		degradedTotal:    degradedTotal,
		rateLimitedTotal: rateLimitedTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := r.URL.Path
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// RecordSearch observes one completed search.
func (m *HTTPServerMetrics) RecordSearch(service, strategy, intent string, chunkCount int, duration time.Duration) {
	if strategy == "" {
		strategy = "unknown"
	}
	if intent == "" {
		intent = "unknown"
	}
	m.searchesTotal.WithLabelValues(service, strategy, intent).Inc()
	m.searchDuration.WithLabelValues(service, strategy).Observe(duration.Seconds())
	m.resultChunks.WithLabelValues(service, strategy).Observe(float64(chunkCount))
}

// RecordStage observes one pipeline stage timing.
func (m *HTTPServerMetrics) RecordStage(service, stage string, duration time.Duration) {
	m.stageDuration.WithLabelValues(service, stage).Observe(duration.Seconds())
}

// RecordDegraded counts a search that completed on a degraded path;
// reason is the failed path or skipped stage.
func (m *HTTPServerMetrics) RecordDegraded(service, reason string) {
	if reason == "" {
		reason = "unknown"
	}
	m.degradedTotal.WithLabelValues(service, reason).Inc()
}

func (m *HTTPServerMetrics) RecordRateLimited(service string) {
	m.rateLimitedTotal.WithLabelValues(service).Inc()
}
