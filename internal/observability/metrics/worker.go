package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// WorkerMetrics covers the learning worker consuming query feedback
// events off the queue.
type WorkerMetrics struct {
	registry *prometheus.Registry

	feedbackTotal    *prometheus.CounterVec
	feedbackDuration *prometheus.HistogramVec
	feedbackInFlight prometheus.Gauge
	eventLag         *prometheus.HistogramVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	feedbackTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "krs",
			Subsystem: "worker",
			Name:      "feedback_events_total",
			Help:      "Total processed feedback events by status.",
		},
		[]string{"service", "status"},
	)
	feedbackDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "krs",
			Subsystem: "worker",
			Name:      "feedback_process_duration_seconds",
			Help:      "Feedback event processing duration in seconds by status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)
	feedbackInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "krs",
			Subsystem: "worker",
			Name:      "feedback_in_flight",
			Help:      "Number of in-flight feedback events.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	eventLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "krs",
			Subsystem: "worker",
			Name:      "event_lag_seconds",
			Help:      "Delay between query completion and feedback processing.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"service"},
	)

	registry.MustRegister(feedbackTotal, feedbackDuration, feedbackInFlight, eventLag)

	return &WorkerMetrics{
		registry:         registry,
		feedbackTotal:    feedbackTotal,
		feedbackDuration: feedbackDuration,
		feedbackInFlight: feedbackInFlight,
		eventLag:         eventLag,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartEvent() {
	m.feedbackInFlight.Inc()
}

func (m *WorkerMetrics) FinishEvent(service string, duration time.Duration, err error) {
	m.feedbackInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.feedbackTotal.WithLabelValues(service, status).Inc()
	m.feedbackDuration.WithLabelValues(service, status).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObserveEventLag(service string, lag time.Duration) {
	if lag < 0 {
		return
	}
	m.eventLag.WithLabelValues(service).Observe(lag.Seconds())
}
