package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	processTotal    *prometheus.CounterVec
	processDuration *prometheus.HistogramVec
	processInFlight prometheus.Gauge
	queueRetries    *prometheus.CounterVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	processTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "afv",
			Subsystem: "worker",
			Name:      "task_process_total",
			Help:      "Total processed tasks by pipeline and status.",
		},
		[]string{"pipeline", "status"},
	)
	processDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "afv",
			Subsystem: "worker",
			Name:      "task_process_duration_seconds",
			Help:      "Task processing duration in seconds by pipeline and status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"pipeline", "status"},
	)
	processInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "afv",
			Subsystem: "worker",
			Name:      "task_process_in_flight",
			Help:      "Number of in-flight tasks.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	queueRetries := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "afv",
			Subsystem: "worker",
			Name:      "task_retry_total",
			Help:      "Total task redeliveries scheduled after handler failures.",
		},
		[]string{"pipeline"},
	)

	registry.MustRegister(processTotal, processDuration, processInFlight, queueRetries)

	return &WorkerMetrics{
		registry:        registry,
		processTotal:    processTotal,
		processDuration: processDuration,
		processInFlight: processInFlight,
		queueRetries:    queueRetries,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartTask() {
	m.processInFlight.Inc()
}

func (m *WorkerMetrics) FinishTask(pipeline string, duration time.Duration, err error) {
	m.processInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.processTotal.WithLabelValues(pipeline, status).Inc()
	m.processDuration.WithLabelValues(pipeline, status).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObserveRetry(pipeline string) {
	m.queueRetries.WithLabelValues(pipeline).Inc()
}
