package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type GatewayMetrics struct {
	registry *prometheus.Registry

	providerRequests  *prometheus.CounterVec
	quotaRejections   *prometheus.CounterVec
	embeddingFallback prometheus.Counter
}

func NewGatewayMetrics() *GatewayMetrics {
	registry := prometheus.NewRegistry()

	providerRequests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "afv",
			Subsystem: "ai",
			Name:      "provider_requests_total",
			Help:      "Enrichment requests by provider and outcome.",
		},
		[]string{"provider", "status"},
	)
	quotaRejections := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "afv",
			Subsystem: "ai",
			Name:      "quota_rejections_total",
			Help:      "Requests diverted off the primary provider by quota reason.",
		},
		[]string{"reason"},
	)
	embeddingFallback := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "afv",
			Subsystem: "ai",
			Name:      "embedding_fallback_total",
			Help:      "Documents stored with a zero embedding after provider failures.",
		},
	)

	registry.MustRegister(providerRequests, quotaRejections, embeddingFallback)

	return &GatewayMetrics{
		registry:          registry,
		providerRequests:  providerRequests,
		quotaRejections:   quotaRejections,
		embeddingFallback: embeddingFallback,
	}
}

func (m *GatewayMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *GatewayMetrics) ObserveRequest(provider string, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.providerRequests.WithLabelValues(provider, status).Inc()
}

func (m *GatewayMetrics) ObserveQuotaRejection(reason string) {
	if m == nil || reason == "" {
		return
	}
	m.quotaRejections.WithLabelValues(reason).Inc()
}

func (m *GatewayMetrics) ObserveEmbeddingFallback() {
	if m == nil {
		return
	}
	m.embeddingFallback.Inc()
}
