package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	WebhookUpdates   *prometheus.CounterVec
	Intents          *prometheus.CounterVec
	ProviderErrors   *prometheus.CounterVec
	OutboundMessages *prometheus.CounterVec
	OutboundChunks   *prometheus.CounterVec
	NotifyResults    *prometheus.CounterVec
	AILatency        prometheus.Histogram
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		WebhookUpdates: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_updates_total",
			Help:      "Inbound webhook updates by outcome.",
		}, []string{"outcome"}),
		Intents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "intents_total",
			Help:      "Classified inbound intents by kind.",
		}, []string{"kind"}),
		ProviderErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_errors_total",
			Help:      "Provider errors by provider and code.",
		}, []string{"provider", "code"}),
		OutboundMessages: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbound_messages_total",
			Help:      "Outbound messages by kind and status.",
		}, []string{"kind", "status"}),
		OutboundChunks: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbound_chunks_total",
			Help:      "Outbound text chunks by delivery mode.",
		}, []string{"mode"}),
		NotifyResults: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "daily_notify_results_total",
			Help:      "Daily weather notification results.",
		}, []string{"result"}),
		AILatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ai_latency_ms",
			Help:      "Latency of AI inference calls in milliseconds.",
			Buckets:   []float64{250, 500, 1000, 2500, 5000, 10000, 20000, 45000},
		}),
	}
}

func (m *Metrics) ObserveAILatency(d time.Duration) {
	m.AILatency.Observe(float64(d.Milliseconds()))
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
