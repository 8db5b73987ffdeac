// Package metrics exposes Prometheus counters and histograms for the HTTP
// API, the gRPC service and model calls, on a registry owned by the server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dmitrijs2005/failseed/internal/server/llm"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "failseed"

type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	generations     *prometheus.CounterVec
	generationTime  *prometheus.HistogramVec
	conversations   *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Requests handled, by transport, route and status.",
		}, []string{"transport", "route", "status"}),
		requestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Request latency by transport and route.",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"transport", "route"}),
		generations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_generations_total",
			Help:      "Model calls by provider, kind and outcome.",
		}, []string{"provider", "kind", "outcome"}),
		generationTime: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_generation_duration_seconds",
			Help:      "Model call latency by provider and kind.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 9),
		}, []string{"provider", "kind"}),
		conversations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversation_events_total",
			Help:      "Conversation lifecycle events (started, continued, finalized, safety).",
		}, []string{"event"}),
	}
}

// ObserveGeneration implements llm.Observer.
func (m *Metrics) ObserveGeneration(provider string, kind llm.Kind, outcome string, elapsed time.Duration) {
	m.generations.WithLabelValues(provider, string(kind), outcome).Inc()
	m.generationTime.WithLabelValues(provider, string(kind)).Observe(elapsed.Seconds())
}

// ObserveRequest records one finished request. status is an HTTP status code
// or a gRPC code name.
func (m *Metrics) ObserveRequest(transport, route, status string, elapsed time.Duration) {
	m.requests.WithLabelValues(transport, route, status).Inc()
	m.requestDuration.WithLabelValues(transport, route).Observe(elapsed.Seconds())
}

// ObserveHTTP is ObserveRequest for a numeric HTTP status.
func (m *Metrics) ObserveHTTP(route string, status int, elapsed time.Duration) {
	m.ObserveRequest("http", route, strconv.Itoa(status), elapsed)
}

// ConversationEvent counts a lifecycle event.
func (m *Metrics) ConversationEvent(event string) {
	m.conversations.WithLabelValues(event).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

var _ llm.Observer = (*Metrics)(nil)
