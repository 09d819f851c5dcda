package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry owns the service's Prometheus collectors. Each process (or test)
// constructs its own registry so counters never leak between instances.
type Registry struct {
	reg             *prometheus.Registry
	httpRequests    *prometheus.CounterVec
	webhookRequests *prometheus.CounterVec
	requestLatency  *prometheus.HistogramVec
}

func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"path", "status"}),
		webhookRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "webhook_requests_total",
			Help: "Total number of webhook requests by outcome",
		}, []string{"result"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_latency_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		}, []string{"path", "method"}),
	}
	r.reg.MustRegister(r.httpRequests, r.webhookRequests, r.requestLatency)
	return r
}

// RecordHTTPRequest counts a finished request and observes its latency.
func (r *Registry) RecordHTTPRequest(path, method string, status int, latency time.Duration) {
	r.httpRequests.WithLabelValues(path, strconv.Itoa(status)).Inc()
	r.requestLatency.WithLabelValues(path, method).Observe(latency.Seconds())
}

// RecordWebhookResult counts a webhook outcome classification
// (created, duplicate, invalid_signature, validation_error).
func (r *Registry) RecordWebhookResult(result string) {
	r.webhookRequests.WithLabelValues(result).Inc()
}

// Handler serves the registry in Prometheus text exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// Gather exposes the underlying registry for tests that assert on counters.
func (r *Registry) Gather() prometheus.Gatherer {
	return r.reg
}
