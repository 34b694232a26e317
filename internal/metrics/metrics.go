// Package metrics exposes daemon request counters on a private Prometheus
// registry, served over the debug listener's /metrics endpoint.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "socksd"

// Set bundles the daemon's collectors. All metrics live on a private registry
// so tests and embedders never collide with the global default.
type Set struct {
	registry *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	RequestDuration prometheus.Histogram
	InFlight        prometheus.Gauge
	RateLimited     prometheus.Counter
}

// New constructs and registers the daemon collector set.
func New() *Set {
	set := &Set{
		registry: prometheus.NewRegistry(),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Handled requests by command and outcome.",
		}, []string{"command", "outcome"}),
		RequestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Time from decode to reply per request.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "requests_in_flight",
			Help:      "Requests currently being handled.",
		}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_rate_limited_total",
			Help:      "Requests rejected by the per-client rate limiter.",
		}),
	}

	set.registry.MustRegister(
		set.RequestsTotal,
		set.RequestDuration,
		set.InFlight,
		set.RateLimited,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return set
}

// ObserveRequest records one handled request.
func (s *Set) ObserveRequest(command string, success bool, elapsed time.Duration) {
	outcome := "ok"
	if !success {
		outcome = "error"
	}
	s.RequestsTotal.WithLabelValues(command, outcome).Inc()
	s.RequestDuration.Observe(elapsed.Seconds())
}

// Handler serves the registry in Prometheus exposition format.
func (s *Set) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}
