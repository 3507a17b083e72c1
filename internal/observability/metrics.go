package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Reload attempt outcomes recorded by Metrics.ReloadAttempt.
const (
	OutcomeVerified  = "verified"
	OutcomeTimeout   = "timeout"
	OutcomeStorage   = "storage_error"
	OutcomeTransport = "transport_error"
	OutcomeCanceled  = "canceled"
)

// Metrics tracks the agent's own operational counters. They are registered
// on a private registry so tests can construct as many instances as they
// like without collisions.
type Metrics struct {
	// ReloadAttempts counts write-and-reload attempts by outcome.
	ReloadAttempts *prometheus.CounterVec

	// ReloadDuration measures end-to-end write-and-reload latency in
	// seconds, including the polling phase.
	ReloadDuration prometheus.Histogram

	// PollIterations counts status poll ticks across all reload attempts.
	PollIterations prometheus.Counter

	registry *prometheus.Registry
}

// NewMetrics creates and registers the agent metric set.
func NewMetrics() *Metrics {
	m := &Metrics{
		ReloadAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "faucetagent_reload_attempts_total",
			Help: "Configuration write-and-reload attempts by outcome.",
		}, []string{"outcome"}),
		ReloadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "faucetagent_reload_duration_seconds",
			Help:    "End-to-end latency of write-and-reload attempts.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}),
		PollIterations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "faucetagent_status_polls_total",
			Help: "Controller status polls performed while awaiting reloads.",
		}),
		registry: prometheus.NewRegistry(),
	}
	m.registry.MustRegister(
		m.ReloadAttempts,
		m.ReloadDuration,
		m.PollIterations,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the agent's own metrics in exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
