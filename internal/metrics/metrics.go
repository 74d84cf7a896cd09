package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for rounds and agents.
type Metrics struct {
	registry *prometheus.Registry

	RoundsTotal    *prometheus.CounterVec
	RoundDuration  prometheus.Histogram
	RoundsInFlight prometheus.Gauge

	AgentResultsTotal *prometheus.CounterVec
	AgentDuration     *prometheus.HistogramVec
}

// NewMetrics creates and registers all collectors on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		RoundsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crew_rounds_total",
				Help: "Total number of rounds by report status",
			},
			[]string{"status"},
		),
		RoundDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "crew_round_duration_seconds",
				Help:    "Wall time of a round from dispatch to report",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
		),
		RoundsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "crew_rounds_in_flight",
				Help: "Rounds currently dispatching",
			},
		),

		AgentResultsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crew_agent_results_total",
				Help: "Agent results by terminal status",
			},
			[]string{"agent", "status"},
		),
		AgentDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crew_agent_duration_seconds",
				Help:    "Duration of agent invocations in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"agent"},
		),
	}

	m.registry.MustRegister(
		m.RoundsTotal,
		m.RoundDuration,
		m.RoundsInFlight,
		m.AgentResultsTotal,
		m.AgentDuration,
	)
	return m
}

// ObserveResult records one agent's terminal result.
func (m *Metrics) ObserveResult(agent, status string, d time.Duration) {
	m.AgentResultsTotal.WithLabelValues(agent, status).Inc()
	m.AgentDuration.WithLabelValues(agent).Observe(d.Seconds())
}

// RoundStarted marks a round as dispatching.
func (m *Metrics) RoundStarted() { m.RoundsInFlight.Inc() }

// ObserveRound records a finished round.
func (m *Metrics) ObserveRound(status string, d time.Duration) {
	m.RoundsInFlight.Dec()
	m.RoundsTotal.WithLabelValues(status).Inc()
	m.RoundDuration.Observe(d.Seconds())
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
