package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for wind-speed lookups.
type Metrics struct {
	Lookups        *prometheus.CounterVec // labels: outcome={success,failure}
	LookupDuration prometheus.Histogram
	StepFailures   *prometheus.CounterVec // labels: step, fatal={true,false}
	ActiveSessions prometheus.Gauge
}

func newMetrics() *Metrics {
	return &Metrics{
		Lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wind_speed",
			Name:      "lookups_total",
			Help:      "Wind-speed lookups by outcome.",
		}, []string{"outcome"}),
		LookupDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "wind_speed",
			Name:      "lookup_duration_seconds",
			Help:      "Duration of a complete lookup, launch to teardown.",
			Buckets:   []float64{1, 2.5, 5, 10, 20, 30, 45, 60, 90, 120},
		}),
		StepFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wind_speed",
			Name:      "step_failures_total",
			Help:      "Failed pipeline steps by step name and whether the failure ended the lookup.",
		}, []string{"step", "fatal"}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "wind_speed",
			Name:      "browser_sessions_active",
			Help:      "Browser sessions currently launched and not yet released.",
		}),
	}
}

// NewMetrics creates and registers all lookup metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.Lookups, m.LookupDuration, m.StepFailures, m.ActiveSessions)
	return m
}

// NewMetricsForTesting creates Metrics that are not registered anywhere, so
// tests can build as many as they like.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
