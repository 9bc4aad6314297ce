// Package metrics exposes sync cycle counters in Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Cycle results used as the "result" label.
const (
	ResultEmpty     = "empty"
	ResultUpdated   = "updated"
	ResultError     = "error"
	ResultCoalesced = "coalesced"
)

// Metrics collects sync agent metrics on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	// Cycles counts sync cycles. Labels: result (empty|updated|error|coalesced)
	Cycles *prometheus.CounterVec

	// Files counts handled files. Labels: status (written|skipped|failed)
	Files *prometheus.CounterVec

	// CycleDuration measures full cycle latency in seconds.
	CycleDuration prometheus.Histogram

	// LastSuccess is the unix time of the last cycle that reached the server.
	LastSuccess prometheus.Gauge
}

// New creates and registers all metrics on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Cycles: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plugsync_cycles_total",
				Help: "Total number of sync cycles by result",
			},
			[]string{"result"},
		),
		Files: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plugsync_files_total",
				Help: "Total number of changed files handled by status",
			},
			[]string{"status"},
		),
		CycleDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "plugsync_cycle_duration_seconds",
				Help:    "Duration of sync cycles in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
			},
		),
		LastSuccess: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "plugsync_last_success_timestamp_seconds",
				Help: "Unix time of the last cycle that reached the server",
			},
		),
	}
}

// ObserveCycle records one finished cycle.
func (m *Metrics) ObserveCycle(result string, d time.Duration, at time.Time) {
	if m == nil {
		return
	}
	m.Cycles.WithLabelValues(result).Inc()
	if result == ResultCoalesced {
		return
	}
	m.CycleDuration.Observe(d.Seconds())
	if result != ResultError {
		m.LastSuccess.Set(float64(at.Unix()))
	}
}

// ObserveFile records one handled file.
func (m *Metrics) ObserveFile(status string) {
	if m == nil {
		return
	}
	m.Files.WithLabelValues(status).Inc()
}

// Handler serves the registry at /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
