// Package metrics exposes Prometheus collectors for the save pipeline and the
// storage guard.
package metrics

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ehrcore"

// Metrics holds the collectors registered on a single registry.
type Metrics struct {
	registry *prometheus.Registry

	Saves        *prometheus.CounterVec
	SaveDuration *prometheus.HistogramVec
	BreakerState *prometheus.GaugeVec
}

// New creates the collectors and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Saves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entity_saves_total",
			Help:      "Save pipeline invocations by entity kind, operation and outcome.",
		}, []string{"kind", "op", "outcome"}),
		SaveDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "entity_save_duration_seconds",
			Help:      "Save pipeline latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind", "op"}),
		BreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "storage_breaker_state",
			Help:      "Storage circuit breaker state (0 closed, 1 half-open, 2 open).",
		}, []string{"name"}),
	}
	m.registry.MustRegister(m.Saves, m.SaveDuration, m.BreakerState)
	return m
}

// ObserveSave records one pipeline run. Safe on a nil receiver.
func (m *Metrics) ObserveSave(kind, op, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Saves.WithLabelValues(kind, op, outcome).Inc()
	m.SaveDuration.WithLabelValues(kind, op).Observe(elapsed.Seconds())
}

// SetBreakerState records the breaker state for name. Safe on a nil receiver.
func (m *Metrics) SetBreakerState(name string, state float64) {
	if m == nil {
		return
	}
	m.BreakerState.WithLabelValues(name).Set(state)
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}
