// Package metrics exposes Prometheus instrumentation for the scheduler:
// cycle and overrun counters, alert counts by template, the last cycle
// duration, and the alive gauge, all served on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the counters/gauges the Scheduler updates once per cycle.
type Metrics struct {
	CyclesTotal       prometheus.Counter
	OverrunsTotal     prometheus.Counter
	NearOverrunsTotal prometheus.Counter
	AlertsTotal       *prometheus.CounterVec
	LastCycleDuration prometheus.Gauge
	Alive             prometheus.Gauge
}

// New registers and returns a fresh metric set against reg. Passing a
// dedicated registry (rather than the global default) keeps repeated test
// construction from panicking on duplicate registration.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CyclesTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "geofence_monitor_cycles_total",
			Help: "Total number of completed probe cycles.",
		}),
		OverrunsTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "geofence_monitor_overruns_total",
			Help: "Total number of cycles that overran the poll period.",
		}),
		NearOverrunsTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "geofence_monitor_near_overruns_total",
			Help: "Total number of cycles that nearly overran the poll period.",
		}),
		AlertsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "geofence_monitor_alerts_total",
			Help: "Total number of alerts dispatched, by template id.",
		}, []string{"template"}),
		LastCycleDuration: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "geofence_monitor_last_cycle_duration_seconds",
			Help: "Wall-clock duration of the most recently completed cycle.",
		}),
		Alive: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "geofence_monitor_alive",
			Help: "1 if the scheduler is actively polling, 0 if silenced.",
		}),
	}
	return m
}
