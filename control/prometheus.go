// control/prometheus.go
// Author: momentics <momentics@gmail.com>
//
// Prometheus collectors for pool dispatches, labelled by pool id.

package control

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the collectors shared by every pool registered against the
// same Registerer.
type Metrics struct {
	DispatchesTotal  *prometheus.CounterVec
	ElementsTotal    *prometheus.CounterVec
	ClaimsTotal      *prometheus.CounterVec
	PanicsTotal      *prometheus.CounterVec
	RejectedTotal    *prometheus.CounterVec
	Workers          *prometheus.GaugeVec
	DispatchDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers the collectors. A nil registerer uses
// prometheus.DefaultRegisterer.
func NewMetrics(namespace string, registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "parfor"
	}
	f := promauto.With(registerer)
	return &Metrics{
		DispatchesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatches_total",
			Help:      "Total number of completed dispatches",
		}, []string{"pool"}),
		ElementsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "elements_total",
			Help:      "Total number of elements processed by dispatches",
		}, []string{"pool"}),
		ClaimsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "claims_total",
			Help:      "Total number of batches claimed by workers",
		}, []string{"pool"}),
		PanicsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "callback_panics_total",
			Help:      "Total number of dispatches aborted by a panicking callback",
		}, []string{"pool"}),
		RejectedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejected_total",
			Help:      "Dispatches refused before reaching the workers",
		}, []string{"pool", "reason"}),
		Workers: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "workers",
			Help:      "Current number of worker threads",
		}, []string{"pool"}),
		DispatchDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_duration_seconds",
			Help:      "Wall time of a dispatch from start barrier to end barrier",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 12),
		}, []string{"pool"}),
	}
}

// PoolMetrics is Metrics curried with one pool id.
type PoolMetrics struct {
	Dispatches prometheus.Counter
	Elements   prometheus.Counter
	Claims     prometheus.Counter
	Panics     prometheus.Counter
	Workers    prometheus.Gauge
	Duration   prometheus.Observer
	rejected   *prometheus.CounterVec
	pool       string
}

// ForPool binds the collectors to a pool id.
func (m *Metrics) ForPool(id string) *PoolMetrics {
	return &PoolMetrics{
		Dispatches: m.DispatchesTotal.WithLabelValues(id),
		Elements:   m.ElementsTotal.WithLabelValues(id),
		Claims:     m.ClaimsTotal.WithLabelValues(id),
		Panics:     m.PanicsTotal.WithLabelValues(id),
		Workers:    m.Workers.WithLabelValues(id),
		Duration:   m.DispatchDuration.WithLabelValues(id),
		rejected:   m.RejectedTotal,
		pool:       id,
	}
}

// Rejected counts a refused dispatch.
func (pm *PoolMetrics) Rejected(reason string) {
	pm.rejected.WithLabelValues(pm.pool, reason).Inc()
}
