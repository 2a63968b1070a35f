// Package metrics holds the prometheus collectors shared by the bucket,
// sweeper and HTTP layers. A nil *Metrics is valid and records nothing.
package metrics

import (
	"errors"
	"time"

	"github.com/agenthands/amane/pkg/core"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "amane"

// Outcome labels.
const (
	OutcomeOK       = "ok"
	OutcomeNotFound = "not_found"
	OutcomeInvalid  = "invalid"
	OutcomeError    = "error"
)

type Metrics struct {
	operations      *prometheus.CounterVec
	skippedSidecars prometheus.Counter

	sweepRuns       prometheus.Counter
	sweepOrphanMeta prometheus.Gauge
	sweepOrphanData prometheus.Gauge
	sweepCorrupt    prometheus.Gauge
	sweepRemoved    prometheus.Counter

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New registers every collector on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		operations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bucket",
			Name:      "operations_total",
			Help:      "Bucket operations by operation and outcome",
		}, []string{"op", "outcome"}),
		skippedSidecars: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bucket",
			Name:      "list_skipped_sidecars_total",
			Help:      "Sidecars dropped from listings because they could not be read or decoded",
		}),
		sweepRuns: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "runs_total",
			Help:      "Completed consistency sweeps",
		}),
		sweepOrphanMeta: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "orphan_sidecars",
			Help:      "Sidecars without a payload found by the last sweep",
		}),
		sweepOrphanData: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "orphan_payloads",
			Help:      "Payloads without a sidecar found by the last sweep",
		}),
		sweepCorrupt: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "corrupt_sidecars",
			Help:      "Undecodable sidecars found by the last sweep",
		}),
		sweepRemoved: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "removed_total",
			Help:      "Orphan sidecars removed by sweeps",
		}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		}, []string{"method", "route"}),
	}
}

// Outcome classifies an operation error into a label value.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, core.ErrNotFound):
		return OutcomeNotFound
	case errors.Is(err, core.ErrInvalidInput):
		return OutcomeInvalid
	default:
		return OutcomeError
	}
}

func (m *Metrics) ObserveOp(op string, err error) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(op, Outcome(err)).Inc()
}

func (m *Metrics) AddSkippedSidecars(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.skippedSidecars.Add(float64(n))
}

func (m *Metrics) ObserveSweep(orphanSidecars, orphanPayloads, corrupt, removed int) {
	if m == nil {
		return
	}
	m.sweepRuns.Inc()
	m.sweepOrphanMeta.Set(float64(orphanSidecars))
	m.sweepOrphanData.Set(float64(orphanPayloads))
	m.sweepCorrupt.Set(float64(corrupt))
	m.sweepRemoved.Add(float64(removed))
}

func (m *Metrics) ObserveRequest(method, route, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, status).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
