// Package metrics exposes Prometheus instrumentation for the donation
// coordinator. A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	Outcomes      *prometheus.CounterVec
	TxDuration    *prometheus.HistogramVec
	UnitsMoved    *prometheus.CounterVec
	GateWaitTotal prometheus.Counter
}

// New registers the coordinator metrics with reg. Pass
// prometheus.DefaultRegisterer in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Outcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bloodbank_coordinator_outcomes_total",
			Help: "Coordinator operations by operation and result code",
		}, []string{"op", "code"}),
		TxDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bloodbank_coordinator_tx_duration_seconds",
			Help:    "Duration of coordinator transactions including lock waits",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"op"}),
		UnitsMoved: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bloodbank_units_moved_total",
			Help: "Inventory quantity moved by committed operations",
		}, []string{"op", "kind"}),
		GateWaitTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "bloodbank_gate_timeouts_total",
			Help: "Unit gate acquisitions that timed out",
		}),
	}
}

// ObserveOutcome records one finished operation. code is "OK" on success.
func (m *Metrics) ObserveOutcome(op, code string, start time.Time) {
	if m == nil {
		return
	}
	m.Outcomes.WithLabelValues(op, code).Inc()
	m.TxDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (m *Metrics) AddUnitsMoved(op, kind string, quantity int) {
	if m == nil {
		return
	}
	m.UnitsMoved.WithLabelValues(op, kind).Add(float64(quantity))
}

func (m *Metrics) IncGateTimeout() {
	if m == nil {
		return
	}
	m.GateWaitTotal.Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(g prometheus.Gatherer) echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
}
