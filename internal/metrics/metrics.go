// Package metrics instruments the window loop with Prometheus collectors
// registered on a private registry.
package metrics

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"windowopt/internal/optimize"
	"windowopt/internal/solver"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"
)

const namespace = "windowopt"

// Metrics holds the collectors of one run.
type Metrics struct {
	registry *prometheus.Registry

	// CallsTotal counts solve calls by outcome.
	// Labels: outcome (improved, interrupted, exhausted, budget, failed)
	CallsTotal *prometheus.CounterVec

	// CallDuration measures how long each solve call waited.
	// Labels: outcome
	CallDuration *prometheus.HistogramVec

	// WindowBound is the accepted bound per window.
	// Labels: window
	WindowBound *prometheus.GaugeVec

	// SearchNodes is the number of search nodes the solver expanded.
	SearchNodes prometheus.Gauge

	// SolverModels is the number of models the solver produced.
	SolverModels prometheus.Gauge
}

var _ optimize.Recorder = (*Metrics)(nil)

// New creates the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		CallsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "optimizer",
			Name:      "calls_total",
			Help:      "Solve calls by outcome",
		}, []string{"outcome"}),
		CallDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "optimizer",
			Name:      "call_duration_seconds",
			Help:      "Time spent waiting on a solve call",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10), // 1ms to ~4.4min
		}, []string{"outcome"}),
		WindowBound: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "window",
			Name:      "bound",
			Help:      "Accepted completion time per window",
		}, []string{"window"}),
		SearchNodes: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "solver",
			Name:      "search_nodes",
			Help:      "Search nodes expanded by the solver",
		}),
		SolverModels: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "solver",
			Name:      "models",
			Help:      "Models produced by the solver",
		}),
	}
}

// ObserveCall implements optimize.Recorder.
func (m *Metrics) ObserveCall(_ int, outcome optimize.Outcome, elapsed time.Duration) {
	m.CallsTotal.WithLabelValues(outcome.String()).Inc()
	if outcome != optimize.OutcomeBudget {
		m.CallDuration.WithLabelValues(outcome.String()).Observe(elapsed.Seconds())
	}
}

// SetWindowBound records the accepted bound of a window.
func (m *Metrics) SetWindowBound(window int, bound int64) {
	m.WindowBound.WithLabelValues(strconv.Itoa(window)).Set(float64(bound))
}

// SetSolverStats copies solver statistics into gauges.
func (m *Metrics) SetSolverStats(st solver.Stats) {
	m.SearchNodes.Set(float64(st.Nodes))
	m.SolverModels.Set(float64(st.Models))
}

// Registry exposes the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteText writes every metric in the Prometheus text exposition format.
func (m *Metrics) WriteText(w io.Writer) error {
	families, err := m.registry.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("encode %s: %w", mf.GetName(), err)
		}
	}
	return nil
}
