// Package metrics defines the Prometheus collectors for the engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the engine's collectors. A nil *Metrics is valid and
// records nothing, so instrumentation stays optional.
type Metrics struct {
	TurnsTotal     *prometheus.CounterVec
	TurnDuration   prometheus.Histogram
	CommandsTotal  *prometheus.CounterVec
	FlowsStarted   prometheus.Counter
	FlowsCompleted prometheus.Counter
	FlowsCancelled prometheus.Counter
}

// Turn outcome labels.
const (
	OutcomeSuspended = "suspended"
	OutcomeIdle      = "idle"
	OutcomeError     = "error"
)

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TurnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "soni_turns_total",
			Help: "Processed turns by outcome.",
		}, []string{"outcome"}),
		TurnDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "soni_turn_duration_seconds",
			Help:    "Wall time spent processing a turn.",
			Buckets: prometheus.DefBuckets,
		}),
		CommandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "soni_commands_total",
			Help: "Commands consumed by the engine, by command name.",
		}, []string{"command"}),
		FlowsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "soni_flows_started_total",
			Help: "Flow instances pushed onto a stack.",
		}),
		FlowsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "soni_flows_completed_total",
			Help: "Flow instances popped with a completed outcome.",
		}),
		FlowsCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "soni_flows_cancelled_total",
			Help: "Flow instances popped with a cancelled outcome.",
		}),
	}
	reg.MustRegister(
		m.TurnsTotal, m.TurnDuration, m.CommandsTotal,
		m.FlowsStarted, m.FlowsCompleted, m.FlowsCancelled,
	)
	return m
}

// ObserveTurn records one turn outcome and its duration.
func (m *Metrics) ObserveTurn(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.TurnsTotal.WithLabelValues(outcome).Inc()
	m.TurnDuration.Observe(seconds)
}

// ObserveCommand counts one consumed command.
func (m *Metrics) ObserveCommand(name string) {
	if m == nil {
		return
	}
	m.CommandsTotal.WithLabelValues(name).Inc()
}

// FlowStarted increments the started counter.
func (m *Metrics) FlowStarted() {
	if m == nil {
		return
	}
	m.FlowsStarted.Inc()
}

// FlowEnded increments the counter matching the pop outcome.
func (m *Metrics) FlowEnded(cancelled bool) {
	if m == nil {
		return
	}
	if cancelled {
		m.FlowsCancelled.Inc()
		return
	}
	m.FlowsCompleted.Inc()
}
