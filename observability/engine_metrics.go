package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// EngineMetrics records per-action counters and latency histograms for the
// ve3 accounting engine (Coordinator-dispatched actions), registered once
// through a lazily-initialised (sync.Once) CounterVec/HistogramVec set.
type EngineMetrics struct {
	actions *prometheus.CounterVec
	denials *prometheus.CounterVec
	latency *prometheus.HistogramVec
}

var (
	engineMetricsOnce sync.Once
	engineRegistry    *EngineMetrics
)

// Engine returns the lazily-initialised ve3 engine metrics registry.
func Engine() *EngineMetrics {
	engineMetricsOnce.Do(func() {
		engineRegistry = &EngineMetrics{
			actions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "ve3",
				Subsystem: "engine",
				Name:      "actions_total",
				Help:      "Total engine actions segmented by action and outcome.",
			}, []string{"action", "outcome"}),
			denials: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "ve3",
				Subsystem: "engine",
				Name:      "capability_denials_total",
				Help:      "Total actions rejected for lacking a required capability, segmented by role.",
			}, []string{"role"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "ve3",
				Subsystem: "engine",
				Name:      "action_duration_seconds",
				Help:      "Latency distribution for engine actions.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"action"}),
		}
		prometheus.MustRegister(engineRegistry.actions, engineRegistry.denials, engineRegistry.latency)
	})
	return engineRegistry
}

// ObserveAction records the outcome of a dispatched engine action: one of
// stake/unstake/create_lock/set_votes/set_distribution/distribute_take/
// claim_rewards/claim_rewards_batch, matching the Coordinator's dispatch
// surface.
func (m *EngineMetrics) ObserveAction(action, outcome string, seconds float64) {
	m.actions.WithLabelValues(action, outcome).Inc()
	m.latency.WithLabelValues(action).Observe(seconds)
}

// ObserveCapabilityDenial records a rejected privileged action.
func (m *EngineMetrics) ObserveCapabilityDenial(role string) {
	m.denials.WithLabelValues(role).Inc()
}
