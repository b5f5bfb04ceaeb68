// Package metrics defines the Prometheus instrumentation for the workflow
// bridge. A Metrics value is injected where needed; nothing registers
// against the global registry implicitly.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the collectors of the workflow bridge.
type Metrics struct {
	SessionsStarted  prometheus.Counter
	RunsCompleted    prometheus.Counter
	RunsFailed       prometheus.Counter
	SessionsTimedOut prometheus.Counter
	ApprovalsPending prometheus.Gauge
	DecisionLatency  prometheus.Histogram
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "docweave_sessions_started_total",
			Help: "Number of workflow sessions opened.",
		}),
		RunsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "docweave_runs_completed_total",
			Help: "Number of runs that reached terminal output.",
		}),
		RunsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "docweave_runs_failed_total",
			Help: "Number of runs that failed.",
		}),
		SessionsTimedOut: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "docweave_sessions_timed_out_total",
			Help: "Number of sessions closed by the approval wait timeout.",
		}),
		ApprovalsPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "docweave_approvals_pending",
			Help: "Approval requests currently awaiting a decision.",
		}),
		DecisionLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "docweave_approval_decision_seconds",
			Help:    "Time between raising an approval request and receiving its decision.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
		}),
	}
	reg.MustRegister(
		m.SessionsStarted,
		m.RunsCompleted,
		m.RunsFailed,
		m.SessionsTimedOut,
		m.ApprovalsPending,
		m.DecisionLatency,
	)
	return m
}
