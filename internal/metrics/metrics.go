// Package metrics exposes the engine's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the engine's collectors. All registrations go through one
// registry so the API server can serve them from a single handler.
type Metrics struct {
	Registry *prometheus.Registry

	RunsTotal      *prometheus.CounterVec
	NodeExecutions *prometheus.CounterVec
	NodeDuration   *prometheus.HistogramVec
	NodeRetries    prometheus.Counter
}

// New creates and registers the engine's collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "chainflow_runs_total",
			Help: "Workflow runs by terminal status.",
		}, []string{"status"}),
		NodeExecutions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "chainflow_node_executions_total",
			Help: "Node executions by operation type and outcome.",
		}, []string{"operation", "status"}),
		NodeDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "chainflow_node_duration_seconds",
			Help:    "Wall time of node execute calls.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"operation"}),
		NodeRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "chainflow_node_retries_total",
			Help: "Execute attempts beyond the first.",
		}),
	}
}
