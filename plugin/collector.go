package plugin

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kbukum/pipekit/sandbox"
)

var (
	descExecutions = prometheus.NewDesc(
		"pipekit_plugin_executions_total",
		"Sandboxed tool executions per plugin and outcome.",
		[]string{"plugin_id", "outcome"}, nil,
	)
	descLastExecution = prometheus.NewDesc(
		"pipekit_plugin_last_execution_milliseconds",
		"Duration of the most recent sandboxed execution per plugin.",
		[]string{"plugin_id"}, nil,
	)
	descLifecycle = prometheus.NewDesc(
		"pipekit_plugin_lifecycle_state",
		"Current lifecycle state per plugin (1 for the active state).",
		[]string{"plugin_id", "state"}, nil,
	)
)

var lifecycleStates = []sandbox.LifecycleState{
	sandbox.StateInitialized,
	sandbox.StateRunning,
	sandbox.StateFailed,
}

type statusCollector struct {
	tracker *StatusTracker
}

var _ prometheus.Collector = &statusCollector{}

// NewStatusCollector exposes a tracker's snapshot as Prometheus metrics.
func NewStatusCollector(tracker *StatusTracker) prometheus.Collector {
	return &statusCollector{tracker: tracker}
}

func (c *statusCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- descExecutions
	ch <- descLastExecution
	ch <- descLifecycle
}

func (c *statusCollector) Collect(ch chan<- prometheus.Metric) {
	for _, st := range c.tracker.Snapshot() {
		ch <- prometheus.MustNewConstMetric(descExecutions, prometheus.CounterValue, float64(st.SuccessCount), st.PluginID, "success")
		ch <- prometheus.MustNewConstMetric(descExecutions, prometheus.CounterValue, float64(st.ErrorCount), st.PluginID, "error")
		ch <- prometheus.MustNewConstMetric(descLastExecution, prometheus.GaugeValue, st.LastExecutionTimeMs, st.PluginID)
		for _, state := range lifecycleStates {
			v := 0.0
			if st.LifecycleState == state {
				v = 1
			}
			ch <- prometheus.MustNewConstMetric(descLifecycle, prometheus.GaugeValue, v, st.PluginID, string(state))
		}
	}
}
