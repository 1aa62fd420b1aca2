package sandbox

import "time"

// LifecycleState is the coarse per-plugin health marker.
type LifecycleState string

const (
	// StateInitialized means idle and ready for the next call.
	StateInitialized LifecycleState = "INITIALIZED"
	StateRunning     LifecycleState = "RUNNING"
	StateFailed      LifecycleState = "FAILED"
)

// Reporter receives one report when a call starts (RUNNING) and one when it ends.
// Implementations must not fail or block for long.
type Reporter interface {
	Report(pluginID string, state LifecycleState, elapsed time.Duration, hadError bool)
}

type nopReporter struct{}

func (nopReporter) Report(string, LifecycleState, time.Duration, bool) {}
