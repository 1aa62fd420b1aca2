package plugin

import (
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/kbukum/pipekit/sandbox"
)

// ExecutionStatus is the per-plugin execution record.
type ExecutionStatus struct {
	PluginID            string                 `json:"plugin_id"`
	SuccessCount        int64                  `json:"success_count"`
	ErrorCount          int64                  `json:"error_count"`
	LastExecutionTimeMs float64                `json:"last_execution_time_ms"`
	LifecycleState      sandbox.LifecycleState `json:"lifecycle_state"`
}

// StatusTracker aggregates sandbox outcomes per plugin. Reports for
// plugins it does not track are ignored.
type StatusTracker struct {
	mu       sync.RWMutex
	statuses map[string]*ExecutionStatus
}

var _ sandbox.Reporter = (*StatusTracker)(nil)

// NewStatusTracker creates an empty tracker.
func NewStatusTracker() *StatusTracker {
	return &StatusTracker{statuses: make(map[string]*ExecutionStatus)}
}

// Track starts tracking pluginID in the INITIALIZED state.
func (t *StatusTracker) Track(pluginID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.statuses[pluginID]; !ok {
		t.statuses[pluginID] = &ExecutionStatus{PluginID: pluginID, LifecycleState: sandbox.StateInitialized}
	}
}

// Report implements sandbox.Reporter. RUNNING only updates the state;
// terminal states update the counters and the last execution time.
func (t *StatusTracker) Report(pluginID string, state sandbox.LifecycleState, elapsed time.Duration, hadError bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	st, ok := t.statuses[pluginID]
	if !ok {
		return
	}
	st.LifecycleState = state
	if state == sandbox.StateRunning {
		return
	}
	if hadError {
		st.ErrorCount++
	} else {
		st.SuccessCount++
	}
	st.LastExecutionTimeMs = float64(elapsed) / float64(time.Millisecond)
}

// Get returns a copy of one plugin's status.
func (t *StatusTracker) Get(pluginID string) (ExecutionStatus, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	st, ok := t.statuses[pluginID]
	if !ok {
		return ExecutionStatus{}, false
	}
	return *st, true
}

// Snapshot returns copies of every status ordered by plugin id.
func (t *StatusTracker) Snapshot() []ExecutionStatus {
	t.mu.RLock()
	out := make([]ExecutionStatus, 0, len(t.statuses))
	for _, st := range t.statuses {
		out = append(out, *st)
	}
	t.mu.RUnlock()

	slices.SortFunc(out, func(a, b ExecutionStatus) int { return strings.Compare(a.PluginID, b.PluginID) })
	return out
}

// Failed returns the ids of plugins whose last call failed.
func (t *StatusTracker) Failed() []string {
	var ids []string
	for _, st := range t.Snapshot() {
		if st.LifecycleState == sandbox.StateFailed {
			ids = append(ids, st.PluginID)
		}
	}
	return ids
}
