package sandbox

import (
	"runtime"

	"github.com/prometheus/procfs"
)

// MemoryUsage is one sample of process memory in bytes. Peak is the
// resident high-water mark since the process started.
type MemoryUsage struct {
	Resident uint64
	Peak     uint64
}

// MemorySampler samples process memory.
type MemorySampler func() (MemoryUsage, error)

// ProcessMemory reads VmRSS and VmHWM from /proc/self/status. Where procfs
// is unavailable it falls back to the Go runtime's view of memory obtained
// from the OS, for both values.
func ProcessMemory() (MemoryUsage, error) {
	if p, err := procfs.Self(); err == nil {
		if st, err := p.NewStatus(); err == nil && st.VmRSS > 0 {
			peak := st.VmHWM
			if peak < st.VmRSS {
				peak = st.VmRSS
			}
			return MemoryUsage{Resident: st.VmRSS, Peak: peak}, nil
		}
	}
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return MemoryUsage{Resident: ms.Sys, Peak: ms.Sys}, nil
}

// callPeak estimates the peak resident memory during a call from samples
// taken before and after it. A high-water mark that rose during the call
// was set by it. Otherwise the earlier peak belongs to some previous call
// and only the resident memory after the call is known.
func callPeak(before, after MemoryUsage) uint64 {
	if after.Peak > before.Peak {
		return after.Peak
	}
	return after.Resident
}
