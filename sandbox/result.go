package sandbox

import "time"

// Result is the outcome of one sandboxed invocation.
type Result struct {
	OK             bool          `json:"ok"`
	Value          any           `json:"result,omitempty"`
	Error          string        `json:"error,omitempty"`
	ErrorType      ErrorType     `json:"error_type,omitempty"`
	MemoryExceeded bool          `json:"memory_exceeded,omitempty"`
	ExecutionTime  time.Duration `json:"-"`
}

// ExecutionTimeMs returns the elapsed wall time in milliseconds.
func (r Result) ExecutionTimeMs() float64 {
	return float64(r.ExecutionTime) / float64(time.Millisecond)
}

// Err returns the failure as a tagged *Error, or nil on success.
func (r Result) Err() error {
	if r.OK {
		return nil
	}
	return &Error{Type: r.ErrorType, Msg: r.Error}
}

func failure(t ErrorType, msg string) Result {
	return Result{ErrorType: t, Error: msg}
}
