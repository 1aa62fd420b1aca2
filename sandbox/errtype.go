package sandbox

import (
	"errors"
	"fmt"
	"runtime"
	"strings"

	apperrors "github.com/kbukum/pipekit/errors"
)

// ErrorType is the closed set of failure kinds reported at the sandbox boundary.
type ErrorType string

const (
	TypeImport    ErrorType = "ImportError"
	TypeValue     ErrorType = "ValueError"
	TypeRuntime   ErrorType = "RuntimeError"
	TypeMemory    ErrorType = "MemoryError"
	TypeTimeout   ErrorType = "TimeoutError"
	TypeException ErrorType = "Exception"
)

// Sentinels tools wrap to select a classification.
var (
	ErrMissingDependency = errors.New("missing dependency")
	ErrInvalidInput      = errors.New("invalid input")
	ErrToolRuntime       = errors.New("tool runtime failure")
	ErrResourceExhausted = errors.New("resource exhausted")
)

// Error is a failure already tagged with its kind.
type Error struct {
	Type  ErrorType
	Msg   string
	Cause error
}

// Errorf returns a tagged error with a formatted message.
func Errorf(t ErrorType, format string, args ...any) *Error {
	return &Error{Type: t, Msg: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Msg)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches the sentinel that corresponds to the tag.
func (e *Error) Is(target error) bool {
	switch e.Type {
	case TypeImport:
		return target == ErrMissingDependency
	case TypeValue:
		return target == ErrInvalidInput
	case TypeRuntime:
		return target == ErrToolRuntime
	case TypeMemory:
		return target == ErrResourceExhausted
	}
	return false
}

// PanicError wraps a value recovered from a panicking tool.
type PanicError struct {
	Value any
	Stack []byte
}

func (p *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", p.Value)
}

// Is reports ErrResourceExhausted for allocation failures and
// ErrToolRuntime for every other panic.
func (p *PanicError) Is(target error) bool {
	switch target {
	case ErrResourceExhausted:
		return p.exhausted()
	case ErrToolRuntime:
		return !p.exhausted()
	}
	return false
}

func (p *PanicError) exhausted() bool {
	var msg string
	switch v := p.Value.(type) {
	case runtime.Error:
		msg = v.Error()
	case error:
		return errors.Is(v, ErrResourceExhausted)
	default:
		return false
	}
	for _, s := range []string{"out of memory", "makeslice: len out of range", "makeslice: cap out of range", "growslice"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// Classifier maps an error to an ErrorType.
type Classifier struct {
	// IsMissingDependency selects ImportError. Nil uses DefaultMissingDependency.
	IsMissingDependency func(error) bool
}

// DefaultMissingDependency matches ErrMissingDependency and PLUGIN_NOT_FOUND app errors.
func DefaultMissingDependency(err error) bool {
	return errors.Is(err, ErrMissingDependency) || apperrors.HasCode(err, apperrors.ErrCodePluginNotFound)
}

// Classify returns the kind of err, or "" for nil.
func (c Classifier) Classify(err error) ErrorType {
	if err == nil {
		return ""
	}
	var tagged *Error
	if errors.As(err, &tagged) && tagged.Type == TypeException {
		return tagged.Type
	}

	missing := c.IsMissingDependency
	if missing == nil {
		missing = DefaultMissingDependency
	}

	switch {
	case missing(err):
		return TypeImport
	case errors.Is(err, ErrInvalidInput), apperrors.HasCode(err, apperrors.ErrCodeInvalidInput):
		return TypeValue
	case errors.Is(err, ErrToolRuntime):
		return TypeRuntime
	case errors.Is(err, ErrResourceExhausted):
		return TypeMemory
	default:
		return TypeException
	}
}

// Classify uses the default classifier.
func Classify(err error) ErrorType {
	return Classifier{}.Classify(err)
}
