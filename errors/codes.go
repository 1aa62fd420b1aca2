package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// ErrCodeTimeout indicates an operation exceeded its deadline. It is the
// only retryable code.
const ErrCodeTimeout ErrorCode = "TIMEOUT"

// Lookup errors
const (
	// ErrCodeNotFound indicates the requested resource was not found.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodePipelineNotFound indicates an unknown pipeline id.
	ErrCodePipelineNotFound ErrorCode = "PIPELINE_NOT_FOUND"
	// ErrCodePluginNotFound indicates an unknown plugin id.
	ErrCodePluginNotFound ErrorCode = "PLUGIN_NOT_FOUND"
)

// Input errors
const (
	// ErrCodeInvalidInput indicates the input is invalid.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrCodePipelineInvalid indicates a pipeline graph failed validation.
	ErrCodePipelineInvalid ErrorCode = "PIPELINE_INVALID"
	// ErrCodeInvalidFrame indicates a malformed streaming frame.
	ErrCodeInvalidFrame ErrorCode = "INVALID_FRAME"
	// ErrCodeFrameTooLarge indicates a streaming frame above the size ceiling.
	ErrCodeFrameTooLarge ErrorCode = "FRAME_TOO_LARGE"
	// ErrCodeInvalidMessage indicates a non-binary streaming message.
	ErrCodeInvalidMessage ErrorCode = "INVALID_MESSAGE"
)

// Execution errors
const (
	// ErrCodePipelineFailure indicates a node failed during a pipeline run.
	ErrCodePipelineFailure ErrorCode = "PIPELINE_FAILURE"
	// ErrCodeInternal indicates an internal error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeTimeout: true,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
