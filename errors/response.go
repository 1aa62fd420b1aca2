package errors

// ErrorResponse is the JSON envelope for failed HTTP requests.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody is what clients see of an AppError. Cause never leaves the
// process.
type ErrorBody struct {
	Code      ErrorCode      `json:"code"`
	Message   string         `json:"message"`
	Retryable bool           `json:"retryable"`
	RequestID string         `json:"request_id,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

func (e *AppError) ToResponse() ErrorResponse {
	return ErrorResponse{Error: ErrorBody{
		Code:      e.Code,
		Message:   e.Message,
		Retryable: e.Retryable,
		Details:   e.Details,
	}}
}

// WithRequestID tags the response so clients can quote it when reporting
// a failed run.
func (r ErrorResponse) WithRequestID(id string) ErrorResponse {
	r.Error.RequestID = id
	return r
}
