package stream

import (
	"bytes"
	"fmt"

	apperrors "github.com/kbukum/pipekit/errors"
)

// Error codes sent to streaming clients.
const (
	CodeInvalidPipeline = "invalid_pipeline"
	CodeInvalidFrame    = "invalid_frame"
	CodeFrameTooLarge   = "frame_too_large"
	CodeInvalidMessage  = "invalid_message"
	CodePipelineFailure = "pipeline_failure"
	CodeInternalError   = "internal_error"
)

var (
	startOfImage = []byte{0xFF, 0xD8}
	endOfImage   = []byte{0xFF, 0xD9}
)

// FrameError is a rejected frame. Detail is a short single-line message.
type FrameError struct {
	Code   string
	Detail string
}

func (e *FrameError) Error() string {
	return e.Code + ": " + e.Detail
}

// AppError translates the rejection for HTTP callers.
func (e *FrameError) AppError() *apperrors.AppError {
	if e.Code == CodeFrameTooLarge {
		return apperrors.New(apperrors.ErrCodeFrameTooLarge, e.Detail, 413)
	}
	return apperrors.New(apperrors.ErrCodeInvalidFrame, e.Detail, 400)
}

// FrameValidator checks structure and size of JPEG frames.
type FrameValidator struct {
	MaxBytes int
}

// NewFrameValidator creates a validator with cfg's size ceiling.
func NewFrameValidator(cfg Config) FrameValidator {
	cfg.ApplyDefaults()
	return FrameValidator{MaxBytes: cfg.MaxFrameBytes()}
}

// Validate checks, in order: empty input, size ceiling, start-of-image
// marker, end-of-image marker. It returns nil for a valid frame.
func (v FrameValidator) Validate(data []byte) *FrameError {
	switch {
	case len(data) == 0:
		return &FrameError{Code: CodeInvalidFrame, Detail: "empty frame"}
	case v.MaxBytes > 0 && len(data) > v.MaxBytes:
		return &FrameError{Code: CodeFrameTooLarge, Detail: fmt.Sprintf("frame is %d bytes, limit is %d", len(data), v.MaxBytes)}
	case !bytes.HasPrefix(data, startOfImage):
		return &FrameError{Code: CodeInvalidFrame, Detail: "missing JPEG start-of-image marker"}
	case !bytes.HasSuffix(data, endOfImage):
		return &FrameError{Code: CodeInvalidFrame, Detail: "missing JPEG end-of-image marker"}
	}
	return nil
}
