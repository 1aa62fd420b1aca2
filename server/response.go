package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/kbukum/pipekit/errors"
	"github.com/kbukum/pipekit/server/middleware"
)

// DataResponse is the success envelope.
type DataResponse struct {
	Data any `json:"data"`
}

// appErrorer is implemented by domain errors that know their HTTP form,
// such as *dag.NodeError and *stream.FrameError.
type appErrorer interface {
	AppError() *apperrors.AppError
}

// ToAppError maps err to the AppError sent to clients. Unknown errors
// become INTERNAL_ERROR.
func ToAppError(err error) *apperrors.AppError {
	if appErr, ok := apperrors.AsAppError(err); ok {
		return appErr
	}
	var ae appErrorer
	if errors.As(err, &ae) {
		return ae.AppError()
	}
	return apperrors.Internal(err)
}

// RespondWithError writes err as a structured error response carrying the
// request id.
func RespondWithError(c *gin.Context, err error) {
	appErr := ToAppError(err)
	resp := appErr.ToResponse().WithRequestID(c.GetHeader(middleware.HeaderRequestID))
	c.AbortWithStatusJSON(appErr.HTTPStatus, resp)
}

// RespondOK sends a 200 response wrapping data.
func RespondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, DataResponse{Data: data})
}
