package bridge

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/eleven-am/pose-bridge/internal/pose"
)

const (
	CodeInitError      = "INIT_ERROR"
	CodeProcessError   = "PROCESS_ERROR"
	CodeNotImplemented = "NOT_IMPLEMENTED"
	CodePipelineError  = pose.CodePipelineError
)

var ErrChannelNotFound = errors.New("channel not found")

// CallError is the error half of a call response and of an error event. The
// same shape is used for HTTP-level failures.
type CallError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func NewCallError(code, message string) *CallError {
	return &CallError{
		Code:    code,
		Message: message,
	}
}

func (e *CallError) Error() string {
	return e.Code + ": " + e.Message
}

func (e *CallError) WithDetails(details any) *CallError {
	e.Details = details
	return e
}

func (e *CallError) ToHTTP(status int) *echo.HTTPError {
	return echo.NewHTTPError(status, e)
}

func badRequest(code, message string) *echo.HTTPError {
	return NewCallError(code, message).ToHTTP(http.StatusBadRequest)
}

func notFound(code, message string) *echo.HTTPError {
	return NewCallError(code, message).ToHTTP(http.StatusNotFound)
}

func internalError(code, message string) *echo.HTTPError {
	return NewCallError(code, message).ToHTTP(http.StatusInternalServerError)
}
