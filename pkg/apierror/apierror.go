// Package apierror defines the application error carried from services to the
// HTTP layer, which maps Status to a response code and serializes Code as the
// machine-readable error identifier.
package apierror

import "net/http"

type Error struct {
	Status  int
	Code    string
	Message string
	Details map[string]any
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	return e.Code
}

func New(status int, code string, message string) *Error {
	return &Error{Status: status, Code: code, Message: message}
}

func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

func Unauthorized(message string) *Error {
	return New(http.StatusUnauthorized, "UNAUTHORIZED", message)
}

func Forbidden(code string, message string) *Error {
	return New(http.StatusForbidden, code, message)
}

func NotFound(code string, message string) *Error {
	return New(http.StatusNotFound, code, message)
}

func Conflict(code string, message string) *Error {
	return New(http.StatusConflict, code, message)
}

func Invalid(message string, details map[string]any) *Error {
	return New(http.StatusUnprocessableEntity, "VALIDATION_ERROR", message).WithDetails(details)
}
