package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

type Error struct {
	Status int
	Code   string
	Err    error
	// Fields carries per-field validation messages.
	Fields map[string]string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

func Newf(status int, code, format string, args ...any) *Error {
	return &Error{Status: status, Code: code, Err: fmt.Errorf(format, args...)}
}

func BadRequest(code, msg string) *Error {
	return &Error{Status: http.StatusBadRequest, Code: code, Err: errors.New(msg)}
}

func Validation(fields map[string]string) *Error {
	return &Error{
		Status: http.StatusBadRequest,
		Code:   "validation_failed",
		Err:    errors.New("validation failed"),
		Fields: fields,
	}
}

func Unauthorized(msg string) *Error {
	return &Error{Status: http.StatusUnauthorized, Code: "unauthorized", Err: errors.New(msg)}
}

func Forbidden(code, msg string) *Error {
	return &Error{Status: http.StatusForbidden, Code: code, Err: errors.New(msg)}
}

func NotFound(code, msg string) *Error {
	return &Error{Status: http.StatusNotFound, Code: code, Err: errors.New(msg)}
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) && ae != nil {
		return ae, true
	}
	return nil, false
}
