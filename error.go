package webservo

import (
	"fmt"
	"net/http"

	"github.com/cockroachdb/errors"
)

// Code is an error code that mirrors the http status codes the pipeline can emit. Only three statuses ever
// leave the server: 200 for success and the two failure codes below.
type Code int

const (
	CodeUnknown             Code = 0
	CodeNotFound            Code = http.StatusNotFound            // RFC 9110, 15.5.5
	CodeInternalServerError Code = http.StatusInternalServerError // RFC 9110, 15.6.1
)

// Error describes a failure of one of the pipeline units together with the resource it concerned.
type Error struct {
	code Code
	path string
	err  error
}

// NewError inits a new error given the error code.
func NewError(c Code, underlying error) *Error {
	return &Error{code: c, err: underlying}
}

// WithPath returns a copy of the error that records the filesystem path it concerns.
func (e *Error) WithPath(path string) *Error {
	e2 := *e
	e2.path = path

	return &e2
}

func (e *Error) Code() Code    { return e.code }
func (e *Error) Path() string  { return e.path }
func (e *Error) Unwrap() error { return e.err }
func (e *Error) Error() string {
	status := http.StatusText(int(e.Code()))
	if status == "" {
		status = "Unknown"
	}

	return fmt.Sprintf("%s: %s", status, e.err.Error())
}

// CodeOf returns the error's status code if it is or wraps an [*Error] and
// [CodeUnknown] otherwise.
func CodeOf(err error) Code {
	if servoErr, ok := asError(err); ok {
		return servoErr.Code()
	}
	return CodeUnknown
}

// StatusOf maps any error to one of the statuses the emitter writes. Everything that is not a not-found
// condition is a server error.
func StatusOf(err error) int {
	if CodeOf(err) == CodeNotFound {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// asError uses errors.As to unwrap any error and look for a *Error.
func asError(err error) (*Error, bool) {
	var servoErr *Error
	ok := errors.As(err, &servoErr)
	return servoErr, ok
}

func notFound(path string, err error) *Error {
	return NewError(CodeNotFound, err).WithPath(path)
}

func serverError(path string, err error) *Error {
	return NewError(CodeInternalServerError, err).WithPath(path)
}
