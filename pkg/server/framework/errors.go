package framework

import (
	"github.com/pkg/errors"
)

// FieldError is used to indicate an error with a field in a request payload
type FieldError struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

// ErrorResponse is the structure of response error payloads sent back to the
// requester when a request fails.
type ErrorResponse struct {
	Error  string       `json:"error"`
	Code   string       `json:"code,omitempty"`
	Fields []FieldError `json:"fields,omitempty"`
}

// SafeError is used to pass an error during the request through the server
// with web specific context. 'Safe' here means that the error message does not
// include any sensitive information and can be sent straight back to the
// requester.
type SafeError struct {
	Err        error
	StatusCode int
	Code       string
	Fields     []FieldError
}

func (err *SafeError) Error() string {
	return err.Err.Error()
}

// NewRequestError wraps a provided error with an HTTP status code. This
// function should be used when routers encounter expected errors.
func NewRequestError(err error, statusCode int) error {
	return &SafeError{Err: err, StatusCode: statusCode}
}

// shutdown is a type used to help with graceful shutdown of a server
type shutdown struct {
	Message string
}

func (s *shutdown) Error() string {
	return s.Message
}

// NewShutdownError returns an error that causes the framework to signal a
// graceful shutdown.
func NewShutdownError(message string) error {
	return &shutdown{message}
}

// IsShutdown checks to see if the shutdown error is contained in the specified
// error value.
func IsShutdown(err error) bool {
	var shutdownErr *shutdown
	return errors.As(errors.Cause(err), &shutdownErr)
}
