package core

import "github.com/pkg/errors"

// FieldError ties a validation failure to the request field that caused it.
type FieldError struct {
	Field string
	Error string
}

// ValidationError is a refused request. It renders as a field to message map
// when Fields is set, and as a plain message otherwise.
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, fields ...FieldError) error {
	return &ValidationError{Err: err, Fields: fields}
}

func (err *ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

// shutdown asks for a graceful server stop; the HTTP error handler watches
// for it.
type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s *shutdown) Error() string { return s.message }

// IsShutdown reports whether err, or its cause, requests a shutdown.
func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
