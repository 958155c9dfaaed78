package errors

import (
	"errors"
	"fmt"
)

// ErrorType classifies an engine error
type ErrorType uint

const (
	// ErrorTypeUnknown represents an unclassified error
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeInvalidInput represents malformed caller input detected before any numeric work
	ErrorTypeInvalidInput
	// ErrorTypeNumericalDegeneracy represents a non-finite or ill-conditioned intermediate value
	ErrorTypeNumericalDegeneracy
	// ErrorTypeExecution represents a failed parallel execution unit
	ErrorTypeExecution
	// ErrorTypeResultQuality represents a run whose output failed validity checks
	ErrorTypeResultQuality
	// ErrorTypeNotFound represents a missing resource
	ErrorTypeNotFound
	// ErrorTypeInternal represents an internal error
	ErrorTypeInternal
)

// AppError represents an application error with a taxonomy type
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
}

// Error returns the error message
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new unclassified error
func New(message string) error {
	return &AppError{Type: ErrorTypeUnknown, Message: message}
}

// Newf creates a new unclassified error from a format string
func Newf(format string, args ...interface{}) error {
	return &AppError{Type: ErrorTypeUnknown, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an error with a message, preserving its type if it is an AppError
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return &AppError{Type: appErr.Type, Message: message, Err: err}
	}
	return &AppError{Type: ErrorTypeUnknown, Message: message, Err: err}
}

// Wrapf wraps an error with a formatted message
func Wrapf(err error, format string, args ...interface{}) error {
	return Wrap(err, fmt.Sprintf(format, args...))
}

// WithType returns err re-tagged with the given type
func WithType(err error, errType ErrorType) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		appErr.Type = errType
		return appErr
	}
	return &AppError{Type: errType, Message: err.Error(), Err: err}
}

// GetType returns the taxonomy type of an error, or ErrorTypeUnknown
// if the error did not originate in this package
func GetType(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrorTypeUnknown
}

// IsType reports whether the error carries the given taxonomy type
func IsType(err error, errType ErrorType) bool {
	return GetType(err) == errType
}

// InvalidInput creates a new input-validity error
func InvalidInput(message string) error {
	return &AppError{Type: ErrorTypeInvalidInput, Message: message}
}

// InvalidInputf creates a new input-validity error from a format string
func InvalidInputf(format string, args ...interface{}) error {
	return &AppError{Type: ErrorTypeInvalidInput, Message: fmt.Sprintf(format, args...)}
}

// NumericalDegeneracy creates a new numerical-degeneracy error
func NumericalDegeneracy(message string) error {
	return &AppError{Type: ErrorTypeNumericalDegeneracy, Message: message}
}

// NumericalDegeneracyf creates a new numerical-degeneracy error from a format string
func NumericalDegeneracyf(format string, args ...interface{}) error {
	return &AppError{Type: ErrorTypeNumericalDegeneracy, Message: fmt.Sprintf(format, args...)}
}

// Execution creates a new execution error
func Execution(message string) error {
	return &AppError{Type: ErrorTypeExecution, Message: message}
}

// ResultQuality creates a new result-quality error
func ResultQuality(message string) error {
	return &AppError{Type: ErrorTypeResultQuality, Message: message}
}

// ResultQualityf creates a new result-quality error from a format string
func ResultQualityf(format string, args ...interface{}) error {
	return &AppError{Type: ErrorTypeResultQuality, Message: fmt.Sprintf(format, args...)}
}

// NotFound creates a new not-found error
func NotFound(message string) error {
	return &AppError{Type: ErrorTypeNotFound, Message: message}
}

// Internal creates a new internal error
func Internal(message string) error {
	return &AppError{Type: ErrorTypeInternal, Message: message}
}
