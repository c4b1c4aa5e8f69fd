// Package apperrors defines structured application error types,
// allowing for a clear distinction between error classes (configuration,
// input data, numeric kernels, etc.) and for carrying the underlying cause.
//
// Error Wrapping Guidelines:
// This package follows Go's error wrapping conventions using fmt.Errorf with %w.
// All error types implement the Unwrap() method to support errors.Is() and errors.As().
package apperrors

import (
	"context"
	"errors"
	"fmt"
)

// Application exit codes define the standard exit statuses for the application.
// These codes are used to signal the outcome of the program execution to the OS.
const (
	ExitSuccess           = 0   // Indicates successful execution.
	ExitErrorGeneric      = 1   // Indicates a generic error.
	ExitErrorTimeout      = 2   // Indicates the operation timed out.
	ExitErrorNotConverged = 3   // Indicates the fit stopped at the iteration cap.
	ExitErrorConfig       = 4   // Indicates a configuration error.
	ExitErrorInput        = 5   // Indicates malformed or mis-sized input data.
	ExitErrorNumeric      = 6   // Indicates a numeric kernel failure.
	ExitErrorCanceled     = 130 // Indicates the operation was canceled (e.g., SIGINT).
)

// Sentinel errors for errors.Is checks.
var (
	// ErrDimensionMismatch is wrapped by every DimensionError.
	ErrDimensionMismatch = errors.New("dimension mismatch")
	// ErrNotConverged marks a fit that reached its iteration cap. The fit
	// itself never returns it; callers that treat non-convergence as a
	// failure (the CLI, for instance) use it to build their own error.
	ErrNotConverged = errors.New("fit did not converge")
)

// ConfigError represents a user configuration error, such as invalid flags or
// values. It indicates that the application cannot proceed due to incorrect user input.
type ConfigError struct {
	// Message explains the specific configuration error.
	Message string
}

// Error returns the error message for a ConfigError.
func (e ConfigError) Error() string { return e.Message }

// NewConfigError creates a new ConfigError with a formatted message.
//
// Parameters:
//   - format: A format string (see fmt.Sprintf).
//   - a: Arguments to be formatted into the string.
//
// Returns:
//   - error: A new ConfigError instance containing the formatted message.
func NewConfigError(format string, a ...any) error {
	return ConfigError{Message: fmt.Sprintf(format, a...)}
}

// DimensionError reports that an input vector does not have the length
// implied by the design matrix. It is raised before any work is dispatched.
type DimensionError struct {
	// Field names the offending input (e.g. "beta0", "weights").
	Field string
	// Want is the expected length.
	Want int
	// Got is the actual length.
	Got int
}

// Error returns a message naming the field and both lengths.
func (e DimensionError) Error() string {
	return fmt.Sprintf("%s: %s has length %d, want %d", ErrDimensionMismatch, e.Field, e.Got, e.Want)
}

// Unwrap returns ErrDimensionMismatch so callers can test with errors.Is.
func (e DimensionError) Unwrap() error { return ErrDimensionMismatch }

// NewDimensionError creates a new DimensionError.
func NewDimensionError(field string, want, got int) error {
	return DimensionError{Field: field, Want: want, Got: got}
}

// KernelError wraps the failure of a dense numeric kernel (a singular
// triangular solve, or a panic raised by the linear algebra backend). It is
// always fatal for the fit that produced it.
type KernelError struct {
	// Op is the kernel that failed (e.g. "geqp3", "trtrs").
	Op string
	// Cause is the underlying error, if any.
	Cause error
}

// Error returns the error message for a KernelError.
func (e KernelError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("numeric kernel %s failed: %v", e.Op, e.Cause)
	}
	return fmt.Sprintf("numeric kernel %s failed", e.Op)
}

// Unwrap returns the underlying cause.
func (e KernelError) Unwrap() error { return e.Cause }

// NewKernelError creates a new KernelError.
func NewKernelError(op string, cause error) error {
	return KernelError{Op: op, Cause: cause}
}

// FitError encapsulates a fit failure while preserving the original cause and
// the family it was running.
type FitError struct {
	// Family is the family name of the failed fit.
	Family string
	// Cause is the underlying error that triggered this fit error.
	Cause error
}

// Error returns the error message prefixed with the family name.
func (e FitError) Error() string {
	if e.Family == "" {
		return e.Cause.Error()
	}
	return fmt.Sprintf("%s: %v", e.Family, e.Cause)
}

// Unwrap returns the original wrapped error, allowing for error chain
// inspection (e.g., using errors.Is or errors.As).
func (e FitError) Unwrap() error { return e.Cause }

// DataError reports a malformed dataset: bad CSV, bad JSON, missing columns,
// or non-numeric cells.
type DataError struct {
	// Source describes where the data came from (file name, "request body").
	Source string
	// Line is the 1-based record number when known, 0 otherwise.
	Line int
	// Cause is the underlying error.
	Cause error
}

// Error returns the error message for a DataError.
func (e DataError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("invalid data in %s at record %d: %v", e.Source, e.Line, e.Cause)
	}
	return fmt.Sprintf("invalid data in %s: %v", e.Source, e.Cause)
}

// Unwrap returns the underlying cause.
func (e DataError) Unwrap() error { return e.Cause }

// NewDataError creates a new DataError.
func NewDataError(source string, line int, cause error) error {
	return DataError{Source: source, Line: line, Cause: cause}
}

// ServerError represents errors that occur in the HTTP server component.
// It wraps an underlying error with additional context specific to the server operation.
type ServerError struct {
	// Message is a descriptive message about the server error.
	Message string
	// Cause is the underlying error, if any.
	Cause error
}

// Error returns the error message for a ServerError.
func (e ServerError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e ServerError) Unwrap() error { return e.Cause }

// NewServerError creates a new ServerError with a message and optional cause.
func NewServerError(message string, cause error) error {
	return ServerError{Message: message, Cause: cause}
}

// WrapError wraps an error with additional context using fmt.Errorf and %w.
//
// Parameters:
//   - err: The error to wrap.
//   - format: A format string for the context message.
//   - args: Arguments for the format string.
//
// Returns:
//   - error: The wrapped error, or nil if err is nil.
func WrapError(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	message := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", message, err)
}

// IsContextError checks if the error is a context cancellation or deadline exceeded error.
func IsContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// ValidationError represents an error due to invalid input validation.
// It is used for fit option validation and API request validation.
type ValidationError struct {
	// Field is the name of the field that failed validation.
	Field string
	// Message describes why validation failed.
	Message string
	// Value is the invalid value (optional, may be nil).
	Value any
}

// Error returns the error message for a ValidationError.
func (e ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error for '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string, value any) error {
	return ValidationError{Field: field, Message: message, Value: value}
}

// ExitCodeFor maps an error to the process exit code the CLI reports for it.
//
// Parameters:
//   - err: The error to classify (nil maps to ExitSuccess).
//
// Returns:
//   - int: The exit code.
func ExitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var (
		cfgErr    ConfigError
		valErr    ValidationError
		dimErr    DimensionError
		dataErr   DataError
		kernelErr KernelError
	)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ExitErrorTimeout
	case errors.Is(err, context.Canceled):
		return ExitErrorCanceled
	case errors.Is(err, ErrNotConverged):
		return ExitErrorNotConverged
	case errors.As(err, &cfgErr):
		return ExitErrorConfig
	case errors.As(err, &dimErr), errors.As(err, &dataErr), errors.As(err, &valErr):
		return ExitErrorInput
	case errors.As(err, &kernelErr):
		return ExitErrorNumeric
	default:
		return ExitErrorGeneric
	}
}
