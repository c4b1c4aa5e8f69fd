package apperrors

import (
	"fmt"
	"io"
	"time"
)

// ColorProvider defines the interface for obtaining terminal color codes.
// This abstraction breaks the import cycle with cli.
type ColorProvider interface {
	Yellow() string
	Reset() string
}

// DefaultColorProvider provides no color codes (for non-terminal output).
type DefaultColorProvider struct{}

func (d DefaultColorProvider) Yellow() string { return "" }
func (d DefaultColorProvider) Reset() string  { return "" }

// HandleFitError prints a status line describing why a fit failed and
// returns the matching exit code.
//
// Parameters:
//   - err: The error that occurred.
//   - duration: The elapsed time before the failure (0 to omit it).
//   - out: The io.Writer to which the message will be written.
//   - colors: Provider for terminal color codes (can be nil for no colors).
//
// Returns:
//   - int: The appropriate exit code for the error type.
func HandleFitError(err error, duration time.Duration, out io.Writer, colors ColorProvider) int {
	if err == nil {
		return ExitSuccess
	}
	if colors == nil {
		colors = DefaultColorProvider{}
	}

	msgSuffix := ""
	if duration > 0 {
		msgSuffix = fmt.Sprintf(" after %s%s%s", colors.Yellow(), duration, colors.Reset())
	}

	code := ExitCodeFor(err)
	switch code {
	case ExitErrorTimeout:
		fmt.Fprintf(out, "Status: Failure (Timeout). The execution limit was reached%s.\n", msgSuffix)
	case ExitErrorCanceled:
		fmt.Fprintf(out, "%sStatus: Canceled%s.%s\n", colors.Yellow(), msgSuffix, colors.Reset())
	case ExitErrorNotConverged:
		fmt.Fprintf(out, "%sStatus: Not converged%s.%s %v\n", colors.Yellow(), msgSuffix, colors.Reset(), err)
	case ExitErrorConfig:
		fmt.Fprintf(out, "Status: Failure (Configuration). %v\n", err)
	case ExitErrorInput:
		fmt.Fprintf(out, "Status: Failure (Invalid input). %v\n", err)
	case ExitErrorNumeric:
		fmt.Fprintf(out, "Status: Failure (Numeric)%s. %v\n", msgSuffix, err)
	default:
		fmt.Fprintf(out, "Status: Failure. An unexpected error occurred: %v\n", err)
	}
	return code
}
