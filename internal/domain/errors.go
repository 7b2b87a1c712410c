package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrJobNotFound is returned when a job cannot be found by ID.
	ErrJobNotFound = errors.New("job not found")

	// ErrJobExists is returned when creating a job whose ID is already stored.
	ErrJobExists = errors.New("job already exists")

	// ErrJobTerminal is returned when writing to a job that already reached a terminal status.
	ErrJobTerminal = errors.New("job already in a terminal state")

	// ErrInvalidSpec is returned when a submitted job fails validation.
	ErrInvalidSpec = errors.New("invalid job spec")

	// ErrPublishFailed is returned when the message broker publish fails.
	ErrPublishFailed = errors.New("failed to publish job to message queue")

	// ErrProcessLaunch is returned when the external tool cannot be started.
	ErrProcessLaunch = errors.New("failed to launch process")

	// ErrNonZeroExit is returned when the external tool exits with a failure status.
	ErrNonZeroExit = errors.New("process exited with non-zero status")
)

// ParseFaultError reports tool output that violates the expected grammar.
// The offending line is kept verbatim.
type ParseFaultError struct {
	Line   string
	Reason string
}

func (e *ParseFaultError) Error() string {
	if e.Reason == "" {
		return e.Line
	}
	return fmt.Sprintf("%s: %q", e.Reason, e.Line)
}

// invalidf wraps ErrInvalidSpec with a human-readable reason.
func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidSpec, fmt.Sprintf(format, args...))
}
