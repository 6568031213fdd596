// Package errors provides domain-specific error types and sentinel errors
// for the provisioning phases.
package errors

import (
	"errors"
	"fmt"
	"os/exec"
)

// Sentinel errors for common scenarios.
// Use errors.Is() to check these errors in your code.
var (
	// ErrNotRoot indicates a phase was started without root privileges.
	ErrNotRoot = errors.New("must be run as root")

	// ErrInvalidConfig indicates the deploy configuration failed validation.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrConfigValidation indicates the reverse proxy rejected its configuration.
	ErrConfigValidation = errors.New("reverse proxy configuration invalid")

	// ErrServiceNotActive indicates the managed service is not running.
	ErrServiceNotActive = errors.New("service not active")

	// ErrEnvFileInvalid indicates the environment file exists but is unusable.
	ErrEnvFileInvalid = errors.New("environment file invalid")
)

// ValidationError represents a single configuration validation failure.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidConfig
}

// NewValidationError creates a new validation error.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// CommandError represents an external command that did not exit cleanly.
type CommandError struct {
	Command  string
	ExitCode int // -1 when the process never started or was killed
	Err      error
}

func (e *CommandError) Error() string {
	if e.ExitCode >= 0 {
		return fmt.Sprintf("command %q exited with status %d", e.Command, e.ExitCode)
	}
	return fmt.Sprintf("command %q failed: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// NewCommandError builds a CommandError, extracting the exit status from
// *exec.ExitError when present.
func NewCommandError(command string, err error) *CommandError {
	code := -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code = exitErr.ExitCode()
	}
	return &CommandError{
		Command:  command,
		ExitCode: code,
		Err:      err,
	}
}

// StepError marks the step at which a phase aborted.
type StepError struct {
	Index int // 1-based position in the phase
	Step  string
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s): %v", e.Index, e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// ExitCode maps err to a process exit status. The status of the first
// failing subcommand is propagated; anything else is 1.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) && cmdErr.ExitCode > 0 {
		return cmdErr.ExitCode
	}
	return 1
}

// IsNotRoot reports whether err is ErrNotRoot.
func IsNotRoot(err error) bool {
	return errors.Is(err, ErrNotRoot)
}

// IsInvalidConfig reports whether err is ErrInvalidConfig.
func IsInvalidConfig(err error) bool {
	return errors.Is(err, ErrInvalidConfig)
}
