// Package apperrors defines the error taxonomy shared by the queue, stores, browser driver and
// orchestrator. Callers match with errors.Is against the sentinels and errors.As for details.
package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrValidation      = errors.New("validation failed")
	ErrNoSession       = errors.New("no persisted session")
	ErrCorruptState    = errors.New("persisted state is corrupt")
	ErrLoginInProgress = errors.New("login already in progress")
	ErrNoLogin         = errors.New("no login in progress")
	ErrLoopRunning     = errors.New("task loop is running")
)

// ValidationError reports malformed or missing input at the API boundary.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Required builds the ValidationError for a missing field.
func Required(field string) *ValidationError {
	return &ValidationError{Field: field, Message: field + " is required"}
}

// IOError wraps a persistence read or write failure.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// CorruptStateError reports persisted data that could not be decoded.
type CorruptStateError struct {
	Path string
	Err  error
}

func (e *CorruptStateError) Error() string {
	return fmt.Sprintf("corrupt state in %s: %v", e.Path, e.Err)
}

func (e *CorruptStateError) Unwrap() error {
	return e.Err
}

func (e *CorruptStateError) Is(target error) bool {
	return target == ErrCorruptState
}

// AutomationError is a failed page action inside a tick. It is expected under normal operation.
type AutomationError struct {
	Action string
	Target string
	Err    error
}

func (e *AutomationError) Error() string {
	if e.Target == "" {
		return fmt.Sprintf("%s: %v", e.Action, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Action, e.Target, e.Err)
}

func (e *AutomationError) Unwrap() error {
	return e.Err
}

// StartupError aborts a loop start (no session, browser launch failure).
type StartupError struct {
	Stage string
	Err   error
}

func (e *StartupError) Error() string {
	return fmt.Sprintf("startup %s: %v", e.Stage, e.Err)
}

func (e *StartupError) Unwrap() error {
	return e.Err
}

// IsStartup reports whether err aborted a loop start.
func IsStartup(err error) bool {
	var startupErr *StartupError
	return errors.As(err, &startupErr)
}

// IsValidation reports whether err is a client input error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}
