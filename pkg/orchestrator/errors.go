// Package orchestrator drives builds end to end: it gates on prerequisite
// readiness, reconciles the entry path against the selected folder, bounds
// concurrent compiler invocations and exposes best-effort cancellation.
package orchestrator

import (
	"errors"
	"fmt"
)

// ErrorClass classifies a build error for recovery logic.
type ErrorClass string

const (
	// ErrorClassValidation indicates bad input: a missing entry file or
	// project path. Blocks only the attempted transition.
	ErrorClassValidation ErrorClass = "validation"

	// ErrorClassPrerequisite indicates a required tool is missing.
	// Recoverable via install-then-recheck.
	ErrorClassPrerequisite ErrorClass = "prerequisite"

	// ErrorClassTool indicates the compiler process or its transport
	// failed. Retryable by re-issuing the build.
	ErrorClassTool ErrorClass = "tool"

	// ErrorClassCancelled indicates a user-initiated cancellation.
	// Terminal for the job but never fatal.
	ErrorClassCancelled ErrorClass = "cancelled"

	// ErrorClassTransient indicates a temporary condition such as the
	// worker pool being saturated.
	ErrorClassTransient ErrorClass = "transient"
)

// BuildError is a classified build orchestration error.
type BuildError struct {
	// Class is the error classification.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// ProjectID is the project the error belongs to, if known.
	ProjectID string `json:"project_id,omitempty"`

	// Tool is the missing or failing tool, for prerequisite and tool
	// errors.
	Tool string `json:"tool,omitempty"`

	// Err is the underlying error.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *BuildError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s", e.Class, e.Message, e.Err.Error())
	}
	return fmt.Sprintf("[%s] %s", e.Class, e.Message)
}

// Unwrap returns the underlying error for error chain inspection.
func (e *BuildError) Unwrap() error {
	return e.Err
}

// WithProject adds project context to an error.
func (e *BuildError) WithProject(projectID string) *BuildError {
	e.ProjectID = projectID
	return e
}

// WithTool adds tool context to an error.
func (e *BuildError) WithTool(tool string) *BuildError {
	e.Tool = tool
	return e
}

// NewValidationError creates a validation error.
func NewValidationError(message string) *BuildError {
	return &BuildError{Class: ErrorClassValidation, Message: message}
}

// NewPrerequisiteError creates a missing-prerequisite error.
func NewPrerequisiteError(message string) *BuildError {
	return &BuildError{Class: ErrorClassPrerequisite, Message: message}
}

// NewToolError creates a tool invocation error.
func NewToolError(message string, err error) *BuildError {
	return &BuildError{Class: ErrorClassTool, Message: message, Err: err}
}

// NewCancelledError creates a cancellation error.
func NewCancelledError(message string) *BuildError {
	return &BuildError{Class: ErrorClassCancelled, Message: message}
}

// NewTransientError creates a transient error.
func NewTransientError(message string, err error) *BuildError {
	return &BuildError{Class: ErrorClassTransient, Message: message, Err: err}
}

func classIs(err error, class ErrorClass) bool {
	var e *BuildError
	if errors.As(err, &e) {
		return e.Class == class
	}
	return false
}

// IsValidation reports whether the error is a validation error.
func IsValidation(err error) bool {
	return classIs(err, ErrorClassValidation)
}

// IsPrerequisite reports whether the error is a missing-prerequisite error.
func IsPrerequisite(err error) bool {
	return classIs(err, ErrorClassPrerequisite)
}

// IsToolFailure reports whether the error is a tool invocation error.
func IsToolFailure(err error) bool {
	return classIs(err, ErrorClassTool)
}

// IsCancelled reports whether the error is a cancellation.
func IsCancelled(err error) bool {
	return classIs(err, ErrorClassCancelled)
}

// IsRetryable reports whether re-issuing the build can succeed without
// operator action. Tool failures, cancellations and transient conditions
// qualify; validation and prerequisite errors need fixing first.
func IsRetryable(err error) bool {
	return IsToolFailure(err) || IsCancelled(err) || classIs(err, ErrorClassTransient)
}
