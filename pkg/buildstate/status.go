package buildstate

import "fmt"

// Status represents the lifecycle status of a project's build job.
type Status string

const (
	// StatusIdle indicates no build has been started (or state was reset).
	StatusIdle Status = "idle"

	// StatusRunning indicates a build is currently in flight.
	StatusRunning Status = "running"

	// StatusCompleted indicates the last build finished successfully.
	StatusCompleted Status = "completed"

	// StatusFailed indicates the last build failed.
	StatusFailed Status = "failed"

	// StatusCancelled indicates the last build was cancelled by the user.
	StatusCancelled Status = "cancelled"
)

// IsTerminal returns true if the status represents a finished build.
// Terminal states permit a fresh build to be started.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Validate checks if the status is valid.
func (s Status) Validate() error {
	switch s {
	case StatusIdle, StatusRunning, StatusCompleted, StatusFailed, StatusCancelled:
		return nil
	default:
		return fmt.Errorf("invalid build status: %s", s)
	}
}
