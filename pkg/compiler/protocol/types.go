// Package protocol defines the JSON-over-stdio communication protocol
// between the Vaultbuild engine and the compiler service process.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// MessageType represents the type of message in the protocol.
type MessageType string

const (
	// MessageTypeReady indicates the compiler service is ready to receive jobs
	MessageTypeReady MessageType = "READY"
	// MessageTypeBuild indicates a build request from the engine
	MessageTypeBuild MessageType = "BUILD"
	// MessageTypeCancel indicates a cancellation request from the engine
	MessageTypeCancel MessageType = "CANCEL"
	// MessageTypeEvent indicates a progress event from the compiler service
	MessageTypeEvent MessageType = "EVENT"
	// MessageTypeResult indicates a build reached a terminal state
	MessageTypeResult MessageType = "RESULT"
	// MessageTypeError indicates a protocol-level error occurred
	MessageTypeError MessageType = "ERROR"
	// MessageTypeExit indicates the compiler service is exiting
	MessageTypeExit MessageType = "EXIT"
)

// DistributionType selects the packaging of the produced binary.
type DistributionType string

const (
	// DistributionPortable produces a standalone executable
	DistributionPortable DistributionType = "portable"
	// DistributionInstaller produces an installer package
	DistributionInstaller DistributionType = "installer"
)

// Message is the base message structure for all protocol messages.
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// ReadyMessage is sent when the compiler service is ready to receive jobs.
type ReadyMessage struct {
	Version  string            `json:"version"`
	Platform string            `json:"platform"`
	Arch     string            `json:"arch"`
	PID      int               `json:"pid"`
	Caps     map[string]bool   `json:"capabilities"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// BuildRequest describes one protected-binary build job.
type BuildRequest struct {
	// JobID identifies the job in every subsequent event and result.
	JobID string `json:"job_id" validate:"required"`

	// ProjectID is the engine-side project the job belongs to.
	ProjectID string `json:"project_id" validate:"required"`

	// ProjectPath is the absolute path of the project sources on disk.
	ProjectPath string `json:"project_path" validate:"required"`

	// EntryFile is the project-relative path of the entry point.
	EntryFile string `json:"entry_file" validate:"required"`

	// OutputDir is where artifacts are written. Empty means the service default.
	OutputDir string `json:"output_dir,omitempty"`

	// LicenseKey embeds a license check into the produced binary.
	LicenseKey string `json:"license_key,omitempty"`

	// ConsoleMode keeps a console window attached to the produced binary.
	ConsoleMode bool `json:"console_mode"`

	// BundleRequirements installs and bundles declared dependencies.
	BundleRequirements bool `json:"bundle_requirements"`

	// EnvValues are environment values baked into the protected binary.
	EnvValues map[string]string `json:"env_values,omitempty"`

	// DistributionType selects portable or installer packaging.
	DistributionType DistributionType `json:"distribution_type" validate:"omitempty,oneof=portable installer"`

	// CreateDesktopShortcut applies to installer distributions only.
	CreateDesktopShortcut bool `json:"create_desktop_shortcut"`

	// CreateStartMenu applies to installer distributions only.
	CreateStartMenu bool `json:"create_start_menu"`

	// Publisher is the publisher name stamped into installer metadata.
	Publisher string `json:"publisher,omitempty"`

	// DemoMode produces a time-limited binary.
	DemoMode bool `json:"demo_mode"`

	// DemoDurationMinutes is the demo runtime limit. Ignored unless DemoMode.
	DemoDurationMinutes int `json:"demo_duration_minutes,omitempty" validate:"gte=0"`
}

// CancelRequest asks the compiler service to abort a running job.
type CancelRequest struct {
	JobID string `json:"job_id"`
}

// EventMessage contains progress information during a build.
type EventMessage struct {
	JobID    string            `json:"job_id"`
	Level    string            `json:"level"` // info, warn, debug, error
	Message  string            `json:"message"`
	Progress *int              `json:"progress,omitempty"` // 0-100
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ResultMessage indicates a build reached a terminal state.
type ResultMessage struct {
	JobID      string  `json:"job_id"`
	Success    bool    `json:"success"`
	Cancelled  bool    `json:"cancelled,omitempty"`
	OutputPath string  `json:"output_path,omitempty"`
	Error      string  `json:"error,omitempty"`
	Duration   float64 `json:"duration"` // seconds
}

// ErrorMessage indicates a protocol-level error occurred.
type ErrorMessage struct {
	JobID     string            `json:"job_id,omitempty"`
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Details   map[string]string `json:"details,omitempty"`
	Retryable bool              `json:"retryable"`
}

// ExitMessage is sent before the compiler service terminates.
type ExitMessage struct {
	Reason    string `json:"reason"`
	ExitCode  int    `json:"exit_code"`
	JobsTotal int    `json:"jobs_total"`
}

var validate = validator.New()

// Validate checks if the message type is valid.
func (mt MessageType) Validate() error {
	switch mt {
	case MessageTypeReady, MessageTypeBuild, MessageTypeCancel,
		MessageTypeEvent, MessageTypeResult, MessageTypeError, MessageTypeExit:
		return nil
	default:
		return fmt.Errorf("invalid message type: %s", mt)
	}
}

// Validate checks if the build request is valid.
func (r *BuildRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("invalid build request: %w", err)
	}
	return nil
}

// Validate checks if the cancel request is valid.
func (r *CancelRequest) Validate() error {
	if r.JobID == "" {
		return fmt.Errorf("job ID is required")
	}
	return nil
}

// Validate checks if the event message is valid.
func (evt *EventMessage) Validate() error {
	if evt.JobID == "" {
		return fmt.Errorf("job ID is required")
	}
	if evt.Level == "" {
		evt.Level = "info"
	}
	validLevels := map[string]bool{"info": true, "warn": true, "debug": true, "error": true}
	if !validLevels[evt.Level] {
		return fmt.Errorf("invalid event level: %s", evt.Level)
	}
	if evt.Progress != nil && (*evt.Progress < 0 || *evt.Progress > 100) {
		return fmt.Errorf("progress out of range: %d", *evt.Progress)
	}
	return nil
}

// Validate checks if the result message is valid.
func (res *ResultMessage) Validate() error {
	if res.JobID == "" {
		return fmt.Errorf("job ID is required")
	}
	if res.Success && res.OutputPath == "" {
		return fmt.Errorf("successful result requires an output path")
	}
	if !res.Success && !res.Cancelled && res.Error == "" {
		return fmt.Errorf("failed result requires an error message")
	}
	return nil
}
