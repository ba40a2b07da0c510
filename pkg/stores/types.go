package stores

import (
	"context"
	"database/sql"
	"time"
)

// BuildStatus represents the durable status of a build record.
type BuildStatus string

const (
	BuildStatusPending   BuildStatus = "pending"
	BuildStatusRunning   BuildStatus = "running"
	BuildStatusCompleted BuildStatus = "completed"
	BuildStatusFailed    BuildStatus = "failed"
	BuildStatusCancelled BuildStatus = "cancelled"
)

// EventLevel represents the severity level of a build event
type EventLevel string

const (
	EventLevelDebug   EventLevel = "debug"
	EventLevelInfo    EventLevel = "info"
	EventLevelWarning EventLevel = "warning"
	EventLevelError   EventLevel = "error"
)

// ProtectionMode selects how the produced binary is protected.
type ProtectionMode string

const (
	// ProtectionGeneric embeds a runtime license prompt.
	ProtectionGeneric ProtectionMode = "generic"

	// ProtectionDemo embeds a time-boxed trial instead of a license.
	ProtectionDemo ProtectionMode = "demo"

	// ProtectionNone produces an unprotected binary.
	ProtectionNone ProtectionMode = "none"
)

// SessionState classifies the outcome of a session load. A stale session is
// not an error: the caller falls through to default detection.
type SessionState int

const (
	// SessionAbsent means no persisted session exists for the project.
	SessionAbsent SessionState = iota

	// SessionExpired means a session exists but its age exceeds the TTL.
	SessionExpired

	// SessionValid means the session was found and is within its TTL.
	SessionValid
)

// WizardSession is one project's persisted wizard position and collected
// inputs. SavedAt is refreshed on every save, so the TTL measures idle time
// since the last meaningful interaction, not session creation.
type WizardSession struct {
	ProjectID             string         `json:"project_id"`
	CurrentStep           int            `json:"current_step"`
	CompletedSteps        string         `json:"completed_steps"` // JSON int array
	ProtectionMode        ProtectionMode `json:"protection_mode"`
	SelectedFolderPath    string         `json:"selected_folder_path"`
	EntryFile             string         `json:"entry_file"`
	LicenseKey            string         `json:"license_key"`
	EnvValues             string         `json:"env_values"` // JSON blob
	DistributionType      string         `json:"distribution_type"`
	CreateDesktopShortcut bool           `json:"create_desktop_shortcut"`
	CreateStartMenu       bool           `json:"create_start_menu"`
	Publisher             string         `json:"publisher"`
	DemoDurationMinutes   int            `json:"demo_duration_minutes"`
	SavedAt               time.Time      `json:"saved_at"`
	CreatedAt             time.Time      `json:"created_at"`
	UpdatedAt             time.Time      `json:"updated_at"`
}

// Build represents one durable build record
type Build struct {
	ID          string      `json:"id"` // compiler service job id
	ProjectID   string      `json:"project_id"`
	Status      BuildStatus `json:"status"`
	EntryFile   string      `json:"entry_file"`
	OutputPath  *string     `json:"output_path,omitempty"`
	Error       *string     `json:"error,omitempty"`
	StartedAt   time.Time   `json:"started_at"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// BuildEvent represents an append-only build log event
type BuildEvent struct {
	ID        int64      `json:"id"`
	JobID     string     `json:"job_id"`
	ProjectID string     `json:"project_id"`
	Level     EventLevel `json:"level"`
	Message   string     `json:"message"`
	Progress  *int       `json:"progress,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// Store defines the interface for the persistence layer
type Store interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// Transaction support
	BeginTx(ctx context.Context) (*sql.Tx, error)
	CommitTx(tx *sql.Tx) error
	RollbackTx(tx *sql.Tx) error

	// Wizard session operations
	SaveSession(ctx context.Context, session *WizardSession) error
	LoadSession(ctx context.Context, projectID string, ttl time.Duration) (*WizardSession, SessionState, error)
	DeleteSession(ctx context.Context, projectID string) error
	PurgeStaleSessions(ctx context.Context, ttl time.Duration) (int64, error)

	// Build operations
	CreateBuild(ctx context.Context, build *Build) error
	GetBuild(ctx context.Context, id string) (*Build, error)
	UpdateBuildStatus(ctx context.Context, id string, status BuildStatus, outputPath, errMsg *string) error
	LatestBuildForProject(ctx context.Context, projectID string) (*Build, error)
	ListBuildsByProject(ctx context.Context, projectID string, limit, offset int) ([]*Build, error)
	DeleteBuild(ctx context.Context, id string) error

	// Build event operations
	AppendBuildEvent(ctx context.Context, event *BuildEvent) error
	GetBuildEvents(ctx context.Context, jobID string, limit, offset int) ([]*BuildEvent, error)

	// Utility
	HealthCheck(ctx context.Context) error
}
