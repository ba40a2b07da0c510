// Package wizard sequences the five-step build configuration flow and
// decides where to resume it after an interruption. The machine holds no
// state of its own between calls: the live build state store and the durable
// session record are the only sources of truth, so any number of surfaces
// can open the same project's wizard and observe the same position.
package wizard

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/vaultbuild/vaultbuild/pkg/buildstate"
	"github.com/vaultbuild/vaultbuild/pkg/host"
	"github.com/vaultbuild/vaultbuild/pkg/stores"
	"github.com/vaultbuild/vaultbuild/pkg/telemetry"
)

// Step is one of the five wizard positions.
type Step int

const (
	StepUpload    Step = 1
	StepReview    Step = 2
	StepConfigure Step = 3
	StepLicense   Step = 4
	StepBuild     Step = 5
)

// stepNames maps steps to display names.
var stepNames = map[Step]string{
	StepUpload:    "Upload",
	StepReview:    "Review",
	StepConfigure: "Configure",
	StepLicense:   "License",
	StepBuild:     "Build",
}

// Name returns the step's display name.
func (s Step) Name() string {
	if name, ok := stepNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Step %d", int(s))
}

// SessionTTL is how long a persisted session survives without interaction.
const SessionTTL = 24 * time.Hour

// Resume sources, recorded for metrics and surfaced to the caller so it can
// explain why the wizard opened where it did.
const (
	ResumeRunningBuild  = "running_build"
	ResumeTerminalBuild = "terminal_build"
	ResumeSession       = "session"
	ResumeDefault       = "default"
)

// Session is a project's in-memory wizard position and collected inputs.
type Session struct {
	ProjectID      string
	CurrentStep    Step
	CompletedSteps map[Step]bool

	ProtectionMode        stores.ProtectionMode
	SelectedFolderPath    string
	EntryFile             string
	LicenseKey            string
	EnvValues             map[string]string
	DistributionType      string
	CreateDesktopShortcut bool
	CreateStartMenu       bool
	Publisher             string
	DemoDurationMinutes   int

	// HasUpload reports that project files or an uploaded archive exist,
	// gating advancement past the upload step.
	HasUpload bool

	// ResumeSource records which resumption rule positioned this session.
	ResumeSource string
}

// Machine computes wizard positions and persists session progress.
type Machine struct {
	state   *buildstate.Store
	durable stores.Store
	logger  *telemetry.Logger
	metrics *telemetry.Metrics

	// uploadDir is where uploaded projects are unpacked, one folder per
	// project id. Default detection checks it for existing artifacts.
	uploadDir string

	ttl time.Duration
}

// Option configures a Machine.
type Option func(*Machine)

// WithTTL overrides the persisted-session TTL.
func WithTTL(ttl time.Duration) Option {
	return func(m *Machine) { m.ttl = ttl }
}

// WithUploadDir sets the directory scanned for existing project uploads.
func WithUploadDir(dir string) Option {
	return func(m *Machine) { m.uploadDir = dir }
}

// NewMachine creates a wizard machine. durable may be nil, in which case
// sessions live only as long as the process.
func NewMachine(state *buildstate.Store, durable stores.Store, logger *telemetry.Logger, metrics *telemetry.Metrics, opts ...Option) *Machine {
	m := &Machine{
		state:   state,
		durable: durable,
		logger:  logger,
		metrics: metrics,
		ttl:     SessionTTL,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Open computes the project's wizard position. The resumption rules apply in
// strict priority order: an in-flight build wins over everything, a finished
// build outcome wins over a persisted session, a live session wins over
// default detection.
func (m *Machine) Open(ctx context.Context, projectID string) (*Session, error) {
	bs := m.state.Get(projectID)

	switch {
	case bs.Status == buildstate.StatusRunning:
		return m.resumeAtBuild(projectID, ResumeRunningBuild), nil
	case bs.Status == buildstate.StatusCompleted || bs.Status == buildstate.StatusFailed:
		return m.resumeAtBuild(projectID, ResumeTerminalBuild), nil
	}

	if m.durable != nil {
		record, state, err := m.durable.LoadSession(ctx, projectID, m.ttl)
		if err != nil {
			return nil, fmt.Errorf("failed to load wizard session: %w", err)
		}
		switch state {
		case stores.SessionValid:
			session, err := fromRecord(record)
			if err == nil {
				session.ResumeSource = ResumeSession
				m.recordResume(ResumeSession)
				return session, nil
			}
			// A malformed session is treated exactly like an expired
			// one: discard and fall through to default detection.
			if m.logger != nil {
				m.logger.WithProjectID(projectID).WithError(err).Warn("discarding malformed wizard session")
			}
			fallthrough
		case stores.SessionExpired:
			if m.metrics != nil {
				m.metrics.RecordSessionExpired()
			}
			if err := m.durable.DeleteSession(ctx, projectID); err != nil && m.logger != nil {
				m.logger.WithProjectID(projectID).WithError(err).Warn("failed to discard stale wizard session")
			}
		}
	}

	return m.openDefault(projectID), nil
}

// resumeAtBuild positions the wizard at the build step with all earlier
// steps completed.
func (m *Machine) resumeAtBuild(projectID, source string) *Session {
	session := &Session{
		ProjectID:   projectID,
		CurrentStep: StepBuild,
		CompletedSteps: map[Step]bool{
			StepUpload: true, StepReview: true, StepConfigure: true, StepLicense: true,
		},
		ProtectionMode: stores.ProtectionGeneric,
		HasUpload:      true,
		ResumeSource:   source,
	}
	m.recordResume(source)
	return session
}

// openDefault applies the lowest-priority rule: start at the review step
// when upload artifacts already exist, otherwise at the upload step.
func (m *Machine) openDefault(projectID string) *Session {
	session := &Session{
		ProjectID:      projectID,
		CurrentStep:    StepUpload,
		CompletedSteps: map[Step]bool{},
		ProtectionMode: stores.ProtectionGeneric,
		EnvValues:      map[string]string{},
		ResumeSource:   ResumeDefault,
	}

	if m.uploadDir != "" {
		folder := filepath.Join(m.uploadDir, projectID)
		if host.DirExists(folder) {
			session.HasUpload = true
			session.SelectedFolderPath = folder
			session.CurrentStep = StepReview
			session.CompletedSteps[StepUpload] = true

			if ps, err := host.ScanProjectStructure(folder); err == nil && len(ps.EntryCandidates) > 0 {
				session.EntryFile = ps.EntryCandidates[0]
			}
		}
	}

	m.recordResume(ResumeDefault)
	return session
}

// CanProceed reports whether the given step's advance precondition holds.
// Review and License are unconditionally passable; license embedding is
// optional.
func (m *Machine) CanProceed(session *Session, step Step) bool {
	switch step {
	case StepUpload:
		return session.HasUpload
	case StepReview, StepLicense:
		return true
	case StepConfigure, StepBuild:
		return session.EntryFile != ""
	default:
		return false
	}
}

// Next advances the wizard one step if the current step's precondition
// holds, persisting the new position.
func (m *Machine) Next(ctx context.Context, session *Session) error {
	if session.CurrentStep >= StepBuild {
		return fmt.Errorf("already at the final step")
	}
	if !m.CanProceed(session, session.CurrentStep) {
		return fmt.Errorf("step %s is not complete", session.CurrentStep.Name())
	}

	session.CompletedSteps[session.CurrentStep] = true
	session.CurrentStep++
	return m.persist(ctx, session)
}

// Back moves the wizard one step back. It always succeeds above step 1.
func (m *Machine) Back(ctx context.Context, session *Session) error {
	if session.CurrentStep <= StepUpload {
		return nil
	}
	session.CurrentStep--
	return m.persist(ctx, session)
}

// HandleUpload reacts to a project archive arriving while the wizard sits on
// the upload step: the step completes and the wizard jumps to review without
// an explicit Next. This is a one-shot transition; uploads on later steps
// only refresh the selected folder.
func (m *Machine) HandleUpload(ctx context.Context, session *Session, folderPath string) error {
	session.HasUpload = true
	if folderPath != "" {
		session.SelectedFolderPath = folderPath
	}

	if session.CurrentStep != StepUpload {
		return nil
	}

	session.CompletedSteps[StepUpload] = true
	session.CurrentStep = StepReview
	if m.logger != nil {
		m.logger.WithProjectID(session.ProjectID).WithStep(int(StepReview)).Info("archive uploaded, advancing wizard")
	}
	return m.persist(ctx, session)
}

// Save persists the session if it has moved past the upload step. Closing
// the wizard never erases the record; it must survive re-open for the TTL
// window.
func (m *Machine) Save(ctx context.Context, session *Session) error {
	return m.persist(ctx, session)
}

// Discard removes the project's persisted session.
func (m *Machine) Discard(ctx context.Context, projectID string) error {
	if m.durable == nil {
		return nil
	}
	return m.durable.DeleteSession(ctx, projectID)
}

// persist writes the session through to the durable store. Positions at the
// upload step are not worth persisting: default detection reproduces them.
func (m *Machine) persist(ctx context.Context, session *Session) error {
	if m.durable == nil || session.CurrentStep <= StepUpload {
		return nil
	}

	record, err := toRecord(session)
	if err != nil {
		return fmt.Errorf("failed to encode wizard session: %w", err)
	}
	if err := m.durable.SaveSession(ctx, record); err != nil {
		return fmt.Errorf("failed to persist wizard session: %w", err)
	}
	return nil
}

func (m *Machine) recordResume(source string) {
	if m.metrics != nil {
		m.metrics.RecordSessionResumed(source)
	}
}

// toRecord converts a session to its durable form.
func toRecord(session *Session) (*stores.WizardSession, error) {
	steps := make([]int, 0, len(session.CompletedSteps))
	for step, done := range session.CompletedSteps {
		if done {
			steps = append(steps, int(step))
		}
	}
	sort.Ints(steps)
	stepsJSON, err := json.Marshal(steps)
	if err != nil {
		return nil, err
	}

	envValues := session.EnvValues
	if envValues == nil {
		envValues = map[string]string{}
	}
	envJSON, err := json.Marshal(envValues)
	if err != nil {
		return nil, err
	}

	return &stores.WizardSession{
		ProjectID:             session.ProjectID,
		CurrentStep:           int(session.CurrentStep),
		CompletedSteps:        string(stepsJSON),
		ProtectionMode:        session.ProtectionMode,
		SelectedFolderPath:    session.SelectedFolderPath,
		EntryFile:             session.EntryFile,
		LicenseKey:            session.LicenseKey,
		EnvValues:             string(envJSON),
		DistributionType:      session.DistributionType,
		CreateDesktopShortcut: session.CreateDesktopShortcut,
		CreateStartMenu:       session.CreateStartMenu,
		Publisher:             session.Publisher,
		DemoDurationMinutes:   session.DemoDurationMinutes,
	}, nil
}

// fromRecord restores a session from its durable form.
func fromRecord(record *stores.WizardSession) (*Session, error) {
	if record.CurrentStep < int(StepUpload) || record.CurrentStep > int(StepBuild) {
		return nil, fmt.Errorf("invalid wizard step: %d", record.CurrentStep)
	}

	var steps []int
	if record.CompletedSteps != "" {
		if err := json.Unmarshal([]byte(record.CompletedSteps), &steps); err != nil {
			return nil, fmt.Errorf("invalid completed steps: %w", err)
		}
	}
	completed := make(map[Step]bool, len(steps))
	for _, step := range steps {
		completed[Step(step)] = true
	}

	envValues := map[string]string{}
	if record.EnvValues != "" {
		if err := json.Unmarshal([]byte(record.EnvValues), &envValues); err != nil {
			return nil, fmt.Errorf("invalid env values: %w", err)
		}
	}

	return &Session{
		ProjectID:             record.ProjectID,
		CurrentStep:           Step(record.CurrentStep),
		CompletedSteps:        completed,
		ProtectionMode:        record.ProtectionMode,
		SelectedFolderPath:    record.SelectedFolderPath,
		EntryFile:             record.EntryFile,
		LicenseKey:            record.LicenseKey,
		EnvValues:             envValues,
		DistributionType:      record.DistributionType,
		CreateDesktopShortcut: record.CreateDesktopShortcut,
		CreateStartMenu:       record.CreateStartMenu,
		Publisher:             record.Publisher,
		DemoDurationMinutes:   record.DemoDurationMinutes,
		HasUpload:             record.SelectedFolderPath != "" || record.CurrentStep > int(StepUpload),
	}, nil
}
