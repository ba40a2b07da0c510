package orchestrator

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vaultbuild/vaultbuild/pkg/buildstate"
	"github.com/vaultbuild/vaultbuild/pkg/compiler/protocol"
	"github.com/vaultbuild/vaultbuild/pkg/events"
	"github.com/vaultbuild/vaultbuild/pkg/pathresolve"
	"github.com/vaultbuild/vaultbuild/pkg/prereq"
	"github.com/vaultbuild/vaultbuild/pkg/stores"
	"github.com/vaultbuild/vaultbuild/pkg/telemetry"
)

// CompilerService is what the controller needs from the compiler client.
type CompilerService interface {
	StartBuild(ctx context.Context, req *protocol.BuildRequest) (string, error)
	CancelBuild(ctx context.Context, jobID string) error
}

// BuildSpec is the assembled input for one build, typically filled from a
// wizard session.
type BuildSpec struct {
	ProjectID          string
	Track              prereq.Track
	SelectedFolderPath string

	// EntryFile is the logical, server-recorded entry path. It is
	// reconciled against SelectedFolderPath before submission.
	EntryFile string

	LicenseKey            string
	OutputDir             string
	ConsoleMode           bool
	BundleRequirements    bool
	EnvValues             map[string]string
	DistributionType      protocol.DistributionType
	CreateDesktopShortcut bool
	CreateStartMenu       bool
	Publisher             string
	ProtectionMode        stores.ProtectionMode
	DemoDurationMinutes   int
}

// Controller orchestrates builds: prerequisite gate, path reconciliation,
// submission, cancellation.
type Controller struct {
	gate     *prereq.Gate
	state    *buildstate.Store
	bridge   *events.Bridge
	compiler CompilerService
	pool     *Pool
	durable  stores.Store
	logger   *telemetry.Logger
	metrics  *telemetry.Metrics
}

// NewController wires a controller. durable may be nil to skip the audit
// record; logger and metrics may be nil.
func NewController(gate *prereq.Gate, state *buildstate.Store, bridge *events.Bridge, compiler CompilerService, pool *Pool, durable stores.Store, logger *telemetry.Logger, metrics *telemetry.Metrics) *Controller {
	return &Controller{
		gate:     gate,
		state:    state,
		bridge:   bridge,
		compiler: compiler,
		pool:     pool,
		durable:  durable,
		logger:   logger,
		metrics:  metrics,
	}
}

// StartBuild validates the spec, waits for a compiler slot, submits the job
// and returns its id. The returned job is already registered with the event
// bridge, so progress starts flowing into the build state store immediately.
func (c *Controller) StartBuild(ctx context.Context, spec *BuildSpec) (string, error) {
	if err := c.validate(spec); err != nil {
		c.recordError(err)
		return "", err
	}

	if c.state.IsBuilding(spec.ProjectID) {
		err := NewValidationError("a build is already running for this project").WithProject(spec.ProjectID)
		c.recordError(err)
		return "", err
	}

	if !c.gate.AllReady(spec.Track) {
		missing := c.gate.MissingTools(spec.Track)
		err := NewPrerequisiteError("missing required tools: " + strings.Join(missing, ", ")).
			WithProject(spec.ProjectID)
		if len(missing) > 0 {
			err = err.WithTool(missing[0])
		}
		c.recordError(err)
		return "", err
	}

	entry := pathresolve.Resolve(spec.EntryFile, spec.SelectedFolderPath)

	if err := c.pool.Acquire(ctx); err != nil {
		werr := NewTransientError("no compiler slot available", err).WithProject(spec.ProjectID)
		c.recordError(werr)
		return "", werr
	}

	jobID := uuid.New().String()

	// Register with the bridge before submitting so that no event,
	// including an immediate result, can arrive for an unknown job.
	c.state.Start(spec.ProjectID, jobID)
	c.bridge.RegisterJob(jobID, spec.ProjectID)
	sub := c.bridge.Subscribe(jobID)
	go c.releaseOnCompletion(sub)

	req := c.buildRequest(jobID, spec, entry)
	if _, err := c.compiler.StartBuild(ctx, req); err != nil {
		c.state.Fail(spec.ProjectID, "failed to submit build: "+err.Error())
		c.bridge.ReleaseJob(jobID)

		werr := NewToolError("failed to submit build", err).WithProject(spec.ProjectID)
		c.recordError(werr)
		return "", werr
	}

	if c.logger != nil {
		c.logger.WithProjectID(spec.ProjectID).WithJobID(jobID).Info("build submitted")
	}
	if c.metrics != nil {
		c.metrics.RecordBuildStarted(string(spec.Track))
	}

	if c.durable != nil {
		now := time.Now().UTC()
		record := &stores.Build{
			ID:        jobID,
			ProjectID: spec.ProjectID,
			Status:    stores.BuildStatusRunning,
			EntryFile: entry,
			StartedAt: now,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := c.durable.CreateBuild(ctx, record); err != nil && c.logger != nil {
			c.logger.WithJobID(jobID).WithError(err).Warn("failed to record build")
		}
	}

	return jobID, nil
}

// CancelBuild cancels the project's running build. The cancel RPC is best
// effort: local state flips to cancelled whatever the compiler service says,
// because the state must reflect the user's intent.
func (c *Controller) CancelBuild(ctx context.Context, projectID string) error {
	st := c.state.Get(projectID)
	if !st.IsBuilding {
		err := NewValidationError("no build is running for this project").WithProject(projectID)
		c.recordError(err)
		return err
	}

	rpcErr := c.compiler.CancelBuild(ctx, st.JobID)

	c.state.Cancel(projectID)
	c.bridge.ReleaseJob(st.JobID)

	if c.durable != nil {
		if err := c.durable.UpdateBuildStatus(ctx, st.JobID, stores.BuildStatusCancelled, nil, nil); err != nil && c.logger != nil {
			c.logger.WithJobID(st.JobID).WithError(err).Warn("failed to record cancellation")
		}
	}

	if rpcErr != nil && c.logger != nil {
		c.logger.WithProjectID(projectID).WithJobID(st.JobID).WithError(rpcErr).
			Warn("cancel request failed, local state cancelled anyway")
	}
	if c.metrics != nil {
		c.metrics.RecordError(string(ErrorClassCancelled))
	}
	return nil
}

// Status returns the project's live build state.
func (c *Controller) Status(projectID string) buildstate.State {
	return c.state.Get(projectID)
}

// releaseOnCompletion returns the pool slot when the job's subscription
// closes, which the bridge guarantees happens exactly once per job.
func (c *Controller) releaseOnCompletion(sub *events.Subscription) {
	for range sub.Events() {
	}
	c.pool.Release()
}

func (c *Controller) validate(spec *BuildSpec) error {
	switch {
	case spec.ProjectID == "":
		return NewValidationError("project id is required")
	case spec.EntryFile == "":
		return NewValidationError("entry file is required").WithProject(spec.ProjectID)
	case spec.SelectedFolderPath == "":
		return NewValidationError("project path is required").WithProject(spec.ProjectID)
	default:
		return nil
	}
}

func (c *Controller) buildRequest(jobID string, spec *BuildSpec, entry string) *protocol.BuildRequest {
	return &protocol.BuildRequest{
		JobID:                 jobID,
		ProjectID:             spec.ProjectID,
		ProjectPath:           spec.SelectedFolderPath,
		EntryFile:             entry,
		OutputDir:             spec.OutputDir,
		LicenseKey:            spec.LicenseKey,
		ConsoleMode:           spec.ConsoleMode,
		BundleRequirements:    spec.BundleRequirements,
		EnvValues:             spec.EnvValues,
		DistributionType:      spec.DistributionType,
		CreateDesktopShortcut: spec.CreateDesktopShortcut,
		CreateStartMenu:       spec.CreateStartMenu,
		Publisher:             spec.Publisher,
		DemoMode:              spec.ProtectionMode == stores.ProtectionDemo,
		DemoDurationMinutes:   spec.DemoDurationMinutes,
	}
}

func (c *Controller) recordError(err error) {
	if c.metrics == nil {
		return
	}
	var class ErrorClass
	switch {
	case IsValidation(err):
		class = ErrorClassValidation
	case IsPrerequisite(err):
		class = ErrorClassPrerequisite
	case IsToolFailure(err):
		class = ErrorClassTool
	case IsCancelled(err):
		class = ErrorClassCancelled
	default:
		class = ErrorClassTransient
	}
	c.metrics.RecordError(string(class))
}
