// Package events bridges the compiler service's event stream into the
// process-wide build state. It owns the subscription lifecycle: observers
// get an explicit handle whose Unsubscribe is safe to call any number of
// times, and every subscription for a job is released when that job reaches
// a terminal state, so repeated open/close cycles never leak listeners or
// deliver duplicates.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/vaultbuild/vaultbuild/pkg/buildstate"
	"github.com/vaultbuild/vaultbuild/pkg/compiler/protocol"
	"github.com/vaultbuild/vaultbuild/pkg/stores"
	"github.com/vaultbuild/vaultbuild/pkg/telemetry"
)

// Kind classifies a delivered event.
type Kind string

const (
	// KindProgress is an in-flight log or progress update.
	KindProgress Kind = "progress"

	// KindResult is the terminal outcome of a job.
	KindResult Kind = "result"
)

// Event is what subscribers receive.
type Event struct {
	Kind      Kind
	JobID     string
	ProjectID string

	// Progress fields, set when Kind == KindProgress.
	Level    string
	Message  string
	Progress *int

	// Result fields, set when Kind == KindResult.
	Success    bool
	Cancelled  bool
	OutputPath string
	Error      string
}

// Subscription is an observer's handle on one job's event stream.
type Subscription struct {
	bridge *Bridge
	jobID  string
	id     uint64
	ch     chan Event
	once   sync.Once
}

// Events returns the delivery channel. It is closed by Unsubscribe or when
// the job reaches a terminal state.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Unsubscribe releases the subscription and closes its channel. It is
// idempotent: extra calls, including after the bridge has already released
// the job, are no-ops.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.bridge.mu.Lock()
		if set, ok := s.bridge.subs[s.jobID]; ok {
			delete(set, s.id)
			if len(set) == 0 {
				delete(s.bridge.subs, s.jobID)
			}
		}
		close(s.ch)
		s.bridge.mu.Unlock()
	})
}

// Bridge feeds compiler events into the build state store and the durable
// audit log, and fans them out to subscribers.
type Bridge struct {
	state   *buildstate.Store
	durable stores.Store
	logger  *telemetry.Logger
	metrics *telemetry.Metrics

	mu     sync.Mutex
	jobs   map[string]string // job id -> project id
	subs   map[string]map[uint64]*Subscription
	nextID uint64
}

// NewBridge creates a bridge writing live state into state and, when durable
// is non-nil, appending an audit record of every event and outcome.
func NewBridge(state *buildstate.Store, durable stores.Store, logger *telemetry.Logger, metrics *telemetry.Metrics) *Bridge {
	return &Bridge{
		state:   state,
		durable: durable,
		logger:  logger,
		metrics: metrics,
		jobs:    make(map[string]string),
		subs:    make(map[string]map[uint64]*Subscription),
	}
}

// ActiveJobs reports how many registered jobs have not yet produced a result.
func (b *Bridge) ActiveJobs() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.jobs)
}

// RegisterJob associates a compiler job with its project. Events for
// unregistered jobs are dropped.
func (b *Bridge) RegisterJob(jobID, projectID string) {
	b.mu.Lock()
	b.jobs[jobID] = projectID
	b.mu.Unlock()
}

// Subscribe returns a handle on the given job's events. The channel is
// buffered; a subscriber that falls behind misses intermediate events but
// the build state store always holds the latest truth.
func (b *Bridge) Subscribe(jobID string) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := &Subscription{
		bridge: b,
		jobID:  jobID,
		id:     b.nextID,
		ch:     make(chan Event, 16),
	}
	if b.subs[jobID] == nil {
		b.subs[jobID] = make(map[uint64]*Subscription)
	}
	b.subs[jobID][sub.id] = sub
	return sub
}

// Run consumes the compiler client's event and result channels until both
// are closed or the context is cancelled. It is the bridge's only writer
// goroutine, so state mutations apply strictly in arrival order.
func (b *Bridge) Run(ctx context.Context, eventCh <-chan *protocol.EventMessage, resultCh <-chan *protocol.ResultMessage) {
	for eventCh != nil || resultCh != nil {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-eventCh:
			if !ok {
				eventCh = nil
				continue
			}
			b.handleEvent(ctx, ev)

		case res, ok := <-resultCh:
			if !ok {
				resultCh = nil
				continue
			}
			b.handleResult(ctx, res)
		}
	}
}

// projectFor resolves the project a job belongs to.
func (b *Bridge) projectFor(jobID string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	projectID, ok := b.jobs[jobID]
	return projectID, ok
}

func (b *Bridge) handleEvent(ctx context.Context, ev *protocol.EventMessage) {
	projectID, ok := b.projectFor(ev.JobID)
	if !ok {
		if b.logger != nil {
			b.logger.WithJobID(ev.JobID).Debug("dropping event for unknown job")
		}
		return
	}

	b.state.AddLog(projectID, ev.Message)
	if ev.Progress != nil {
		b.state.UpdateBuild(projectID, buildstate.Update{Progress: ev.Progress})
	}

	if b.durable != nil {
		record := &stores.BuildEvent{
			JobID:     ev.JobID,
			ProjectID: projectID,
			Level:     eventLevel(ev.Level),
			Message:   ev.Message,
			Progress:  ev.Progress,
			Timestamp: time.Now().UTC(),
		}
		if err := b.durable.AppendBuildEvent(ctx, record); err != nil && b.logger != nil {
			b.logger.WithJobID(ev.JobID).WithError(err).Warn("failed to append build event")
		}
	}

	b.fanOut(ev.JobID, Event{
		Kind:      KindProgress,
		JobID:     ev.JobID,
		ProjectID: projectID,
		Level:     ev.Level,
		Message:   ev.Message,
		Progress:  ev.Progress,
	})
}

func (b *Bridge) handleResult(ctx context.Context, res *protocol.ResultMessage) {
	projectID, ok := b.projectFor(res.JobID)
	if !ok {
		if b.logger != nil {
			b.logger.WithJobID(res.JobID).Debug("dropping result for unknown job")
		}
		return
	}

	var status stores.BuildStatus
	switch {
	case res.Cancelled:
		status = stores.BuildStatusCancelled
		b.state.Cancel(projectID)
	case res.Success:
		status = stores.BuildStatusCompleted
		b.state.Complete(projectID, res.OutputPath)
	default:
		status = stores.BuildStatusFailed
		b.state.Fail(projectID, res.Error)
	}

	if b.durable != nil {
		var outputPath, errMsg *string
		if res.OutputPath != "" {
			outputPath = &res.OutputPath
		}
		if res.Error != "" {
			errMsg = &res.Error
		}
		if err := b.durable.UpdateBuildStatus(ctx, res.JobID, status, outputPath, errMsg); err != nil && b.logger != nil {
			b.logger.WithJobID(res.JobID).WithError(err).Warn("failed to record build outcome")
		}
	}

	if b.metrics != nil {
		b.metrics.RecordBuildCompleted(string(status), time.Duration(res.Duration*float64(time.Second)))
	}

	b.fanOut(res.JobID, Event{
		Kind:       KindResult,
		JobID:      res.JobID,
		ProjectID:  projectID,
		Success:    res.Success,
		Cancelled:  res.Cancelled,
		OutputPath: res.OutputPath,
		Error:      res.Error,
	})

	b.ReleaseJob(res.JobID)
}

// fanOut delivers an event to every subscriber of the job without blocking.
func (b *Bridge) fanOut(jobID string, ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subs[jobID] {
		select {
		case sub.ch <- ev:
		default:
		}
	}
}

// ReleaseJob drops the job registration and unsubscribes every remaining
// observer. The bridge calls it itself when a job reaches a terminal state;
// callers use it to clean up a job that never got off the ground.
func (b *Bridge) ReleaseJob(jobID string) {
	b.mu.Lock()
	delete(b.jobs, jobID)
	set := b.subs[jobID]
	remaining := make([]*Subscription, 0, len(set))
	for _, sub := range set {
		remaining = append(remaining, sub)
	}
	b.mu.Unlock()

	for _, sub := range remaining {
		sub.Unsubscribe()
	}
}

// eventLevel maps wire levels onto durable event levels.
func eventLevel(level string) stores.EventLevel {
	switch level {
	case "debug":
		return stores.EventLevelDebug
	case "warn", "warning":
		return stores.EventLevelWarning
	case "error":
		return stores.EventLevelError
	default:
		return stores.EventLevelInfo
	}
}
