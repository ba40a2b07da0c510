// Package buildstate provides the process-wide store of per-project build
// job state. It is the single source of truth consulted by every surface
// (wizard, CLI, status queries) and survives any of them opening or closing:
// a build keeps reporting progress into the store whether or not anyone is
// currently watching it.
package buildstate

import (
	"sync"
)

// LogCapacity is the maximum number of log lines retained per project.
// When the cap is exceeded the oldest lines are evicted first.
const LogCapacity = 100

// startMessage is the first log line of every build lifecycle.
const startMessage = "Build started"

// State is a snapshot of one project's build job.
type State struct {
	// Status is the current lifecycle status.
	Status Status `json:"status"`

	// Progress is the completion percentage, 0-100. It never decreases
	// within one build lifecycle.
	Progress int `json:"progress"`

	// Logs are the most recent log lines, oldest first, capped at
	// LogCapacity entries.
	Logs []string `json:"logs"`

	// OutputPath is the produced artifact path, set only on completion.
	OutputPath string `json:"output_path,omitempty"`

	// JobID is the compiler service job handle, set while running and
	// used for cancellation.
	JobID string `json:"job_id,omitempty"`

	// IsBuilding is true iff Status == StatusRunning.
	IsBuilding bool `json:"is_building"`
}

// Update describes a partial mutation merged into the current state.
// Nil fields are left untouched.
type Update struct {
	Progress   *int
	OutputPath *string
	JobID      *string
}

// entry holds one project's state behind its own lock so that hot log and
// progress updates for one project never block reads of another.
type entry struct {
	mu       sync.Mutex
	state    State
	watchers map[uint64]chan State
}

// Store is a concurrency-safe keyed store of build state, indexed by project
// identifier. The zero value is not usable; use NewStore.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
	nextSub uint64
}

// NewStore creates an empty build state store.
func NewStore() *Store {
	return &Store{
		entries: make(map[string]*entry),
	}
}

// defaultState returns the idle state reported for unknown projects.
func defaultState() State {
	return State{
		Status:   StatusIdle,
		Progress: 0,
		Logs:     []string{},
	}
}

// lookup returns the entry for a project, or nil if none exists.
func (s *Store) lookup(projectID string) *entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries[projectID]
}

// ensure returns the entry for a project, creating an idle one on first use.
func (s *Store) ensure(projectID string) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[projectID]
	if !ok {
		e = &entry{
			state:    defaultState(),
			watchers: make(map[uint64]chan State),
		}
		s.entries[projectID] = e
	}
	return e
}

// Get returns a snapshot of the project's build state. Unknown or empty
// project identifiers yield the default idle state; Get never fails.
func (s *Store) Get(projectID string) State {
	e := s.lookup(projectID)
	if e == nil {
		return defaultState()
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// IsBuilding reports whether a build is currently running for the project.
// Callers must consult this before Start; Start is a no-op while running.
func (s *Store) IsBuilding(projectID string) bool {
	return s.Get(projectID).IsBuilding
}

// Start transitions the project into the running state with zeroed progress
// and a fresh log. jobID may be empty and supplied later via UpdateBuild.
//
// Calling Start while the project is already running is a contract violation
// by the caller and is ignored: at most one transition into running is
// allowed until a terminal state is reached or the entry is reset.
func (s *Store) Start(projectID, jobID string) {
	e := s.ensure(projectID)
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state.Status == StatusRunning {
		return
	}

	e.state = State{
		Status:     StatusRunning,
		Progress:   0,
		Logs:       []string{startMessage},
		JobID:      jobID,
		IsBuilding: true,
	}
	e.notifyLocked()
}

// UpdateBuild merges the given partial update into the current state.
// Progress is monotonic within a build: values lower than the current
// progress are discarded, and values are clamped to [0, 100].
func (s *Store) UpdateBuild(projectID string, u Update) {
	e := s.ensure(projectID)
	e.mu.Lock()
	defer e.mu.Unlock()

	if u.Progress != nil {
		p := *u.Progress
		if p < 0 {
			p = 0
		}
		if p > 100 {
			p = 100
		}
		if p > e.state.Progress {
			e.state.Progress = p
		}
	}
	if u.OutputPath != nil {
		e.state.OutputPath = *u.OutputPath
	}
	if u.JobID != nil {
		e.state.JobID = *u.JobID
	}
	e.notifyLocked()
}

// AddLog appends a log line, evicting the oldest line first when the
// LogCapacity cap is reached.
func (s *Store) AddLog(projectID, message string) {
	e := s.ensure(projectID)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.appendLogLocked(message)
	e.notifyLocked()
}

// Complete marks the build completed, records the artifact path and appends
// a success log line.
func (s *Store) Complete(projectID, outputPath string) {
	e := s.ensure(projectID)
	e.mu.Lock()
	defer e.mu.Unlock()

	e.state.Status = StatusCompleted
	e.state.Progress = 100
	e.state.OutputPath = outputPath
	e.state.IsBuilding = false
	e.appendLogLocked("Build completed: " + outputPath)
	e.notifyLocked()
}

// Fail marks the build failed and appends the error message to the log.
func (s *Store) Fail(projectID, message string) {
	e := s.ensure(projectID)
	e.mu.Lock()
	defer e.mu.Unlock()

	e.state.Status = StatusFailed
	e.state.IsBuilding = false
	e.appendLogLocked(message)
	e.notifyLocked()
}

// Cancel marks the build cancelled and appends a cancellation log line.
// It is applied unconditionally: cancellation is optimistic and local state
// reflects the user's intent even if the remote cancel never lands.
func (s *Store) Cancel(projectID string) {
	e := s.ensure(projectID)
	e.mu.Lock()
	defer e.mu.Unlock()

	e.state.Status = StatusCancelled
	e.state.IsBuilding = false
	e.appendLogLocked("Build cancelled")
	e.notifyLocked()
}

// Reset removes the project's entry entirely. Subsequent reads revert to the
// default idle state. Watchers on the removed entry are closed.
func (s *Store) Reset(projectID string) {
	s.mu.Lock()
	e, ok := s.entries[projectID]
	if ok {
		delete(s.entries, projectID)
	}
	s.mu.Unlock()

	if !ok {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for id, ch := range e.watchers {
		close(ch)
		delete(e.watchers, id)
	}
}

// HasActiveBuilds reports whether any project currently has a running build.
func (s *Store) HasActiveBuilds() bool {
	s.mu.RLock()
	entries := make([]*entry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	for _, e := range entries {
		e.mu.Lock()
		running := e.state.Status == StatusRunning
		e.mu.Unlock()
		if running {
			return true
		}
	}
	return false
}

// appendLogLocked appends one log line under the entry lock.
func (e *entry) appendLogLocked(message string) {
	if len(e.state.Logs) >= LogCapacity {
		evict := len(e.state.Logs) - LogCapacity + 1
		e.state.Logs = e.state.Logs[evict:]
	}
	e.state.Logs = append(e.state.Logs, message)
}

// snapshotLocked copies the state, including the log slice, so callers can
// never observe later mutations.
func (e *entry) snapshotLocked() State {
	out := e.state
	out.Logs = make([]string, len(e.state.Logs))
	copy(out.Logs, e.state.Logs)
	return out
}

// notifyLocked pushes a snapshot to every watcher without blocking. Slow
// watchers miss intermediate snapshots but always receive the latest one
// eventually because every mutation re-notifies.
func (e *entry) notifyLocked() {
	if len(e.watchers) == 0 {
		return
	}
	snap := e.snapshotLocked()
	for _, ch := range e.watchers {
		select {
		case ch <- snap:
		default:
		}
	}
}
