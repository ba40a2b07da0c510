package buildstate

import (
	"fmt"
	"sync"
	"testing"
)

// TestGetUnknownProject verifies the never-fail idle default.
func TestGetUnknownProject(t *testing.T) {
	store := NewStore()

	for _, id := range []string{"does-not-exist", ""} {
		state := store.Get(id)
		if state.Status != StatusIdle {
			t.Errorf("Get(%q).Status = %s, want %s", id, state.Status, StatusIdle)
		}
		if state.Progress != 0 {
			t.Errorf("Get(%q).Progress = %d, want 0", id, state.Progress)
		}
		if len(state.Logs) != 0 {
			t.Errorf("Get(%q).Logs = %v, want empty", id, state.Logs)
		}
		if state.IsBuilding {
			t.Errorf("Get(%q).IsBuilding = true, want false", id)
		}
		if state.OutputPath != "" || state.JobID != "" {
			t.Errorf("Get(%q) has non-empty output/job: %+v", id, state)
		}
	}
}

// TestFailureFlow walks start -> log -> fail and checks log ordering.
func TestFailureFlow(t *testing.T) {
	store := NewStore()

	store.Start("p1", "job-1")
	store.AddLog("p1", "x")
	store.Fail("p1", "e")

	state := store.Get("p1")
	if state.Status != StatusFailed {
		t.Errorf("Status = %s, want %s", state.Status, StatusFailed)
	}
	if state.IsBuilding {
		t.Error("IsBuilding = true after failure")
	}

	want := []string{startMessage, "x", "e"}
	if len(state.Logs) != len(want) {
		t.Fatalf("Logs = %v, want %v", state.Logs, want)
	}
	for i, msg := range want {
		if state.Logs[i] != msg {
			t.Errorf("Logs[%d] = %q, want %q", i, state.Logs[i], msg)
		}
	}
}

// TestLogEviction checks that only the most recent LogCapacity lines are kept.
func TestLogEviction(t *testing.T) {
	store := NewStore()

	for i := 0; i < 150; i++ {
		store.AddLog("p1", fmt.Sprintf("line-%d", i))
	}

	state := store.Get("p1")
	if len(state.Logs) != LogCapacity {
		t.Fatalf("len(Logs) = %d, want %d", len(state.Logs), LogCapacity)
	}
	if state.Logs[0] != "line-50" {
		t.Errorf("Logs[0] = %q, want %q", state.Logs[0], "line-50")
	}
	if state.Logs[len(state.Logs)-1] != "line-149" {
		t.Errorf("last log = %q, want %q", state.Logs[len(state.Logs)-1], "line-149")
	}
}

// TestStartWhileRunning verifies the single-transition-into-running contract.
func TestStartWhileRunning(t *testing.T) {
	store := NewStore()

	store.Start("p1", "job-1")
	store.AddLog("p1", "in progress")
	store.Start("p1", "job-2") // contract violation, must be a no-op

	state := store.Get("p1")
	if state.JobID != "job-1" {
		t.Errorf("JobID = %q, want job-1 (second Start must not take effect)", state.JobID)
	}
	if len(state.Logs) != 2 {
		t.Errorf("Logs = %v, want the original lifecycle preserved", state.Logs)
	}

	// After a terminal state a fresh start is allowed again.
	store.Fail("p1", "boom")
	store.Start("p1", "job-3")
	state = store.Get("p1")
	if state.JobID != "job-3" || state.Status != StatusRunning {
		t.Errorf("restart after terminal state: got %+v", state)
	}
}

// TestProgressMonotonic verifies progress never decreases within a build.
func TestProgressMonotonic(t *testing.T) {
	store := NewStore()
	store.Start("p1", "")

	set := func(p int) {
		store.UpdateBuild("p1", Update{Progress: &p})
	}

	set(40)
	set(25) // late arrival, must be ignored
	if got := store.Get("p1").Progress; got != 40 {
		t.Errorf("Progress = %d, want 40", got)
	}

	set(250)
	if got := store.Get("p1").Progress; got != 100 {
		t.Errorf("Progress = %d, want clamped 100", got)
	}
}

// TestCancel verifies the optimistic cancellation state change.
func TestCancel(t *testing.T) {
	store := NewStore()
	store.Start("p1", "job-1")
	store.Cancel("p1")

	state := store.Get("p1")
	if state.Status != StatusCancelled {
		t.Errorf("Status = %s, want %s", state.Status, StatusCancelled)
	}
	if state.IsBuilding {
		t.Error("IsBuilding = true after cancel")
	}
	last := state.Logs[len(state.Logs)-1]
	if last != "Build cancelled" {
		t.Errorf("last log = %q, want cancellation line", last)
	}
}

// TestProjectIsolation verifies two project keys never share state.
func TestProjectIsolation(t *testing.T) {
	store := NewStore()

	store.Start("p1", "job-1")
	store.AddLog("p1", "only p1")

	other := store.Get("p2")
	if other.Status != StatusIdle || len(other.Logs) != 0 {
		t.Errorf("p2 state mutated by p1 activity: %+v", other)
	}

	store.Complete("p1", "/out/p1.bin")
	if store.Get("p2").Status != StatusIdle {
		t.Error("p2 left idle default after p1 completed")
	}
}

// TestReset verifies reads revert to the idle default after reset.
func TestReset(t *testing.T) {
	store := NewStore()
	store.Start("p1", "job-1")
	store.Complete("p1", "/out/a")

	store.Reset("p1")
	state := store.Get("p1")
	if state.Status != StatusIdle || len(state.Logs) != 0 || state.OutputPath != "" {
		t.Errorf("state after reset = %+v, want idle default", state)
	}

	// Resetting an unknown project must not panic.
	store.Reset("never-seen")
}

// TestHasActiveBuilds covers the any-running aggregate.
func TestHasActiveBuilds(t *testing.T) {
	store := NewStore()

	if store.HasActiveBuilds() {
		t.Error("empty store reports active builds")
	}

	store.Start("p1", "")
	store.Start("p2", "")
	if !store.HasActiveBuilds() {
		t.Error("no active builds reported while p1 and p2 run")
	}

	store.Complete("p1", "/out/a")
	if !store.HasActiveBuilds() {
		t.Error("p2 still running but no active builds reported")
	}

	store.Cancel("p2")
	if store.HasActiveBuilds() {
		t.Error("active builds reported after all builds terminal")
	}
}

// TestWatch verifies snapshot delivery and idempotent close.
func TestWatch(t *testing.T) {
	store := NewStore()

	w := store.Watch("p1")
	defer w.Close()

	first := <-w.States()
	if first.Status != StatusIdle {
		t.Errorf("initial snapshot status = %s, want idle", first.Status)
	}

	store.Start("p1", "job-1")
	got := <-w.States()
	if got.Status != StatusRunning {
		t.Errorf("snapshot after Start = %s, want running", got.Status)
	}

	// Snapshots are copies: mutating the received slice must not affect
	// the store.
	got.Logs[0] = "tampered"
	if store.Get("p1").Logs[0] != startMessage {
		t.Error("watcher snapshot aliases store state")
	}

	w.Close()
	w.Close() // second close must be a no-op

	if _, ok := <-w.States(); ok {
		t.Error("channel still open after Close")
	}
}

// TestConcurrentMutation exercises the per-key locking under parallel load.
func TestConcurrentMutation(t *testing.T) {
	store := NewStore()

	var wg sync.WaitGroup
	for p := 0; p < 4; p++ {
		projectID := fmt.Sprintf("p%d", p)
		store.Start(projectID, "")
		for g := 0; g < 4; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < 50; i++ {
					store.AddLog(projectID, "line")
					store.Get(projectID)
				}
			}()
		}
	}
	wg.Wait()

	for p := 0; p < 4; p++ {
		state := store.Get(fmt.Sprintf("p%d", p))
		if len(state.Logs) != LogCapacity {
			t.Errorf("project p%d logs = %d, want %d", p, len(state.Logs), LogCapacity)
		}
	}
}
