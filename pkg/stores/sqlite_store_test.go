package stores

import (
	"context"
	"testing"
	"time"
)

// setupTestStore creates an in-memory SQLite store for testing
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(Config{
		Path: ":memory:",
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}

	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate store: %v", err)
	}

	return store
}

// TestStoreLifecycle tests database initialization and closure
func TestStoreLifecycle(t *testing.T) {
	store, err := NewSQLiteStore(Config{
		Path: ":memory:",
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}

	if err := store.HealthCheck(ctx); err != nil {
		t.Fatalf("health check failed: %v", err)
	}

	if err := store.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}
}

// TestStoreMigrations tests database migrations
func TestStoreMigrations(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()

	// Check that tables exist by querying them
	tables := []string{"wizard_sessions", "builds", "build_events"}
	for _, table := range tables {
		query := "SELECT COUNT(*) FROM " + table
		var count int
		err := store.db.QueryRowContext(ctx, query).Scan(&count)
		if err != nil {
			t.Errorf("table %s does not exist or is not accessible: %v", table, err)
		}
	}
}

// TestSessionSaveLoad tests wizard session persistence
func TestSessionSaveLoad(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()

	session := &WizardSession{
		ProjectID:           "proj-1",
		CurrentStep:         3,
		CompletedSteps:      "[1,2]",
		ProtectionMode:      ProtectionDemo,
		SelectedFolderPath:  "/home/user/demo",
		EntryFile:           "src/main.py",
		LicenseKey:          "LW-TEST-KEY",
		EnvValues:           `{"API_KEY":"secret"}`,
		DistributionType:    "installer",
		CreateStartMenu:     true,
		Publisher:           "Acme",
		DemoDurationMinutes: 30,
	}

	if err := store.SaveSession(ctx, session); err != nil {
		t.Fatalf("failed to save session: %v", err)
	}

	loaded, state, err := store.LoadSession(ctx, "proj-1", 24*time.Hour)
	if err != nil {
		t.Fatalf("failed to load session: %v", err)
	}
	if state != SessionValid {
		t.Fatalf("session state = %v, want SessionValid", state)
	}
	if loaded.CurrentStep != 3 {
		t.Errorf("CurrentStep = %d, want 3", loaded.CurrentStep)
	}
	if loaded.EntryFile != "src/main.py" {
		t.Errorf("EntryFile = %s, want src/main.py", loaded.EntryFile)
	}
	if loaded.EnvValues != `{"API_KEY":"secret"}` {
		t.Errorf("EnvValues = %s", loaded.EnvValues)
	}
	if loaded.CompletedSteps != "[1,2]" {
		t.Errorf("CompletedSteps = %s, want [1,2]", loaded.CompletedSteps)
	}
	if loaded.ProtectionMode != ProtectionDemo || loaded.DemoDurationMinutes != 30 {
		t.Errorf("demo fields = %v/%d, want demo/30", loaded.ProtectionMode, loaded.DemoDurationMinutes)
	}
}

// TestSessionUpsert tests that saving twice keeps a single row per project
func TestSessionUpsert(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()

	session := &WizardSession{ProjectID: "proj-1", CurrentStep: 2}
	if err := store.SaveSession(ctx, session); err != nil {
		t.Fatalf("failed to save session: %v", err)
	}

	session.CurrentStep = 4
	session.EntryFile = "main.py"
	if err := store.SaveSession(ctx, session); err != nil {
		t.Fatalf("failed to re-save session: %v", err)
	}

	loaded, state, err := store.LoadSession(ctx, "proj-1", 24*time.Hour)
	if err != nil || state != SessionValid {
		t.Fatalf("load after upsert: state=%v err=%v", state, err)
	}
	if loaded.CurrentStep != 4 || loaded.EntryFile != "main.py" {
		t.Errorf("loaded = step %d entry %q, want step 4 entry main.py", loaded.CurrentStep, loaded.EntryFile)
	}

	var count int
	if err := store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM wizard_sessions").Scan(&count); err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	if count != 1 {
		t.Errorf("session rows = %d, want 1", count)
	}
}

// TestSessionAbsent tests loading a session that was never saved
func TestSessionAbsent(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	loaded, state, err := store.LoadSession(context.Background(), "never-saved", 24*time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state != SessionAbsent {
		t.Errorf("state = %v, want SessionAbsent", state)
	}
	if loaded != nil {
		t.Errorf("loaded = %+v, want nil", loaded)
	}
}

// TestSessionExpiry tests the TTL classification and stale purge
func TestSessionExpiry(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()

	if err := store.SaveSession(ctx, &WizardSession{ProjectID: "proj-old", CurrentStep: 3}); err != nil {
		t.Fatalf("failed to save session: %v", err)
	}

	// Backdate the session past the TTL.
	stale := time.Now().UTC().Add(-25 * time.Hour).Format(sqliteTimeFormat)
	if _, err := store.db.ExecContext(ctx, "UPDATE wizard_sessions SET saved_at = ? WHERE project_id = ?", stale, "proj-old"); err != nil {
		t.Fatalf("failed to backdate session: %v", err)
	}

	loaded, state, err := store.LoadSession(ctx, "proj-old", 24*time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state != SessionExpired {
		t.Errorf("state = %v, want SessionExpired", state)
	}
	if loaded == nil {
		t.Error("expired session should still be returned for inspection")
	}

	purged, err := store.PurgeStaleSessions(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("failed to purge: %v", err)
	}
	if purged != 1 {
		t.Errorf("purged = %d, want 1", purged)
	}

	_, state, err = store.LoadSession(ctx, "proj-old", 24*time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state != SessionAbsent {
		t.Errorf("state after purge = %v, want SessionAbsent", state)
	}
}

// TestSessionDelete tests explicit session deletion
func TestSessionDelete(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()

	if err := store.SaveSession(ctx, &WizardSession{ProjectID: "proj-1", CurrentStep: 2}); err != nil {
		t.Fatalf("failed to save session: %v", err)
	}
	if err := store.DeleteSession(ctx, "proj-1"); err != nil {
		t.Fatalf("failed to delete session: %v", err)
	}

	_, state, err := store.LoadSession(ctx, "proj-1", 24*time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state != SessionAbsent {
		t.Errorf("state = %v, want SessionAbsent", state)
	}

	// Deleting again must not fail.
	if err := store.DeleteSession(ctx, "proj-1"); err != nil {
		t.Errorf("second delete failed: %v", err)
	}
}

// TestBuildCRUD tests build record operations
func TestBuildCRUD(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()
	now := time.Now()

	build := &Build{
		ID:        "job-1",
		ProjectID: "proj-1",
		Status:    BuildStatusRunning,
		EntryFile: "main.py",
		StartedAt: now,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := store.CreateBuild(ctx, build); err != nil {
		t.Fatalf("failed to create build: %v", err)
	}

	got, err := store.GetBuild(ctx, "job-1")
	if err != nil {
		t.Fatalf("failed to get build: %v", err)
	}
	if got.Status != BuildStatusRunning {
		t.Errorf("Status = %s, want running", got.Status)
	}
	if got.CompletedAt != nil {
		t.Error("CompletedAt set on a running build")
	}

	output := "/out/main.exe"
	if err := store.UpdateBuildStatus(ctx, "job-1", BuildStatusCompleted, &output, nil); err != nil {
		t.Fatalf("failed to update build: %v", err)
	}

	got, err = store.GetBuild(ctx, "job-1")
	if err != nil {
		t.Fatalf("failed to get build: %v", err)
	}
	if got.Status != BuildStatusCompleted {
		t.Errorf("Status = %s, want completed", got.Status)
	}
	if got.OutputPath == nil || *got.OutputPath != output {
		t.Errorf("OutputPath = %v, want %s", got.OutputPath, output)
	}
	if got.CompletedAt == nil {
		t.Error("CompletedAt not set on terminal status")
	}

	if err := store.DeleteBuild(ctx, "job-1"); err != nil {
		t.Fatalf("failed to delete build: %v", err)
	}
	if _, err := store.GetBuild(ctx, "job-1"); err == nil {
		t.Error("expected error getting deleted build")
	}
}

// TestUpdateMissingBuild tests updating a build that does not exist
func TestUpdateMissingBuild(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	err := store.UpdateBuildStatus(context.Background(), "no-such-job", BuildStatusFailed, nil, nil)
	if err == nil {
		t.Error("expected error updating missing build")
	}
}

// TestLatestBuildForProject tests the newest-build query
func TestLatestBuildForProject(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()

	latest, err := store.LatestBuildForProject(ctx, "proj-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if latest != nil {
		t.Errorf("latest = %+v, want nil for unbuilt project", latest)
	}

	base := time.Now().Add(-time.Hour)
	for i, id := range []string{"job-1", "job-2", "job-3"} {
		build := &Build{
			ID:        id,
			ProjectID: "proj-1",
			Status:    BuildStatusCompleted,
			StartedAt: base.Add(time.Duration(i) * time.Minute),
			CreatedAt: base,
			UpdatedAt: base,
		}
		if err := store.CreateBuild(ctx, build); err != nil {
			t.Fatalf("failed to create build %s: %v", id, err)
		}
	}

	latest, err = store.LatestBuildForProject(ctx, "proj-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if latest == nil || latest.ID != "job-3" {
		t.Errorf("latest = %+v, want job-3", latest)
	}

	builds, err := store.ListBuildsByProject(ctx, "proj-1", 10, 0)
	if err != nil {
		t.Fatalf("failed to list builds: %v", err)
	}
	if len(builds) != 3 {
		t.Fatalf("len(builds) = %d, want 3", len(builds))
	}
	if builds[0].ID != "job-3" {
		t.Errorf("builds[0].ID = %s, want job-3 (newest first)", builds[0].ID)
	}
}

// TestBuildEvents tests the append-only build event log
func TestBuildEvents(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()
	now := time.Now()

	build := &Build{
		ID:        "job-1",
		ProjectID: "proj-1",
		Status:    BuildStatusRunning,
		StartedAt: now,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := store.CreateBuild(ctx, build); err != nil {
		t.Fatalf("failed to create build: %v", err)
	}

	progress := 42
	events := []*BuildEvent{
		{JobID: "job-1", ProjectID: "proj-1", Level: EventLevelInfo, Message: "Compiling sources", Progress: &progress, Timestamp: now},
		{JobID: "job-1", ProjectID: "proj-1", Level: EventLevelWarning, Message: "Large bundle detected", Timestamp: now.Add(time.Second)},
	}
	for _, ev := range events {
		if err := store.AppendBuildEvent(ctx, ev); err != nil {
			t.Fatalf("failed to append event: %v", err)
		}
		if ev.ID == 0 {
			t.Error("event ID not populated after append")
		}
	}

	got, err := store.GetBuildEvents(ctx, "job-1", 10, 0)
	if err != nil {
		t.Fatalf("failed to get events: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(events) = %d, want 2", len(got))
	}
	if got[0].Message != "Compiling sources" {
		t.Errorf("events[0].Message = %s, want oldest first", got[0].Message)
	}
	if got[0].Progress == nil || *got[0].Progress != 42 {
		t.Errorf("events[0].Progress = %v, want 42", got[0].Progress)
	}
	if got[1].Level != EventLevelWarning {
		t.Errorf("events[1].Level = %s, want warning", got[1].Level)
	}
}
