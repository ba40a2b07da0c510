package stores_test

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/vaultbuild/vaultbuild/pkg/stores"
)

// ExampleNewSQLiteStore demonstrates creating and initializing a new SQLite store.
func ExampleNewSQLiteStore() {
	store, err := stores.NewSQLiteStore(stores.Config{
		Path:            ":memory:", // Use in-memory database for example
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	})
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		log.Fatal(err)
	}

	if err := store.Migrate(ctx); err != nil {
		log.Fatal(err)
	}

	defer store.Close()

	fmt.Println("Store initialized successfully")
	// Output: Store initialized successfully
}

// ExampleSQLiteStore_SaveSession demonstrates persisting a wizard session.
func ExampleSQLiteStore_SaveSession() {
	store, _ := stores.NewSQLiteStore(stores.Config{Path: ":memory:"})
	ctx := context.Background()
	_ = store.Init(ctx)
	_ = store.Migrate(ctx)
	defer store.Close()

	session := &stores.WizardSession{
		ProjectID:          "proj-001",
		CurrentStep:        3,
		SelectedFolderPath: "/home/user/myapp",
		EntryFile:          "src/main.py",
		DistributionType:   "portable",
	}

	if err := store.SaveSession(ctx, session); err != nil {
		log.Fatal(err)
	}

	loaded, state, err := store.LoadSession(ctx, "proj-001", 24*time.Hour)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("State: %v, Step: %d, Entry: %s\n", state == stores.SessionValid, loaded.CurrentStep, loaded.EntryFile)
	// Output: State: true, Step: 3, Entry: src/main.py
}

// ExampleSQLiteStore_CreateBuild demonstrates recording a build and its events.
func ExampleSQLiteStore_CreateBuild() {
	store, _ := stores.NewSQLiteStore(stores.Config{Path: ":memory:"})
	ctx := context.Background()
	_ = store.Init(ctx)
	_ = store.Migrate(ctx)
	defer store.Close()

	now := time.Now()
	build := &stores.Build{
		ID:        "job-001",
		ProjectID: "proj-001",
		Status:    stores.BuildStatusRunning,
		EntryFile: "main.py",
		StartedAt: now,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := store.CreateBuild(ctx, build); err != nil {
		log.Fatal(err)
	}

	event := &stores.BuildEvent{
		JobID:     "job-001",
		ProjectID: "proj-001",
		Level:     stores.EventLevelInfo,
		Message:   "Compiling sources",
		Timestamp: now,
	}
	if err := store.AppendBuildEvent(ctx, event); err != nil {
		log.Fatal(err)
	}

	events, err := store.GetBuildEvents(ctx, "job-001", 10, 0)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Build %s: %d event(s), first: %s\n", build.ID, len(events), events[0].Message)
	// Output: Build job-001: 1 event(s), first: Compiling sources
}
