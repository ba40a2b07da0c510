package stores

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// sqliteTimeFormat is the datetime layout SQLite's datetime() understands.
const sqliteTimeFormat = "2006-01-02 15:04:05"

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// Config holds SQLite store configuration
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	return &SQLiteStore{
		path: cfg.Path,
	}, nil
}

// Init initializes the database connection and enables WAL mode.
func (s *SQLiteStore) Init(ctx context.Context) error {
	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_txlock=immediate", s.path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	// Ensure foreign keys are enabled (connection-level setting)
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// BeginTx starts a new transaction
func (s *SQLiteStore) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelSerializable,
	})
}

// CommitTx commits a transaction
func (s *SQLiteStore) CommitTx(tx *sql.Tx) error {
	return tx.Commit()
}

// RollbackTx rolls back a transaction
func (s *SQLiteStore) RollbackTx(tx *sql.Tx) error {
	return tx.Rollback()
}

// SaveSession inserts or updates a project's wizard session. SavedAt is
// always refreshed to the current time, restarting the staleness window.
func (s *SQLiteStore) SaveSession(ctx context.Context, session *WizardSession) error {
	query := `
		INSERT INTO wizard_sessions (
			project_id, current_step, completed_steps, protection_mode,
			selected_folder_path, entry_file,
			license_key, env_values, distribution_type,
			create_desktop_shortcut, create_start_menu, publisher,
			demo_duration_minutes, saved_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(project_id) DO UPDATE SET
			current_step = excluded.current_step,
			completed_steps = excluded.completed_steps,
			protection_mode = excluded.protection_mode,
			selected_folder_path = excluded.selected_folder_path,
			entry_file = excluded.entry_file,
			license_key = excluded.license_key,
			env_values = excluded.env_values,
			distribution_type = excluded.distribution_type,
			create_desktop_shortcut = excluded.create_desktop_shortcut,
			create_start_menu = excluded.create_start_menu,
			publisher = excluded.publisher,
			demo_duration_minutes = excluded.demo_duration_minutes,
			saved_at = excluded.saved_at,
			updated_at = excluded.updated_at
	`

	now := time.Now().UTC()
	session.SavedAt = now
	if session.CompletedSteps == "" {
		session.CompletedSteps = "[]"
	}
	if session.ProtectionMode == "" {
		session.ProtectionMode = ProtectionGeneric
	}

	_, err := s.db.ExecContext(ctx, query,
		session.ProjectID,
		session.CurrentStep,
		session.CompletedSteps,
		session.ProtectionMode,
		session.SelectedFolderPath,
		session.EntryFile,
		session.LicenseKey,
		session.EnvValues,
		session.DistributionType,
		session.CreateDesktopShortcut,
		session.CreateStartMenu,
		session.Publisher,
		session.DemoDurationMinutes,
		now.Format(sqliteTimeFormat),
		now.Format(sqliteTimeFormat),
		now.Format(sqliteTimeFormat),
	)

	if err != nil {
		return fmt.Errorf("failed to save wizard session: %w", err)
	}

	return nil
}

// LoadSession retrieves a project's wizard session and classifies it against
// the TTL. An expired session is returned alongside SessionExpired so the
// caller can surface or discard it; absence is not an error.
func (s *SQLiteStore) LoadSession(ctx context.Context, projectID string, ttl time.Duration) (*WizardSession, SessionState, error) {
	query := `
		SELECT project_id, current_step, completed_steps, protection_mode,
			   selected_folder_path, entry_file,
			   license_key, env_values, distribution_type,
			   create_desktop_shortcut, create_start_menu, publisher,
			   demo_duration_minutes, saved_at, created_at, updated_at
		FROM wizard_sessions
		WHERE project_id = ?
	`

	session := &WizardSession{}
	err := s.db.QueryRowContext(ctx, query, projectID).Scan(
		&session.ProjectID,
		&session.CurrentStep,
		&session.CompletedSteps,
		&session.ProtectionMode,
		&session.SelectedFolderPath,
		&session.EntryFile,
		&session.LicenseKey,
		&session.EnvValues,
		&session.DistributionType,
		&session.CreateDesktopShortcut,
		&session.CreateStartMenu,
		&session.Publisher,
		&session.DemoDurationMinutes,
		&session.SavedAt,
		&session.CreatedAt,
		&session.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, SessionAbsent, nil
	}
	if err != nil {
		return nil, SessionAbsent, fmt.Errorf("failed to load wizard session: %w", err)
	}

	if ttl > 0 && time.Since(session.SavedAt) > ttl {
		return session, SessionExpired, nil
	}

	return session, SessionValid, nil
}

// DeleteSession removes a project's wizard session. Deleting a session that
// does not exist is not an error.
func (s *SQLiteStore) DeleteSession(ctx context.Context, projectID string) error {
	query := `DELETE FROM wizard_sessions WHERE project_id = ?`

	if _, err := s.db.ExecContext(ctx, query, projectID); err != nil {
		return fmt.Errorf("failed to delete wizard session: %w", err)
	}

	return nil
}

// PurgeStaleSessions deletes all sessions older than the TTL and returns the
// number removed.
func (s *SQLiteStore) PurgeStaleSessions(ctx context.Context, ttl time.Duration) (int64, error) {
	query := `DELETE FROM wizard_sessions WHERE datetime(saved_at) <= datetime(?)`

	cutoff := time.Now().UTC().Add(-ttl).Format(sqliteTimeFormat)

	result, err := s.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge stale sessions: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows, nil
}

// CreateBuild creates a new build record
func (s *SQLiteStore) CreateBuild(ctx context.Context, build *Build) error {
	query := `
		INSERT INTO builds (id, project_id, status, entry_file, output_path, error, started_at, completed_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		build.ID,
		build.ProjectID,
		build.Status,
		build.EntryFile,
		build.OutputPath,
		build.Error,
		build.StartedAt,
		build.CompletedAt,
		build.CreatedAt,
		build.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create build: %w", err)
	}

	return nil
}

// GetBuild retrieves a build by ID
func (s *SQLiteStore) GetBuild(ctx context.Context, id string) (*Build, error) {
	query := `
		SELECT id, project_id, status, entry_file, output_path, error, started_at, completed_at, created_at, updated_at
		FROM builds
		WHERE id = ?
	`

	build := &Build{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&build.ID,
		&build.ProjectID,
		&build.Status,
		&build.EntryFile,
		&build.OutputPath,
		&build.Error,
		&build.StartedAt,
		&build.CompletedAt,
		&build.CreatedAt,
		&build.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("build not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get build: %w", err)
	}

	return build, nil
}

// UpdateBuildStatus updates the status of a build, recording the completion
// time when the status is terminal.
func (s *SQLiteStore) UpdateBuildStatus(ctx context.Context, id string, status BuildStatus, outputPath, errMsg *string) error {
	query := `
		UPDATE builds
		SET status = ?,
			output_path = COALESCE(?, output_path),
			error = ?,
			completed_at = ?
		WHERE id = ?
	`

	var completedAt *time.Time
	if status == BuildStatusCompleted || status == BuildStatusFailed || status == BuildStatusCancelled {
		now := time.Now()
		completedAt = &now
	}

	result, err := s.db.ExecContext(ctx, query, status, outputPath, errMsg, completedAt, id)
	if err != nil {
		return fmt.Errorf("failed to update build status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("build not found: %s", id)
	}

	return nil
}

// LatestBuildForProject returns the most recently started build for a
// project, or nil if the project has never built.
func (s *SQLiteStore) LatestBuildForProject(ctx context.Context, projectID string) (*Build, error) {
	query := `
		SELECT id, project_id, status, entry_file, output_path, error, started_at, completed_at, created_at, updated_at
		FROM builds
		WHERE project_id = ?
		ORDER BY started_at DESC
		LIMIT 1
	`

	build := &Build{}
	err := s.db.QueryRowContext(ctx, query, projectID).Scan(
		&build.ID,
		&build.ProjectID,
		&build.Status,
		&build.EntryFile,
		&build.OutputPath,
		&build.Error,
		&build.StartedAt,
		&build.CompletedAt,
		&build.CreatedAt,
		&build.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest build: %w", err)
	}

	return build, nil
}

// ListBuildsByProject lists a project's builds with pagination, newest first
func (s *SQLiteStore) ListBuildsByProject(ctx context.Context, projectID string, limit, offset int) ([]*Build, error) {
	query := `
		SELECT id, project_id, status, entry_file, output_path, error, started_at, completed_at, created_at, updated_at
		FROM builds
		WHERE project_id = ?
		ORDER BY started_at DESC
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, projectID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list builds: %w", err)
	}
	defer rows.Close()

	builds := []*Build{}
	for rows.Next() {
		build := &Build{}
		err := rows.Scan(
			&build.ID,
			&build.ProjectID,
			&build.Status,
			&build.EntryFile,
			&build.OutputPath,
			&build.Error,
			&build.StartedAt,
			&build.CompletedAt,
			&build.CreatedAt,
			&build.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan build: %w", err)
		}
		builds = append(builds, build)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating builds: %w", err)
	}

	return builds, nil
}

// DeleteBuild deletes a build by ID
func (s *SQLiteStore) DeleteBuild(ctx context.Context, id string) error {
	query := `DELETE FROM builds WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete build: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("build not found: %s", id)
	}

	return nil
}

// AppendBuildEvent appends a new event to the build log
func (s *SQLiteStore) AppendBuildEvent(ctx context.Context, event *BuildEvent) error {
	query := `
		INSERT INTO build_events (job_id, project_id, level, message, progress, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.ExecContext(ctx, query,
		event.JobID,
		event.ProjectID,
		event.Level,
		event.Message,
		event.Progress,
		event.Timestamp,
	)

	if err != nil {
		return fmt.Errorf("failed to append build event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get build event ID: %w", err)
	}

	event.ID = id
	return nil
}

// GetBuildEvents retrieves a build's events with pagination, oldest first
func (s *SQLiteStore) GetBuildEvents(ctx context.Context, jobID string, limit, offset int) ([]*BuildEvent, error) {
	query := `
		SELECT id, job_id, project_id, level, message, progress, timestamp
		FROM build_events
		WHERE job_id = ?
		ORDER BY id ASC
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, jobID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get build events: %w", err)
	}
	defer rows.Close()

	events := []*BuildEvent{}
	for rows.Next() {
		event := &BuildEvent{}
		err := rows.Scan(
			&event.ID,
			&event.JobID,
			&event.ProjectID,
			&event.Level,
			&event.Message,
			&event.Progress,
			&event.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan build event: %w", err)
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating build events: %w", err)
	}

	return events, nil
}

// HealthCheck verifies the database connection is healthy
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	return s.db.PingContext(ctx)
}
