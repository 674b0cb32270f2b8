package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jornadahq/jornada/internal/domain"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS workers (
		worker_id TEXT PRIMARY KEY,
		display_name TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS projects (
		project_id TEXT PRIMARY KEY,
		name TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS tasks (
		project_id TEXT NOT NULL,
		task_id TEXT NOT NULL,
		name TEXT NOT NULL,
		PRIMARY KEY (project_id, task_id)
	);

	CREATE TABLE IF NOT EXISTS time_entries (
		id TEXT PRIMARY KEY,
		worker_id TEXT NOT NULL,
		project_id TEXT NOT NULL,
		task_id TEXT NOT NULL,
		entry_date TEXT NOT NULL,
		start_time TEXT NOT NULL,
		lunch_start_time TEXT,
		lunch_end_time TEXT,
		end_time TEXT,
		effective_hours REAL NOT NULL,
		status TEXT NOT NULL,
		notes TEXT NOT NULL DEFAULT '',
		progress_percentage REAL NOT NULL DEFAULT 0,
		pause_count INTEGER NOT NULL DEFAULT 0,
		progress_justification TEXT NOT NULL DEFAULT '',
		seq INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_entries_worker ON time_entries(worker_id, seq);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// AppendEntry persists an emitted time entry. Insert only: emitted entries
// are immutable.
func (s *SQLiteStore) AppendEntry(ctx context.Context, entry *domain.TimeEntry) error {
	query := `
	INSERT INTO time_entries (
		id, worker_id, project_id, task_id, entry_date, start_time,
		lunch_start_time, lunch_end_time, end_time, effective_hours,
		status, notes, progress_percentage, pause_count,
		progress_justification, seq
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?,
		(SELECT COALESCE(MAX(seq), 0) + 1 FROM time_entries))`

	_, err := s.db.ExecContext(ctx, query,
		entry.ID, entry.UserID, entry.ProjectID, entry.TaskID,
		entry.Date, entry.StartTime,
		nullableString(entry.LunchStartTime), nullableString(entry.LunchEndTime),
		nullableString(entry.EndTime), entry.EffectiveHours,
		string(entry.Status), entry.Notes, entry.ProgressPercentage,
		entry.PauseCount, entry.ProgressJustification,
	)
	if err != nil {
		return fmt.Errorf("insert time entry: %w", err)
	}
	return nil
}

// ListEntriesByWorker returns a worker's entries in emission order.
func (s *SQLiteStore) ListEntriesByWorker(ctx context.Context, workerID string) ([]*domain.TimeEntry, error) {
	query := `
	SELECT id, worker_id, project_id, task_id, entry_date, start_time,
	       lunch_start_time, lunch_end_time, end_time, effective_hours,
	       status, notes, progress_percentage, pause_count,
	       progress_justification
	FROM time_entries WHERE worker_id = ? ORDER BY seq`

	rows, err := s.db.QueryContext(ctx, query, workerID)
	if err != nil {
		return nil, fmt.Errorf("query time entries: %w", err)
	}
	defer rows.Close()

	var entries []*domain.TimeEntry
	for rows.Next() {
		var entry domain.TimeEntry
		var status string
		var lunchStart, lunchEnd, endTime sql.NullString

		err := rows.Scan(
			&entry.ID, &entry.UserID, &entry.ProjectID, &entry.TaskID,
			&entry.Date, &entry.StartTime,
			&lunchStart, &lunchEnd, &endTime, &entry.EffectiveHours,
			&status, &entry.Notes, &entry.ProgressPercentage,
			&entry.PauseCount, &entry.ProgressJustification,
		)
		if err != nil {
			return nil, fmt.Errorf("scan time entry row: %w", err)
		}

		entry.Status = domain.Status(status)
		entry.LunchStartTime = optionalString(lunchStart)
		entry.LunchEndTime = optionalString(lunchEnd)
		entry.EndTime = optionalString(endTime)
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate time entries: %w", err)
	}
	return entries, nil
}

// GetWorker retrieves a worker by ID.
func (s *SQLiteStore) GetWorker(ctx context.Context, workerID string) (*domain.Worker, error) {
	query := `SELECT worker_id, display_name, created_at, updated_at FROM workers WHERE worker_id = ?`
	row := s.db.QueryRowContext(ctx, query, workerID)

	var worker domain.Worker
	var createdAt, updatedAt int64
	err := row.Scan(&worker.WorkerID, &worker.DisplayName, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan worker row: %w", err)
	}

	worker.CreatedAt = time.Unix(createdAt, 0)
	worker.UpdatedAt = time.Unix(updatedAt, 0)
	return &worker, nil
}

// UpsertWorker creates or updates a worker record.
func (s *SQLiteStore) UpsertWorker(ctx context.Context, worker *domain.Worker) error {
	query := `
	INSERT INTO workers (worker_id, display_name, created_at, updated_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(worker_id) DO UPDATE SET
		display_name = excluded.display_name,
		updated_at = excluded.updated_at`

	_, err := s.db.ExecContext(ctx, query,
		worker.WorkerID, worker.DisplayName,
		worker.CreatedAt.Unix(), worker.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert worker: %w", err)
	}
	return nil
}

// ListProjects returns the project directory with tasks attached.
func (s *SQLiteStore) ListProjects(ctx context.Context) ([]*domain.Project, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT project_id, name FROM projects ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query projects: %w", err)
	}
	defer rows.Close()

	var projects []*domain.Project
	byID := make(map[string]*domain.Project)
	for rows.Next() {
		var p domain.Project
		if err := rows.Scan(&p.ID, &p.Name); err != nil {
			return nil, fmt.Errorf("scan project row: %w", err)
		}
		projects = append(projects, &p)
		byID[p.ID] = &p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projects: %w", err)
	}

	taskRows, err := s.db.QueryContext(ctx, `SELECT project_id, task_id, name FROM tasks ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer taskRows.Close()

	for taskRows.Next() {
		var projectID string
		var task domain.Task
		if err := taskRows.Scan(&projectID, &task.ID, &task.Name); err != nil {
			return nil, fmt.Errorf("scan task row: %w", err)
		}
		if p, ok := byID[projectID]; ok {
			p.Tasks = append(p.Tasks, task)
		}
	}
	if err := taskRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return projects, nil
}

// UpsertProject creates or replaces a project and its tasks.
func (s *SQLiteStore) UpsertProject(ctx context.Context, project *domain.Project) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin project upsert: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
	INSERT INTO projects (project_id, name) VALUES (?, ?)
	ON CONFLICT(project_id) DO UPDATE SET name = excluded.name`,
		project.ID, project.Name)
	if err != nil {
		return fmt.Errorf("upsert project: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE project_id = ?`, project.ID); err != nil {
		return fmt.Errorf("clear project tasks: %w", err)
	}
	for _, task := range project.Tasks {
		_, err := tx.ExecContext(ctx, `INSERT INTO tasks (project_id, task_id, name) VALUES (?, ?, ?)`,
			project.ID, task.ID, task.Name)
		if err != nil {
			return fmt.Errorf("insert task: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit project upsert: %w", err)
	}
	return nil
}

// TaskName resolves a task's display name.
func (s *SQLiteStore) TaskName(ctx context.Context, projectID, taskID string) (string, error) {
	var name string
	err := s.db.QueryRowContext(ctx,
		`SELECT name FROM tasks WHERE project_id = ? AND task_id = ?`,
		projectID, taskID).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("query task name: %w", err)
	}
	return name, nil
}

func nullableString(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

func optionalString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
