// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"errors"

	"github.com/jornadahq/jornada/internal/domain"
)

// ErrNotFound is returned when a referenced record does not exist.
var ErrNotFound = errors.New("record not found")

// Repository defines persistence for time entries, the project/task
// directory, and worker identity. Time entries are append-only: the store
// never rewrites an emitted entry.
type Repository interface {
	// AppendEntry persists an emitted time entry. Entries for a session
	// are appended in emission order and never deduplicated.
	AppendEntry(ctx context.Context, entry *domain.TimeEntry) error

	// ListEntriesByWorker returns a worker's entries in emission order.
	ListEntriesByWorker(ctx context.Context, workerID string) ([]*domain.TimeEntry, error)

	// GetWorker retrieves a worker, or nil when unknown.
	GetWorker(ctx context.Context, workerID string) (*domain.Worker, error)

	// UpsertWorker creates or updates a worker record.
	UpsertWorker(ctx context.Context, worker *domain.Worker) error

	// ListProjects returns the project directory with tasks attached.
	ListProjects(ctx context.Context) ([]*domain.Project, error)

	// UpsertProject creates or replaces a project and its tasks.
	UpsertProject(ctx context.Context, project *domain.Project) error

	// TaskName resolves a task's display name. Returns ErrNotFound for
	// unknown project/task pairs.
	TaskName(ctx context.Context, projectID, taskID string) (string, error)

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error

	// Close releases the underlying resources.
	Close() error
}
