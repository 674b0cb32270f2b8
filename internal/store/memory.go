package store

import (
	"context"
	"sync"

	"github.com/jornadahq/jornada/internal/domain"
)

// MemoryStore is an in-memory Repository used in tests and as a throwaway
// sink for embedded use of the timer core.
type MemoryStore struct {
	mu       sync.RWMutex
	entries  []*domain.TimeEntry
	workers  map[string]*domain.Worker
	projects map[string]*domain.Project
	order    []string
}

// NewMemory creates an empty in-memory repository.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		workers:  make(map[string]*domain.Worker),
		projects: make(map[string]*domain.Project),
	}
}

// AppendEntry stores a copy of the entry in emission order.
func (m *MemoryStore) AppendEntry(_ context.Context, entry *domain.TimeEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *entry
	m.entries = append(m.entries, &copied)
	return nil
}

// ListEntriesByWorker returns the worker's entries in emission order.
func (m *MemoryStore) ListEntriesByWorker(_ context.Context, workerID string) ([]*domain.TimeEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.TimeEntry
	for _, e := range m.entries {
		if e.UserID == workerID {
			copied := *e
			out = append(out, &copied)
		}
	}
	return out, nil
}

// AllEntries returns every stored entry in emission order.
func (m *MemoryStore) AllEntries() []*domain.TimeEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.TimeEntry, 0, len(m.entries))
	for _, e := range m.entries {
		copied := *e
		out = append(out, &copied)
	}
	return out
}

// GetWorker retrieves a worker, or nil when unknown.
func (m *MemoryStore) GetWorker(_ context.Context, workerID string) (*domain.Worker, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.workers[workerID]
	if !ok {
		return nil, nil
	}
	copied := *w
	return &copied, nil
}

// UpsertWorker creates or updates a worker record.
func (m *MemoryStore) UpsertWorker(_ context.Context, worker *domain.Worker) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *worker
	m.workers[worker.WorkerID] = &copied
	return nil
}

// ListProjects returns the project directory.
func (m *MemoryStore) ListProjects(_ context.Context) ([]*domain.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.Project, 0, len(m.order))
	for _, id := range m.order {
		copied := *m.projects[id]
		out = append(out, &copied)
	}
	return out, nil
}

// UpsertProject creates or replaces a project and its tasks.
func (m *MemoryStore) UpsertProject(_ context.Context, project *domain.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.projects[project.ID]; !exists {
		m.order = append(m.order, project.ID)
	}
	copied := *project
	copied.Tasks = append([]domain.Task(nil), project.Tasks...)
	m.projects[project.ID] = &copied
	return nil
}

// TaskName resolves a task's display name.
func (m *MemoryStore) TaskName(_ context.Context, projectID, taskID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.projects[projectID]
	if !ok {
		return "", ErrNotFound
	}
	for _, t := range p.Tasks {
		if t.ID == taskID {
			return t.Name, nil
		}
	}
	return "", ErrNotFound
}

// Ping always succeeds.
func (m *MemoryStore) Ping(context.Context) error { return nil }

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }
