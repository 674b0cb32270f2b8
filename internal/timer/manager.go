package timer

import (
	"log/slog"
	"sync"
)

// Manager owns the live sessions, one per worker. Each worker's timer is
// independent and single-actor; the manager only hands out the session and
// guarantees ticker cleanup on shutdown.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Jornada
	policy   Policy
	clock    Clock
	emitter  *Emitter
}

// NewManager creates a session registry.
func NewManager(policy Policy, clock Clock, emitter *Emitter) *Manager {
	return &Manager{
		sessions: make(map[string]*Jornada),
		policy:   policy.withDefaults(),
		clock:    clock,
		emitter:  emitter,
	}
}

// Get returns the worker's session if one exists.
func (m *Manager) Get(workerID string) (*Jornada, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.sessions[workerID]
	return j, ok
}

// GetOrCreate returns the worker's session, creating it on first use.
func (m *Manager) GetOrCreate(workerID string) *Jornada {
	m.mu.RLock()
	if j, ok := m.sessions[workerID]; ok {
		m.mu.RUnlock()
		return j
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.sessions[workerID]; ok {
		return j
	}
	j := New(workerID, m.policy, m.clock, m.emitter)
	m.sessions[workerID] = j
	slog.Info("jornada session registered", "worker_id", workerID)
	return j
}

// Remove closes and forgets the worker's session.
func (m *Manager) Remove(workerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.sessions[workerID]; ok {
		j.Close()
		delete(m.sessions, workerID)
		slog.Info("jornada session removed", "worker_id", workerID)
	}
}

// CloseAll tears down every session, releasing all tickers. Used on server
// shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for workerID, j := range m.sessions {
		j.Close()
		delete(m.sessions, workerID)
	}
}

// Policy returns the policy sessions are created with.
func (m *Manager) Policy() Policy { return m.policy }
