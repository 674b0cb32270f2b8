package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jornadahq/jornada/internal/domain"
	"github.com/jornadahq/jornada/internal/identity"
	"github.com/jornadahq/jornada/internal/store"
	"github.com/jornadahq/jornada/internal/timer"
)

// EntriesHandler serves the worker's emitted time entries and the
// project/task directory.
type EntriesHandler struct {
	repo   store.Repository
	clock  timer.Clock
	policy timer.Policy
}

// NewEntriesHandler creates an entries handler.
func NewEntriesHandler(repo store.Repository, clock timer.Clock, policy timer.Policy) *EntriesHandler {
	if clock == nil {
		clock = timer.SystemClock()
	}
	return &EntriesHandler{repo: repo, clock: clock, policy: policy}
}

// RegisterRoutes registers entry and directory routes.
func (h *EntriesHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/entries", h.ListEntries)
	r.Get("/api/projects", h.ListProjects)
}

// ListEntries returns the worker's entries in emission order. The editable
// flag is recomputed against the current clock on every read; it is never
// trusted from storage.
func (h *EntriesHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	workerID := identity.WorkerIDFromContext(r.Context())
	entries, err := h.repo.ListEntriesByWorker(r.Context(), workerID)
	if err != nil {
		Error(w, http.StatusInternalServerError, "failed to list entries")
		return
	}

	now := h.clock.Now()
	for _, e := range entries {
		e.Editable = e.EditableAt(now, h.editWindow())
	}
	if entries == nil {
		entries = []*domain.TimeEntry{}
	}
	JSON(w, http.StatusOK, entries)
}

// ListProjects returns the project directory.
func (h *EntriesHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.repo.ListProjects(r.Context())
	if err != nil {
		Error(w, http.StatusInternalServerError, "failed to list projects")
		return
	}
	JSON(w, http.StatusOK, projects)
}

func (h *EntriesHandler) editWindow() time.Duration {
	if h.policy.EditWindow > 0 {
		return h.policy.EditWindow
	}
	return timer.DefaultPolicy().EditWindow
}
