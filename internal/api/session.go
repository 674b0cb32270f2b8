package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jornadahq/jornada/internal/identity"
	"github.com/jornadahq/jornada/internal/timer"
)

// SessionHandler exposes the jornada command/query surface. Commands that
// are not valid from the current state respond with applied=false rather
// than an error: the caller UI pre-gates actions, so an invalid command is
// a benign no-op, not a fault.
type SessionHandler struct {
	mgr *timer.Manager
}

// NewSessionHandler creates a session handler backed by the given registry.
func NewSessionHandler(mgr *timer.Manager) *SessionHandler {
	return &SessionHandler{mgr: mgr}
}

// RegisterRoutes registers the session routes.
func (h *SessionHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/session", func(r chi.Router) {
		r.Get("/", h.Status)
		r.Post("/start", h.Start)
		r.Post("/lunch/start", h.StartLunch)
		r.Post("/lunch/end", h.EndLunch)
		r.Post("/pause", h.Pause)
		r.Post("/resume", h.Resume)
		r.Post("/switch", h.SwitchTask)
		r.Post("/end", h.EndDay)
		r.Post("/acknowledge", h.Acknowledge)
		r.Post("/progress", h.RecordProgress)
		r.Post("/milestone", h.RecordMilestone)
		r.Post("/milestone/dismiss", h.DismissMilestone)
		r.Post("/alerts/lunch/dismiss", h.DismissLunchAlert)
		r.Post("/alerts/end/dismiss", h.DismissEndWarning)
	})
}

func (h *SessionHandler) session(r *http.Request) *timer.Jornada {
	return h.mgr.GetOrCreate(identity.WorkerIDFromContext(r.Context()))
}

func (h *SessionHandler) respond(w http.ResponseWriter, j *timer.Jornada, applied bool) {
	JSON(w, http.StatusOK, map[string]interface{}{
		"applied": applied,
		"session": j.Snapshot(),
	})
}

// Status returns the live session snapshot.
func (h *SessionHandler) Status(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, h.session(r).Snapshot())
}

type taskRequest struct {
	ProjectID string `json:"projectId"`
	TaskID    string `json:"taskId"`
}

// Start begins a new jornada.
func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	j := h.session(r)
	h.respond(w, j, j.Start(req.ProjectID, req.TaskID))
}

// SwitchTask reassigns the running session to a new task.
func (h *SessionHandler) SwitchTask(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	j := h.session(r)
	h.respond(w, j, j.SwitchTask(req.ProjectID, req.TaskID))
}

// StartLunch moves the session to lunch.
func (h *SessionHandler) StartLunch(w http.ResponseWriter, r *http.Request) {
	j := h.session(r)
	h.respond(w, j, j.StartLunch())
}

// EndLunch resumes work after lunch.
func (h *SessionHandler) EndLunch(w http.ResponseWriter, r *http.Request) {
	j := h.session(r)
	h.respond(w, j, j.EndLunch())
}

// Pause suspends work.
func (h *SessionHandler) Pause(w http.ResponseWriter, r *http.Request) {
	j := h.session(r)
	h.respond(w, j, j.Pause())
}

// Resume returns to work after a pause.
func (h *SessionHandler) Resume(w http.ResponseWriter, r *http.Request) {
	j := h.session(r)
	h.respond(w, j, j.Resume())
}

// EndDay finishes the session and emits the final entry.
func (h *SessionHandler) EndDay(w http.ResponseWriter, r *http.Request) {
	j := h.session(r)
	h.respond(w, j, j.EndDay())
}

// Acknowledge clears a finished session back to inactive.
func (h *SessionHandler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	j := h.session(r)
	h.respond(w, j, j.Acknowledge())
}

type progressRequest struct {
	Percentage float64 `json:"percentage"`
	Note       string  `json:"note"`
}

// RecordProgress appends a manual progress note.
func (h *SessionHandler) RecordProgress(w http.ResponseWriter, r *http.Request) {
	var req progressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	j := h.session(r)
	h.respond(w, j, j.RecordProgress(req.Percentage, req.Note))
}

type milestoneRequest struct {
	Description string `json:"description"`
}

// RecordMilestone resolves the pending hourly prompt with a description.
func (h *SessionHandler) RecordMilestone(w http.ResponseWriter, r *http.Request) {
	var req milestoneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	j := h.session(r)
	h.respond(w, j, j.RecordMilestone(req.Description))
}

// DismissMilestone resolves the pending hourly prompt without a description.
func (h *SessionHandler) DismissMilestone(w http.ResponseWriter, r *http.Request) {
	j := h.session(r)
	h.respond(w, j, j.DismissMilestonePrompt())
}

// DismissLunchAlert hides the mandatory-lunch alert.
func (h *SessionHandler) DismissLunchAlert(w http.ResponseWriter, r *http.Request) {
	j := h.session(r)
	h.respond(w, j, j.DismissLunchAlert())
}

// DismissEndWarning hides the end-of-day warning.
func (h *SessionHandler) DismissEndWarning(w http.ResponseWriter, r *http.Request) {
	j := h.session(r)
	h.respond(w, j, j.DismissEndWarning())
}
