// Package ws streams live session updates to the worker's UI over
// WebSocket.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/jornadahq/jornada/internal/domain"
	"github.com/jornadahq/jornada/internal/identity"
	"github.com/jornadahq/jornada/internal/timer"
)

// FeedHandler upgrades connections and forwards session events.
type FeedHandler struct {
	mgr           *timer.Manager
	allowedOrigin string
	isDev         bool
}

// NewFeedHandler creates a feed handler.
func NewFeedHandler(mgr *timer.Manager, allowedOrigin string, isDev bool) *FeedHandler {
	return &FeedHandler{mgr: mgr, allowedOrigin: allowedOrigin, isDev: isDev}
}

// feedMessage is the wire shape of one session event.
type feedMessage struct {
	Type         timer.EventType   `json:"type"`
	Status       domain.Status     `json:"status"`
	WorkSeconds  int               `json:"workSeconds"`
	LunchSeconds int               `json:"lunchSeconds"`
	PauseSeconds int               `json:"pauseSeconds"`
	Hour         int               `json:"hour,omitempty"`
	Entry        *domain.TimeEntry `json:"entry,omitempty"`
	At           time.Time         `json:"at"`
}

// ServeHTTP implements http.Handler for the WebSocket upgrade.
func (h *FeedHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	workerID := identity.WorkerIDFromContext(r.Context())
	slog.Info("session feed connection request", "worker_id", workerID, "ip", r.RemoteAddr)

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("failed to accept session feed WebSocket", "error", err, "worker_id", workerID)
		return
	}
	defer func() {
		if closeErr := conn.Close(websocket.StatusNormalClosure, "feed closed"); closeErr != nil {
			slog.Debug("session feed close", "error", closeErr)
		}
	}()

	session := h.mgr.GetOrCreate(workerID)
	events := session.Subscribe(32)
	defer session.Unsubscribe(events)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Drain client frames so pings are answered and disconnects are
	// noticed promptly.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}()

	// Send the current state immediately so the client does not wait for
	// the next tick.
	snap := session.Snapshot()
	first := feedMessage{
		Type:         timer.EventStateChange,
		Status:       snap.Status,
		WorkSeconds:  snap.ElapsedWorkSeconds,
		LunchSeconds: snap.ElapsedLunchSeconds,
		PauseSeconds: snap.ElapsedPauseSeconds,
		At:           time.Now(),
	}
	if err := writeJSON(ctx, conn, first); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			msg := feedMessage{
				Type:         event.Type,
				Status:       event.Status,
				WorkSeconds:  event.WorkSeconds,
				LunchSeconds: event.LunchSeconds,
				PauseSeconds: event.PauseSeconds,
				Hour:         event.Hour,
				Entry:        event.Entry,
				At:           event.At,
			}
			if err := writeJSON(ctx, conn, msg); err != nil {
				slog.Debug("session feed write failed", "error", err, "worker_id", workerID)
				return
			}
		}
	}
}

func writeJSON(ctx context.Context, conn *websocket.Conn, v interface{}) error {
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return conn.Write(writeCtx, websocket.MessageText, data)
}

func (h *FeedHandler) checkOrigin(r *http.Request) bool {
	if h.isDev || h.allowedOrigin == "" {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}
	allowed, err := url.Parse(h.allowedOrigin)
	if err != nil {
		return false
	}
	return strings.EqualFold(parsed.Host, allowed.Host)
}
