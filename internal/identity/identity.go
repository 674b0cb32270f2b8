// Package identity provides anonymous per-device worker identity.
package identity

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/jornadahq/jornada/internal/domain"
	"github.com/jornadahq/jornada/internal/store"
)

const (
	WorkerCookieName   = "jornada_worker_id"
	workerCookieMaxAge = 30 * 24 * time.Hour
)

type contextKey int

const workerIDKey contextKey = iota

var workerIDPattern = regexp.MustCompile(`^w_[a-f0-9]{32}$`)

// WorkerIDFromContext extracts the worker ID from the request context.
func WorkerIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(workerIDKey).(string); ok {
		return v
	}
	return ""
}

func generateWorkerID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate worker id: %w", err)
	}
	return "w_" + hex.EncodeToString(buf), nil
}

func isValidWorkerID(id string) bool {
	return workerIDPattern.MatchString(id)
}

func deriveDisplayName(workerID string) string {
	if len(workerID) > 10 {
		return "worker-" + workerID[len(workerID)-8:]
	}
	return "worker"
}

func ensureWorker(ctx context.Context, repo store.Repository, workerID string) error {
	worker, err := repo.GetWorker(ctx, workerID)
	if err != nil {
		return err
	}
	if worker != nil {
		return nil
	}

	now := time.Now()
	return repo.UpsertWorker(ctx, &domain.Worker{
		WorkerID:    workerID,
		DisplayName: deriveDisplayName(workerID),
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

func getOrCreateWorkerID(w http.ResponseWriter, r *http.Request, isDev bool) (string, error) {
	if c, err := r.Cookie(WorkerCookieName); err == nil && isValidWorkerID(c.Value) {
		setWorkerCookie(w, c.Value, isDev)
		return c.Value, nil
	}

	id, err := generateWorkerID()
	if err != nil {
		return "", err
	}
	setWorkerCookie(w, id, isDev)
	return id, nil
}

func setWorkerCookie(w http.ResponseWriter, id string, isDev bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     WorkerCookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(workerCookieMaxAge.Seconds()),
		Expires:  time.Now().Add(workerCookieMaxAge),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   !isDev,
	})
}

// Middleware injects an anonymous per-device worker identity, provisioning
// the worker record on first sight.
func Middleware(repo store.Repository, isDev bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			workerID, err := getOrCreateWorkerID(w, r, isDev)
			if err != nil {
				http.Error(w, `{"error":"failed to establish worker identity"}`, http.StatusInternalServerError)
				return
			}

			if err := ensureWorker(r.Context(), repo, workerID); err != nil {
				http.Error(w, `{"error":"failed to provision worker"}`, http.StatusInternalServerError)
				return
			}

			ctx := context.WithValue(r.Context(), workerIDKey, workerID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithWorkerID returns a context carrying the worker ID. Intended for
// tests and non-HTTP callers.
func WithWorkerID(ctx context.Context, workerID string) context.Context {
	return context.WithValue(ctx, workerIDKey, workerID)
}
