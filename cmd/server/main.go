// Jornada - workday session tracking server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/jornadahq/jornada/internal/api"
	"github.com/jornadahq/jornada/internal/config"
	"github.com/jornadahq/jornada/internal/identity"
	"github.com/jornadahq/jornada/internal/middleware"
	"github.com/jornadahq/jornada/internal/store"
	"github.com/jornadahq/jornada/internal/timer"
	"github.com/jornadahq/jornada/internal/ws"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	policy, err := config.LoadPolicy(cfg.PolicyPath)
	if err != nil {
		slog.Error("Failed to load workday policy", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server",
		"port", cfg.Port,
		"dev", cfg.IsDevelopment(),
		"workday_cap", policy.WorkdayCap,
		"lunch_after", policy.LunchAfter)

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	// Seed the project/task directory.
	projects, err := config.LoadProjects(cfg.ProjectsPath)
	if err != nil {
		slog.Error("Failed to load project directory", "error", err)
		os.Exit(1)
	}
	for _, project := range projects {
		if err := repo.UpsertProject(context.Background(), project); err != nil {
			slog.Error("Failed to seed project", "error", err, "project_id", project.ID)
			os.Exit(1)
		}
	}
	if len(projects) > 0 {
		slog.Info("Project directory seeded", "count", len(projects))
	}

	// Initialize the timer core.
	emitter := timer.NewEmitter(repo, repo)
	mgr := timer.NewManager(policy, timer.SystemClock(), emitter)
	defer mgr.CloseAll()

	// Initialize handlers.
	sessionHandler := api.NewSessionHandler(mgr)
	entriesHandler := api.NewEntriesHandler(repo, timer.SystemClock(), policy)
	healthHandler := api.NewHealthHandler(repo)
	feedHandler := ws.NewFeedHandler(mgr, cfg.FrontendURL, cfg.IsDevelopment())

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.CORS([]string{"*"}))
	r.Use(identity.Middleware(repo, cfg.IsDevelopment()))

	// Routes.
	healthHandler.RegisterHealth(r)
	sessionHandler.RegisterRoutes(r)
	entriesHandler.RegisterRoutes(r)
	r.Get("/ws/session", feedHandler.ServeHTTP)

	// Create server.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // 0 = no timeout, the session feed is long-lived
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	mgr.CloseAll()
	slog.Info("Server stopped successfully")
}
