// Package main is the entrypoint for the tubedrop HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kiranshivaraju/tubedrop/internal/api"
	"github.com/kiranshivaraju/tubedrop/internal/api/handler"
	mw "github.com/kiranshivaraju/tubedrop/internal/api/middleware"
	"github.com/kiranshivaraju/tubedrop/internal/api/response"
	"github.com/kiranshivaraju/tubedrop/internal/cache"
	"github.com/kiranshivaraju/tubedrop/internal/config"
	"github.com/kiranshivaraju/tubedrop/internal/fetcher"
	"github.com/kiranshivaraju/tubedrop/internal/jobs"
	"github.com/kiranshivaraju/tubedrop/internal/retention"
	"github.com/kiranshivaraju/tubedrop/internal/store"
	"github.com/kiranshivaraju/tubedrop/pkg/models"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config, fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.RequireServer(); err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "fetcher", cfg.Fetcher.Provider, "env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Create fetcher
	f, err := fetcher.NewFetcher(cfg.Fetcher)
	if err != nil {
		return fmt.Errorf("create fetcher: %w", err)
	}
	if err := fetcher.CheckDependencies(f); err != nil {
		slog.Warn("fetcher dependencies missing", "error", err)
	}

	// 6. Create job service
	pgStore := store.NewPostgresStore(pool)
	mode := jobs.Mode(cfg.Jobs.Mode)
	if mode == "" {
		mode = jobs.ModeUnbounded
	}
	svc, err := jobs.NewService(f, jobs.NewAdmission(mode), jobs.Options{
		DownloadDir:   cfg.Jobs.DownloadDir,
		SourcePattern: cfg.Jobs.SourcePattern,
		StatusTTL:     cfg.Jobs.StatusTTL,
		History:       pgStore,
		Mirror:        redisCache,
		Disabled:      !cfg.Jobs.DownloadEnabled,
	})
	if err != nil {
		return fmt.Errorf("create job service: %w", err)
	}
	slog.Info("job service ready", "mode", mode, "download_dir", cfg.Jobs.DownloadDir)

	// 7. Start retention sweeper
	var sweeper *retention.Sweeper
	if cfg.Retention.Schedule != "" {
		sweeper = retention.NewSweeper(cfg.Jobs.DownloadDir, cfg.Retention.MaxAge, slog.Default())
		if err := sweeper.Start(cfg.Retention.Schedule); err != nil {
			return fmt.Errorf("start retention sweeper: %w", err)
		}
		defer sweeper.Stop()
	}

	// 8. Build router with dependencies
	deps := api.Dependencies{
		RateLimit: mw.NewRateLimit(redisCache, cfg.Server.RateLimitPerMinute),

		HealthHandler: healthHandler(pgStore, redisCache, f),
		SubmitJob:     handler.NewSubmitJobHandler(svc),
		GetJob:        handler.NewGetJobHandler(svc),
		DownloadJob:   handler.NewDownloadHandler(svc),
		JobEvents:     handler.NewJobEventsHandler(svc),
	}

	if cfg.Admin.Enabled() {
		adminAuth, err := mw.NewAdminAuth(redisCache, cfg.Admin)
		if err != nil {
			return fmt.Errorf("create admin auth: %w", err)
		}
		deps.AdminAuth = adminAuth
		deps.LoginHandler = handler.NewLoginHandler(adminAuth)
		deps.LogoutHandler = handler.NewLogoutHandler(adminAuth)
		deps.HistoryHandler = handler.NewHistoryHandler(pgStore)
		deps.GetDownloads = handler.NewGetDownloadsHandler(svc)
		deps.SetDownloads = handler.NewSetDownloadsHandler(svc)
		slog.Info("admin panel enabled", "user", cfg.Admin.User)
	}

	router := api.NewRouter(deps)

	// 9. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:        addr,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// Downloads and event streams outlive a fixed write deadline.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	if err := svc.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("job shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// pinger is anything healthHandler can probe.
type pinger interface {
	Ping(ctx context.Context) error
}

// healthHandler checks database, cache and fetcher availability.
func healthHandler(db pinger, c pinger, f models.Fetcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
			"fetcher":  "ok",
		}

		if err := db.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if err := c.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}
		if err := fetcher.CheckDependencies(f); err != nil {
			checks["fetcher"] = "degraded"
		}

		for _, v := range checks {
			if v != "ok" {
				response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
					"One or more services degraded", checks)
				return
			}
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
