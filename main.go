package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/msomdec/focusvault/internal/config"
	"github.com/msomdec/focusvault/internal/handler"
	"github.com/msomdec/focusvault/internal/repository/sqlite"
	"github.com/msomdec/focusvault/internal/service"
	"github.com/msomdec/focusvault/internal/telemetry"
)

func main() {
	logOpts := &slog.HandlerOptions{Level: slog.LevelInfo}
	logger := slog.New(slog.NewMultiHandler(
		slog.NewTextHandler(os.Stdout, logOpts),
		slog.NewJSONHandler(os.Stderr, logOpts),
	))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.OTelEndpoint, cfg.OTelServiceName)
	if err != nil {
		slog.Error("failed to set up tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		tctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(tctx); err != nil {
			slog.Error("tracing shutdown error", "error", err)
		}
	}()

	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("database migrations applied")

	hub := service.NewHub()
	sessionService := service.NewSessionService(db.Sessions(), hub, service.NewTicker(cfg.TickInterval), cfg.CheckpointInterval)
	taskService := service.NewTaskService(db.Tasks(), db.Sessions(), hub)
	settingsService := service.NewSettingsService(db.Users())
	authService := service.NewAuthService(db.Users(), cfg.JWTSecret, cfg.BcryptCost)

	// Resume the countdowns of sessions that were running at the last stop.
	recovered, err := sessionService.Recover(ctx)
	if err != nil {
		slog.Error("failed to recover running sessions", "error", err)
		os.Exit(1)
	}
	slog.Info("running sessions recovered", "count", recovered)

	var loginLimiter *service.TokenBucket
	if cfg.LoginRatePerSecond > 0 {
		loginLimiter = service.NewTokenBucket(cfg.LoginRatePerSecond, cfg.LoginRateBurst)
		go loginLimiter.RunSweeper(ctx, time.Minute, 10*time.Minute)
	}

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux, handler.Services{
		Auth:         authService,
		Sessions:     sessionService,
		Tasks:        taskService,
		Settings:     settingsService,
		Hub:          hub,
		DB:           db,
		LoginLimiter: loginLimiter,
		CookieSecure: cfg.CookieSecure,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler.SecurityHeaders(mux),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1MB
	}
	// Session streams stay open until the client goes away.
	srv.RegisterOnShutdown(func() { hub.Close() })

	go func() {
		slog.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}
	sessionService.Shutdown(shutdownCtx)
	slog.Info("server stopped")
}
