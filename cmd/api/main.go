package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"chatflow/api/internal/app"
	"chatflow/api/internal/config"
	"chatflow/api/internal/email"
	"chatflow/api/internal/export"
	"chatflow/api/internal/logger"
	"chatflow/api/internal/notify"
	"chatflow/api/internal/search"
	"chatflow/api/internal/session"
	"chatflow/api/internal/storage"
	"chatflow/api/internal/store"
	"chatflow/api/internal/telemetry"
)

func main() {
	ctx := context.Background()
	cfg := config.Load()

	// logger.Setup reads the global OTel logger provider in production
	tel, err := telemetry.Setup(ctx, cfg.OTel, cfg.Version.Version)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}
	logger.Setup(cfg)
	if tel != nil {
		slog.InfoContext(ctx, "otel initialized", "endpoint", cfg.OTel.Endpoint)
	}
	slog.InfoContext(ctx, "chatflow api starting",
		"env", cfg.Env,
		"version", cfg.Version.Version,
		"commit", cfg.Version.Commit,
		"email_mode", cfg.EmailMode(),
	)

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.ErrorContext(ctx, "database connection failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	applied, err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir)
	if err != nil {
		slog.ErrorContext(ctx, "migrations failed", "error", err)
		os.Exit(1)
	}
	slog.InfoContext(ctx, "database ready", "migrations_applied", len(applied))

	dataStore := store.NewPostgresStore(db)
	mailer := email.NewService(cfg)
	dispatcher := notify.NewDispatcher(dataStore, mailer)
	deps := app.Deps{
		Store:    dataStore,
		Mailer:   mailer,
		Exporter: export.NewService(dataStore),
		Notifier: dispatcher,
	}

	if strings.TrimSpace(cfg.RedisURL) != "" {
		redisStore, err := session.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			slog.ErrorContext(ctx, "redis connection failed", "error", err)
			os.Exit(1)
		}
		defer redisStore.Close()
		deps.Sessions = redisStore
		deps.Redis = redisStore
		slog.InfoContext(ctx, "using redis for sessions")
	} else {
		slog.InfoContext(ctx, "using postgres for sessions")
	}

	if cfg.Spaces.Enabled() {
		spaces, err := storage.NewSpaces(cfg.Spaces)
		if err != nil {
			slog.ErrorContext(ctx, "spaces client failed", "error", err)
			os.Exit(1)
		}
		deps.Objects = spaces
		slog.InfoContext(ctx, "object storage enabled", "bucket", spaces.Bucket())
	}

	var meili *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meili = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meili.Close()
	}
	searchService := search.NewService(meili, search.NewPgFTS(db))
	deps.Search = searchService
	go searchService.ReindexAllFromPG(context.WithoutCancel(ctx))

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	service := app.New(cfg, deps)
	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.InfoContext(ctx, "http server starting", "addr", cfg.Addr, "search_engine", searchService.Engine())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.ErrorContext(ctx, "http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "http server shutdown error", "error", err)
	}
	dispatcher.Wait()
	if err := tel.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
	}
	slog.InfoContext(shutdownCtx, "shutdown complete")
}
