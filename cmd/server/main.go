// Command tally-server starts the timer coordination service.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/tallyhq/tally/internal/config"
	"github.com/tallyhq/tally/internal/limiter"
	"github.com/tallyhq/tally/internal/logging"
	"github.com/tallyhq/tally/internal/migrate"
	"github.com/tallyhq/tally/internal/repository/postgres"
	"github.com/tallyhq/tally/internal/server/httpapi"
	"github.com/tallyhq/tally/internal/server/ws"
	"github.com/tallyhq/tally/internal/service"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// main loads configuration, runs migrations, recovers active timers and then
// serves the websocket channel and the REST API. Recovery completes before
// the listener opens: no connection may observe pre-recovery state.
func main() {
	cfgPath := flag.String("config", "", "path to tally.yaml")
	addr := flag.String("addr", "", "listen address (overrides config)")
	dsn := flag.String("dsn", "", "PostgreSQL DSN (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		panic(err)
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *dsn != "" {
		cfg.DSN = *dsn
	}

	logger := logging.New(cfg.LogFile)
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.Addr),
	)

	if cfg.JWTKey == "" {
		logger.Fatal("missing jwt signing key (jwt_key / TALLY_JWT_KEY)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := migrate.Up(ctx, cfg.DSN); err != nil {
		logger.Fatal("migrate up", zap.Error(err))
	}

	db, err := postgres.New(ctx, cfg.DSN)
	if err != nil {
		logger.Fatal("postgres.New", zap.Error(err))
	}
	defer db.Close()

	taskRepo := postgres.NewTaskRepo(db)
	eventRepo := postgres.NewEventRepo(db)
	timerRepo := postgres.NewTimerRepo(db)

	registry := service.NewActiveTimerRegistry(timerRepo)
	recovered, err := service.NewRecoveryLoader(timerRepo, taskRepo, logger).Load(ctx)
	if err != nil {
		logger.Fatal("recovery", zap.Error(err))
	}
	registry.Prime(recovered)

	validator := service.NewOverlapValidator(eventRepo, taskRepo, registry)
	hub := ws.NewHub(logger)
	coordinator := service.NewTimerCoordinator(
		registry, validator, eventRepo, taskRepo, hub, logger,
		service.StopRetryConfig{Attempts: cfg.StopRetryAttempts, Backoff: cfg.StopRetryBackoff},
	)
	taskSvc := service.NewTaskService(taskRepo, coordinator)
	eventSvc := service.NewEventService(eventRepo, taskRepo, validator)

	lim := limiter.NewPGWithQuerier(db.Pool, cfg.HandshakeWindow, cfg.HandshakeMaxFails, cfg.HandshakeBlockFor)

	signKey := []byte(cfg.JWTKey)
	r := chi.NewRouter()
	r.Handle("/ws", ws.NewHandler(hub, coordinator, lim, signKey, logger))
	r.Mount("/api/v1", httpapi.New(taskSvc, eventSvc, logger).Routes(signKey))

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			_ = srv.Close()
		}
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}

	logger.Info("shutdown complete")
}
