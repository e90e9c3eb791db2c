// cmd/main.go is the application entry point.
// It wires together all layers and starts the HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/event-reservations/internal/config"
	"github.com/Shivanand-hulikatti/event-reservations/internal/database"
	"github.com/Shivanand-hulikatti/event-reservations/internal/handler"
	"github.com/Shivanand-hulikatti/event-reservations/internal/metrics"
	"github.com/Shivanand-hulikatti/event-reservations/internal/notify"
	"github.com/Shivanand-hulikatti/event-reservations/internal/repository"
	"github.com/Shivanand-hulikatti/event-reservations/internal/service"
	"github.com/Shivanand-hulikatti/event-reservations/internal/tracing"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "event-reservations: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := config.NewLogger(config.LoggerConfig{Level: cfg.Log.Level, Env: cfg.Env})
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing, cfg.Env, logger)
	if err != nil {
		return err
	}

	// ── 1. Connect to PostgreSQL and Redis ────────────────────────────────
	pool, err := database.NewPool(ctx, cfg.Postgres, logger)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer pool.Close()
	logger.Info("connected to postgres", zap.String("host", cfg.Postgres.Host))

	if err := database.Migrate(cfg.Postgres.URL(), cfg.MigrationsPath); err != nil {
		return err
	}
	logger.Info("migrations applied", zap.String("path", cfg.MigrationsPath))

	rdb, err := notify.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer func() { _ = rdb.Close() }()
	logger.Info("connected to redis", zap.String("addr", cfg.Redis.Addr))

	// ── 2. Metrics ───────────────────────────────────────────────────────
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	// ── 3. Wire up layers ────────────────────────────────────────────────
	broker := notify.NewRedisBroker(rdb, logger)
	dispatcher := notify.NewDispatcher(broker, logger,
		notify.WithQueueSize(cfg.Notify.QueueSize),
		notify.WithPublishTimeout(cfg.Notify.PublishTimeout),
		notify.WithEnqueueTimeout(cfg.Notify.EnqueueTimeout),
		notify.WithDispatcherMetrics(m),
	)

	store := repository.NewStore(pool, logger)
	eventRepo := repository.NewEventRepository(pool)
	reservationRepo := repository.NewReservationRepository(pool)

	admissionSvc := service.NewAdmissionService(store, dispatcher, logger, service.WithMetrics(m))
	eventSvc := service.NewEventService(store, eventRepo, dispatcher, logger, service.WithMetrics(m))
	reservationSvc := service.NewReservationService(store, reservationRepo)

	streams := handler.NewStreamHandler(broker, eventSvc, logger)
	router := handler.NewRouter(handler.Routes{
		Events:       handler.NewEventHandler(eventSvc, logger),
		Reservations: handler.NewReservationHandler(admissionSvc, reservationSvc, logger),
		Streams:      streams,
		Health: handler.NewHealthHandler(map[string]handler.HealthCheck{
			"postgres": pool.Ping,
			"redis":    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		}),
		Metrics:  promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		Auth:     handler.NewAuthenticator(cfg.Auth.JWTSecret, logger),
		Recorder: m,
		Logger:   logger,
	})

	// ── 4. Start server with graceful shutdown ────────────────────────────
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.HTTP.Port),
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}
	// Open event streams never go idle, so Shutdown ends them explicitly.
	srv.RegisterOnShutdown(streams.Close)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down server")
	case err := <-serveErr:
		if err != nil {
			logger.Error("server error", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Stop taking requests first so no notification is dispatched after the
	// dispatcher has drained.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
	if err := dispatcher.Close(shutdownCtx); err != nil {
		logger.Warn("notification queue not drained", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("tracer shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
	return nil
}
