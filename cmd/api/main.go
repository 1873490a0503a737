// Package main - точка входа HTTP API Records Hub.
//
// API отдаёт рейтинги и средние студентов, принимает правки оценок и
// ставит задачи пересчёта в очередь. В режиме APP_STORAGE=memory очередь
// живёт в процессе, и API сам выполняет задачи.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/academic-records/records-hub/config"
	"github.com/academic-records/records-hub/internal/app"
	httpserver "github.com/academic-records/records-hub/internal/interface/http"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. ЗАГРУЗКА КОНФИГУРАЦИИ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. НАСТРОЙКА ЛОГИРОВАНИЯ
	// ─────────────────────────────────────────────────────────────────────────
	log := app.SetupLogger(cfg)
	log.Info("starting Records Hub API",
		"env", cfg.App.Environment,
		"version", cfg.App.Version,
		"storage", cfg.App.Storage,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ХРАНИЛИЩЕ, REDIS, EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	rt, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer rt.Close()

	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	// ─────────────────────────────────────────────────────────────────────────
	// 4. IN-PROCESS WORKER (только memory)
	// ─────────────────────────────────────────────────────────────────────────
	workerDone := make(chan error, 1)
	if cfg.App.Storage == config.StorageMemory {
		worker := rt.Worker()
		go func() {
			workerDone <- worker.Run(runCtx)
		}()
		log.Info("in-process queue worker started")
	} else {
		close(workerDone)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	queries := rt.Queries()

	serverConfig := httpserver.DefaultConfig()
	serverConfig.Host = cfg.HTTP.Host
	serverConfig.Port = cfg.HTTP.Port
	serverConfig.ReadTimeout = cfg.HTTP.ReadTimeout
	serverConfig.WriteTimeout = cfg.HTTP.WriteTimeout
	serverConfig.RequestTimeout = cfg.HTTP.RequestTimeout
	serverConfig.RateLimitPerMinute = cfg.HTTP.RateLimitPerMinute
	serverConfig.AllowedOrigins = cfg.HTTP.AllowedOrigins
	serverConfig.APIKeyHashes = cfg.HTTP.APIKeyHashes
	serverConfig.Version = cfg.App.Version

	if len(cfg.HTTP.APIKeyHashes) == 0 {
		log.Warn("HTTP_API_KEY_HASHES is empty; write endpoints are not authenticated")
	}

	server := httpserver.NewServer(serverConfig, httpserver.Dependencies{
		GetCourseClassificationHandler: queries.CourseClassification,
		GetClassificationByPoleHandler: queries.ClassificationByPole,
		GetStudentAverageHandler:       queries.StudentAverage,
		GradeEditHandler:               rt.GradeEdits(),
		Jobs:                           rt.Jobs,
		Logger:                         app.NewRequestLogger(log),
		HealthChecker:                  rt.HealthChecker(),
		EventMetrics:                   rt.Bus.Metrics().Snapshot,
	})

	serverErr := server.StartAsync()
	log.Info("Records Hub API is running", "address", serverConfig.Address())

	// ─────────────────────────────────────────────────────────────────────────
	// 6. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig.String())
	case err, ok := <-serverErr:
		if ok && err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
	}

	log.Info("starting graceful shutdown...", "timeout", cfg.App.ShutdownTimeout.String())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown failed", "error", err)
	}

	stop()
	select {
	case <-workerDone:
	case <-time.After(cfg.App.ShutdownTimeout):
		log.Warn("queue worker did not stop in time")
	}

	log.Info("shutdown completed successfully")
	return nil
}
