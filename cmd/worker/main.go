// Package main - точка входа для фонового процесса (Worker) Records Hub.
//
// Worker отвечает за:
//   - выполнение generate-classification-job и update-classification-job из очереди
//   - ночную сверку классификаций (reconcile_classifications)
//
// Очередь, блокировки курсов и кеш рейтингов живут в Redis, поэтому
// Worker требует APP_STORAGE=postgres.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/academic-records/records-hub/config"
	"github.com/academic-records/records-hub/internal/app"
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
	if cfg.App.Storage != config.StoragePostgres {
		return errors.New("worker requires APP_STORAGE=postgres; memory mode runs jobs inside the API process")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. НАСТРОЙКА ЛОГИРОВАНИЯ
	// ─────────────────────────────────────────────────────────────────────────
	log := app.SetupLogger(cfg)
	log.Info("starting Records Hub Worker",
		"env", cfg.App.Environment,
		"debug", cfg.App.Debug,
		"timezone", cfg.App.Timezone,
		"queue", cfg.Queue.Name,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. БАЗА ДАННЫХ, REDIS, EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	rt, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer rt.Close()

	// ─────────────────────────────────────────────────────────────────────────
	// 4. ОЧЕРЕДЬ ЗАДАЧ
	// ─────────────────────────────────────────────────────────────────────────
	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	worker := rt.Worker()
	workerDone := make(chan error, 1)
	go func() {
		workerDone <- worker.Run(runCtx)
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 5. ПЛАНИРОВЩИК
	// ─────────────────────────────────────────────────────────────────────────
	if cfg.Scheduler.Enabled {
		sched, err := rt.Scheduler()
		if err != nil {
			return err
		}
		if err := sched.Start(runCtx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		defer func() {
			log.Info("stopping scheduler...")
			if err := sched.Stop(); err != nil {
				log.Warn("scheduler stop failed", "error", err)
			}
		}()
		log.Info("scheduler started", "reconcile_cron", cfg.Scheduler.ReconcileCron)

		if cfg.Scheduler.ReconcileOnStart {
			go func() {
				if _, err := sched.RunNow(runCtx, app.ReconcileJobName); err != nil && !app.IsShutdown(err) {
					log.Warn("startup reconciliation failed", "error", err)
				}
			}()
		}
	}

	log.Info("Records Hub Worker is running",
		"concurrency", cfg.Queue.Concurrency,
		"max_attempts", cfg.Queue.MaxAttempts,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 6. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig.String())
	case err := <-workerDone:
		if err != nil && !app.IsShutdown(err) {
			return fmt.Errorf("queue worker stopped: %w", err)
		}
		return nil
	}

	log.Info("starting graceful shutdown...", "timeout", cfg.App.ShutdownTimeout.String())
	stop()

	select {
	case <-workerDone:
	case <-time.After(cfg.App.ShutdownTimeout):
		log.Warn("queue worker did not stop in time")
	}

	log.Info("shutdown completed successfully")
	return nil
}
