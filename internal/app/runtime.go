// Package app wires the infrastructure shared by the API and worker processes.
//
// Runtime opens storage, Redis and the job queue according to the configuration
// and builds the application handlers on top of them. With APP_STORAGE=memory
// everything lives in the process and Redis is not used.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/academic-records/records-hub/config"
	"github.com/academic-records/records-hub/internal/application/command"
	"github.com/academic-records/records-hub/internal/application/eventhandler"
	"github.com/academic-records/records-hub/internal/application/query"
	"github.com/academic-records/records-hub/internal/domain/classification"
	"github.com/academic-records/records-hub/internal/domain/course"
	"github.com/academic-records/records-hub/internal/domain/grading"
	"github.com/academic-records/records-hub/internal/domain/shared"
	"github.com/academic-records/records-hub/internal/infrastructure/jobs"
	"github.com/academic-records/records-hub/internal/infrastructure/messaging"
	"github.com/academic-records/records-hub/internal/infrastructure/persistence/memory"
	"github.com/academic-records/records-hub/internal/infrastructure/persistence/postgres"
	rediscache "github.com/academic-records/records-hub/internal/infrastructure/persistence/redis"
	"github.com/academic-records/records-hub/internal/infrastructure/queue"
	"github.com/academic-records/records-hub/internal/infrastructure/scheduler"
	schedjobs "github.com/academic-records/records-hub/internal/infrastructure/scheduler/jobs"
	"github.com/academic-records/records-hub/internal/interface/http/handlers"
	"github.com/academic-records/records-hub/pkg/logger"
	"github.com/academic-records/records-hub/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// RUNTIME
// ══════════════════════════════════════════════════════════════════════════════

// Runtime holds the opened infrastructure of one process.
type Runtime struct {
	Config *config.Config
	Logger *slog.Logger

	// Repositories
	Courses         course.Repository
	Assessments     grading.AssessmentRepository
	Behaviors       grading.BehaviorRepository
	Classifications classification.Repository

	// Jobs is the classification job queue.
	Jobs queue.Queue

	// Bus delivers domain events inside the process.
	Bus *messaging.InMemoryEventBus

	Calculator *grading.Calculator

	// MemoryDB is set in memory mode.
	MemoryDB *memory.DB

	db       *postgres.Connection
	cache    *rediscache.Cache
	rankings query.ClassificationCache
	locker   command.CourseLocker
	closers  []func()
}

// New opens every dependency required by cfg. On error, whatever was
// already opened is closed.
func New(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Runtime, error) {
	if log == nil {
		log = slog.Default()
	}

	rt := &Runtime{
		Config:     cfg,
		Logger:     log,
		Calculator: grading.NewCalculator(cfg.Grading.Policy()),
	}
	if err := rt.open(ctx); err != nil {
		rt.Close()
		return nil, err
	}
	return rt, nil
}

func (rt *Runtime) open(ctx context.Context) error {
	cfg := rt.Config
	log := rt.Logger

	// ─────────────────────────────────────────────────────────────────────────
	// 1. STORAGE
	// ─────────────────────────────────────────────────────────────────────────
	switch cfg.App.Storage {
	case config.StorageMemory:
		rt.openMemory()
	case config.StoragePostgres:
		if err := rt.openPostgres(ctx); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown storage %q", cfg.App.Storage)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. REDIS (queue, lock, ranking cache)
	// ─────────────────────────────────────────────────────────────────────────
	if cfg.App.Storage == config.StorageMemory {
		mq := queue.NewMemoryQueue()
		rt.Jobs = mq
		rt.locker = memory.NewCourseLocker()
		rt.closers = append(rt.closers, mq.Close)
	} else if err := rt.openRedis(ctx); err != nil {
		return err
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 3. EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	busConfig := messaging.DefaultInMemoryEventBusConfig()
	busConfig.Logger = log
	rt.Bus = messaging.NewInMemoryEventBus(busConfig)
	rt.closers = append(rt.closers, func() {
		if err := rt.Bus.Close(); err != nil {
			log.Warn("event bus close failed", "error", err)
		}
	})

	return rt.subscribe()
}

func (rt *Runtime) openMemory() {
	db := memory.NewDB()
	rt.MemoryDB = db
	rt.Courses = memory.NewCourseRepository(db)
	rt.Assessments = memory.NewAssessmentRepository(db)
	rt.Behaviors = memory.NewBehaviorRepository(db)
	rt.Classifications = memory.NewClassificationRepository(db)

	rt.Logger.Warn("using in-memory storage; data is lost on exit")
}

func (rt *Runtime) openPostgres(ctx context.Context) error {
	cfg := rt.Config.Database
	rt.Logger.Info("connecting to database...")

	pool := postgres.Config{
		MaxConns:        int32(cfg.MaxConns),
		MinConns:        int32(cfg.MinConns),
		MaxConnLifetime: cfg.ConnMaxLifetime,
		MaxConnIdleTime: cfg.ConnMaxIdleTime,
	}

	conn, err := retry.DoWithData(ctx, func(ctx context.Context) (*postgres.Connection, error) {
		return postgres.NewConnectionFromURL(ctx, cfg.URL, pool)
	},
		retry.WithMaxAttempts(cfg.ConnectAttempts),
		retry.WithInitialDelay(500*time.Millisecond),
		retry.WithMaxDelay(10*time.Second),
		retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			rt.Logger.Warn("database not ready, retrying",
				"attempt", attempt,
				"delay", delay.String(),
				"error", err,
			)
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	rt.db = conn
	rt.closers = append(rt.closers, func() {
		rt.Logger.Info("closing database connection...")
		conn.Close()
	})
	rt.Logger.Info("database connected")

	if cfg.AutoMigrate {
		rt.Logger.Info("running database migrations...")
		if err := postgres.NewMigrator(conn).Migrate(ctx); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		rt.Logger.Info("migrations completed")
	}

	rt.Courses = postgres.NewCourseRepository(conn)
	rt.Assessments = postgres.NewAssessmentRepository(conn)
	rt.Behaviors = postgres.NewBehaviorRepository(conn)
	rt.Classifications = postgres.NewClassificationRepository(conn)
	return nil
}

func (rt *Runtime) openRedis(ctx context.Context) error {
	cfg := rt.Config.Redis
	rt.Logger.Info("connecting to redis...", "host", cfg.Host, "port", cfg.Port)

	cache, err := rediscache.NewCache(ctx, rediscache.Config{
		Host:         cfg.Host,
		Port:         cfg.Port,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	rt.cache = cache
	rt.closers = append(rt.closers, func() {
		rt.Logger.Info("closing redis connection...")
		if err := cache.Close(); err != nil {
			rt.Logger.Warn("redis close failed", "error", err)
		}
	})

	rt.rankings = rediscache.NewClassificationCache(cache, cfg.ClassificationTTL)
	rt.locker = rediscache.NewCourseLock(cache.Client(), rediscache.CourseLockConfig{
		TTL:    cfg.CourseLockTTL,
		Wait:   cfg.CourseLockWait,
		Logger: rt.Logger,
	})
	rt.Jobs = queue.NewRedisQueue(cache.Client(), rt.Config.Queue.Name, rt.Config.Queue.StatusTTL)

	rt.Logger.Info("redis connected")
	return nil
}

func (rt *Runtime) subscribe() error {
	subscriptions := map[shared.EventType]shared.EventHandler{
		shared.EventStudentStatusChanged: eventhandler.NewOnStudentStatusChangedHandler(rt.Logger).Handle,
	}
	if rt.rankings != nil {
		subscriptions[shared.EventCourseClassified] = eventhandler.NewOnCourseClassifiedHandler(rt.rankings, rt.Logger).Handle
	}

	for eventType, handler := range subscriptions {
		if err := rt.Bus.Subscribe(eventType, handler); err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", eventType, err)
		}
	}

	return rt.Bus.SubscribeAll(func(event shared.Event) error {
		rt.Logger.Debug("domain event",
			"event_type", event.EventType(),
			"aggregate_id", event.AggregateID(),
			"payload", event.Payload(),
		)
		return nil
	})
}

// Close releases everything in reverse opening order.
func (rt *Runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// Rankings returns the ranking cache, or nil when running without Redis.
func (rt *Runtime) Rankings() query.ClassificationCache {
	return rt.rankings
}

// Classifier builds the aggregator that runs both classification modes.
func (rt *Runtime) Classifier() *command.ClassifyCourseHandler {
	return command.NewClassifyCourseHandler(
		rt.Courses,
		rt.Assessments,
		rt.Behaviors,
		rt.Classifications,
		rt.Calculator,
		rt.locker,
		rt.Bus,
		command.ClassifyCourseHandlerConfig{
			Workers: rt.Config.Queue.AggregatorWorkers,
			Logger:  rt.Logger,
		},
	)
}

// GradeEdits builds the grade edit command handler.
func (rt *Runtime) GradeEdits() *command.GradeEditHandler {
	return command.NewGradeEditHandler(rt.Assessments, rt.Behaviors, rt.Bus, rt.Logger)
}

// Queries holds the read side handlers.
type Queries struct {
	CourseClassification *query.GetCourseClassificationHandler
	ClassificationByPole *query.GetClassificationByPoleHandler
	StudentAverage       *query.GetStudentAverageHandler
}

// Queries builds the read side handlers.
func (rt *Runtime) Queries() Queries {
	return Queries{
		CourseClassification: query.NewGetCourseClassificationHandler(rt.Courses, rt.Classifications, rt.rankings),
		ClassificationByPole: query.NewGetClassificationByPoleHandler(rt.Courses, rt.Classifications, rt.rankings),
		StudentAverage:       query.NewGetStudentAverageHandler(rt.Courses, rt.Assessments, rt.Behaviors, rt.Calculator),
	}
}

// Worker builds a queue worker with both classification jobs registered.
func (rt *Runtime) Worker() *queue.Worker {
	cfg := rt.Config.Queue
	w := queue.NewWorker(rt.Jobs, queue.WorkerConfig{
		Concurrency:    cfg.Concurrency,
		PollTimeout:    cfg.PollTimeout,
		MaxAttempts:    cfg.MaxAttempts,
		InitialBackoff: cfg.InitialBackoff,
		MaxBackoff:     cfg.MaxBackoff,
		Logger:         rt.Logger,
	})
	jobs.Register(w, rt.Classifier(), rt.Logger)
	return w
}

// Scheduler builds the scheduler with the reconciliation job registered.
func (rt *Runtime) Scheduler() (*scheduler.Scheduler, error) {
	cfg := rt.Config.Scheduler

	schedule, err := scheduler.ParseCron(cfg.ReconcileCron)
	if err != nil {
		return nil, fmt.Errorf("invalid RECONCILE_CRON: %w", err)
	}

	s := scheduler.NewScheduler(scheduler.SchedulerConfig{
		Logger:   rt.Logger,
		Timezone: rt.Config.App.Location,
	})

	job := schedjobs.NewReconcileClassificationsJob(
		rt.Classifications,
		rt.Jobs,
		rt.Logger,
		schedjobs.ReconcileClassificationsConfig{Timeout: cfg.JobTimeout},
	)
	if err := s.Register(job, schedule); err != nil {
		return nil, fmt.Errorf("failed to register %s: %w", job.Name(), err)
	}
	return s, nil
}

// ReconcileJobName is the scheduler name of the nightly reconciliation.
const ReconcileJobName = schedjobs.ReconcileClassificationsJobName

// HealthChecker builds the checks for the opened dependencies.
func (rt *Runtime) HealthChecker() *handlers.CompositeHealthChecker {
	checker := handlers.NewCompositeHealthChecker(rt.Config.App.Version)
	if rt.db != nil {
		checker.AddCheck("database", handlers.NewPingCheck(rt.db))
	}
	if rt.cache != nil {
		checker.AddOptionalCheck("cache", handlers.NewPingCheck(rt.cache))
	}
	checker.AddCheck("queue", handlers.NewQueueCheck(rt.Jobs))
	return checker
}

// ══════════════════════════════════════════════════════════════════════════════
// LOGGING
// ══════════════════════════════════════════════════════════════════════════════

// SetupLogger configures the process-wide slog logger.
func SetupLogger(cfg *config.Config) *slog.Logger {
	level := logger.ParseLevel(cfg.Observability.LogLevel).SlogLevel()
	if cfg.App.Debug {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.App.Debug,
	}

	var handler slog.Handler
	if cfg.IsProduction() || cfg.Observability.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	log := slog.New(handler).With("service", cfg.App.Name)
	slog.SetDefault(log)
	return log
}

// NewRequestLogger creates the HTTP logger on top of the process logger.
func NewRequestLogger(log *slog.Logger) *logger.Logger {
	return logger.FromSlog(log).With(logger.Component("http"))
}

// IsShutdown reports whether err only signals a cancelled run.
func IsShutdown(err error) bool {
	return errors.Is(err, context.Canceled)
}
