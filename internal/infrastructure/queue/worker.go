package queue

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/academic-records/records-hub/internal/domain/classification"
	"github.com/academic-records/records-hub/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// Handler processes one job.
// A returned TransportError fails the job immediately; other errors are retried.
type Handler interface {
	Handle(ctx context.Context, job Job) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, job Job) error

// Handle calls f(ctx, job).
func (f HandlerFunc) Handle(ctx context.Context, job Job) error {
	return f(ctx, job)
}

// ══════════════════════════════════════════════════════════════════════════════
// WORKER
// ══════════════════════════════════════════════════════════════════════════════

// WorkerConfig configures Worker.
type WorkerConfig struct {
	// Concurrency is the number of jobs processed in parallel.
	Concurrency int

	// PollTimeout is how long one Dequeue call blocks.
	PollTimeout time.Duration

	// MaxAttempts bounds the attempts per job, including the first one.
	MaxAttempts int

	// InitialBackoff is the delay before the first retry.
	InitialBackoff time.Duration

	// MaxBackoff caps the delay between retries.
	MaxBackoff time.Duration

	Logger *slog.Logger
}

// DefaultWorkerConfig returns default worker settings.
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		Concurrency:    2,
		PollTimeout:    5 * time.Second,
		MaxAttempts:    5,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     30 * time.Second,
		Logger:         slog.Default(),
	}
}

// Worker pulls jobs from a Queue and dispatches them by key.
type Worker struct {
	queue    Queue
	handlers map[classification.JobKey]Handler
	config   WorkerConfig
	logger   *slog.Logger

	mu      sync.RWMutex
	running bool
}

// NewWorker creates a Worker.
func NewWorker(q Queue, config WorkerConfig) *Worker {
	defaults := DefaultWorkerConfig()
	if config.Concurrency <= 0 {
		config.Concurrency = defaults.Concurrency
	}
	if config.PollTimeout <= 0 {
		config.PollTimeout = defaults.PollTimeout
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = defaults.MaxAttempts
	}
	if config.InitialBackoff <= 0 {
		config.InitialBackoff = defaults.InitialBackoff
	}
	if config.MaxBackoff <= 0 {
		config.MaxBackoff = defaults.MaxBackoff
	}
	if config.Logger == nil {
		config.Logger = defaults.Logger
	}

	return &Worker{
		queue:    q,
		handlers: make(map[classification.JobKey]Handler),
		config:   config,
		logger:   config.Logger.With("component", "queue_worker"),
	}
}

// Register binds a handler to a job key.
func (w *Worker) Register(key classification.JobKey, h Handler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[key] = h
}

// IsRunning reports whether Run is active.
func (w *Worker) IsRunning() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

// Run processes jobs until ctx is cancelled or the queue is closed.
func (w *Worker) Run(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return errors.New("queue worker already running")
	}
	w.running = true
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
	}()

	w.logger.Info("queue worker started", "concurrency", w.config.Concurrency)

	var wg sync.WaitGroup
	for i := 0; i < w.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.loop(ctx)
		}()
	}
	wg.Wait()

	w.logger.Info("queue worker stopped")
	return nil
}

func (w *Worker) loop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		job, err := w.queue.Dequeue(ctx, w.config.PollTimeout)
		if err != nil {
			switch {
			case errors.Is(err, ErrEmpty):
				continue
			case errors.Is(err, ErrClosed), ctx.Err() != nil:
				return
			}
			w.logger.Warn("dequeue failed", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		w.Process(ctx, job)
	}
}

// Process runs a single job through its handler and records the outcome.
func (w *Worker) Process(ctx context.Context, job Job) error {
	log := w.logger.With("job", string(job.Key), "job_id", job.ID, "course_id", job.Data.CourseID)

	w.mu.RLock()
	h, ok := w.handlers[job.Key]
	w.mu.RUnlock()
	if !ok {
		err := &TransportError{Status: http.StatusBadRequest, Code: CodeUnknownJob, Err: errors.New("no handler for " + string(job.Key))}
		w.fail(ctx, log, job, err)
		return err
	}

	if err := w.queue.SetState(ctx, job, StatusRunning, nil); err != nil {
		log.Warn("failed to record job state", "error", err)
	}

	retrier := retry.New(
		retry.WithMaxAttempts(w.config.MaxAttempts),
		retry.WithInitialDelay(w.config.InitialBackoff),
		retry.WithMaxDelay(w.config.MaxBackoff),
		retry.WithRetryIf(func(err error) bool { return !IsTransportError(err) }),
		retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			log.Warn("job attempt failed, retrying",
				"attempt", attempt,
				"delay", delay.String(),
				"error", err,
			)
		}),
	)

	err := retrier.Do(ctx, func(ctx context.Context) error {
		job.Attempts++
		return h.Handle(ctx, job)
	})
	if err != nil {
		w.fail(ctx, log, job, err)
		return err
	}

	if err := w.queue.SetState(ctx, job, StatusDone, nil); err != nil {
		log.Warn("failed to record job state", "error", err)
	}
	log.Debug("job done", "attempts", job.Attempts)
	return nil
}

func (w *Worker) fail(ctx context.Context, log *slog.Logger, job Job, err error) {
	status := FailedStatus(Code(err))
	log.Error("job failed",
		"status", string(status),
		"attempts", job.Attempts,
		"error", err,
	)

	if serr := w.queue.SetState(ctx, job, status, err); serr != nil {
		log.Warn("failed to record job state", "error", serr)
	}

	// Transport errors are final answers, only exhausted retries are dead letters.
	if !IsTransportError(err) {
		if derr := w.queue.DeadLetter(ctx, job, err); derr != nil {
			log.Warn("failed to dead-letter job", "error", derr)
		}
	}
}
