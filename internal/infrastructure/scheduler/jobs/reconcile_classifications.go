// Package jobs contains the scheduled maintenance jobs of the worker.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/academic-records/records-hub/internal/domain/classification"
	"github.com/academic-records/records-hub/internal/infrastructure/queue"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECONCILE CLASSIFICATIONS JOB
// ══════════════════════════════════════════════════════════════════════════════

// ReconcileClassificationsJobName identifies the job in the scheduler.
const ReconcileClassificationsJobName = "reconcile_classifications"

// ClassifiedCourseLister lists courses that already have classifications.
type ClassifiedCourseLister interface {
	ListClassifiedCourses(ctx context.Context) ([]string, error)
}

// ReconcileClassificationsJob enqueues an update-classification-job for every
// classified course. Update runs are idempotent, so a course that is already
// up to date is rewritten with identical values.
type ReconcileClassificationsJob struct {
	courses ClassifiedCourseLister
	queue   queue.Enqueuer
	logger  *slog.Logger
	config  ReconcileClassificationsConfig

	lastStats atomic.Value // *ReconcileStats
}

// ReconcileClassificationsConfig contains configuration for the job.
type ReconcileClassificationsConfig struct {
	// Timeout is the maximum duration of one run.
	Timeout time.Duration
}

// DefaultReconcileClassificationsConfig returns sensible defaults.
func DefaultReconcileClassificationsConfig() ReconcileClassificationsConfig {
	return ReconcileClassificationsConfig{Timeout: 2 * time.Minute}
}

// ReconcileStats contains statistics from a run.
type ReconcileStats struct {
	StartedAt   time.Time
	CompletedAt time.Time
	Courses     int
	Enqueued    int
	Failed      int
}

// NewReconcileClassificationsJob creates the job.
func NewReconcileClassificationsJob(
	courses ClassifiedCourseLister,
	q queue.Enqueuer,
	logger *slog.Logger,
	config ReconcileClassificationsConfig,
) *ReconcileClassificationsJob {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultReconcileClassificationsConfig().Timeout
	}

	return &ReconcileClassificationsJob{
		courses: courses,
		queue:   q,
		logger:  logger.With("job", ReconcileClassificationsJobName),
		config:  config,
	}
}

// Name returns the job name.
func (j *ReconcileClassificationsJob) Name() string {
	return ReconcileClassificationsJobName
}

// Description returns a human-readable description.
func (j *ReconcileClassificationsJob) Description() string {
	return "Re-enqueues an update classification job for every classified course"
}

// Run executes the job.
func (j *ReconcileClassificationsJob) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	stats := &ReconcileStats{StartedAt: time.Now()}
	defer func() {
		stats.CompletedAt = time.Now()
		j.lastStats.Store(stats)
	}()

	courseIDs, err := j.courses.ListClassifiedCourses(ctx)
	if err != nil {
		return fmt.Errorf("failed to list classified courses: %w", err)
	}
	stats.Courses = len(courseIDs)

	for _, courseID := range courseIDs {
		if err := ctx.Err(); err != nil {
			return err
		}

		job := queue.NewJob(classification.UpdateJobKey, courseID)
		if err := j.queue.Enqueue(ctx, job); err != nil {
			stats.Failed++
			j.logger.Warn("failed to enqueue course", "course_id", courseID, "error", err)
			continue
		}
		stats.Enqueued++
	}

	j.logger.Info("reconciliation enqueued",
		"courses", stats.Courses,
		"enqueued", stats.Enqueued,
		"failed", stats.Failed,
	)

	if stats.Failed > 0 {
		return fmt.Errorf("failed to enqueue %d of %d courses", stats.Failed, stats.Courses)
	}
	return nil
}

// LastStats returns the statistics of the last run, or nil.
func (j *ReconcileClassificationsJob) LastStats() *ReconcileStats {
	if v := j.lastStats.Load(); v != nil {
		return v.(*ReconcileStats)
	}
	return nil
}
