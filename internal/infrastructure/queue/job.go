// Package queue transports classification jobs between the API and the worker.
//
// Jobs are enqueued as {key, course_id} envelopes. RedisQueue backs production
// deployments, MemoryQueue backs tests and the single-process dev mode.
// Worker dequeues jobs, dispatches them to the handler registered for the key
// and records the outcome in the job status.
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/academic-records/records-hub/internal/domain/classification"
)

// ══════════════════════════════════════════════════════════════════════════════
// JOB
// ══════════════════════════════════════════════════════════════════════════════

// Payload is the job data shared by both classification jobs.
type Payload struct {
	CourseID string `json:"course_id" validate:"required"`
}

// Job is a queued unit of work.
type Job struct {
	ID         string                `json:"id"`
	Key        classification.JobKey `json:"key"`
	Data       Payload               `json:"data"`
	Attempts   int                   `json:"attempts"`
	EnqueuedAt time.Time             `json:"enqueued_at"`
}

// NewJob creates a job for a course.
func NewJob(key classification.JobKey, courseID string) Job {
	return Job{
		ID:         uuid.NewString(),
		Key:        key,
		Data:       Payload{CourseID: courseID},
		EnqueuedAt: time.Now().UTC(),
	}
}

// FromFollowUp converts a follow-up returned by a grade edit into a job.
func FromFollowUp(f classification.FollowUpJob) Job {
	return NewJob(f.Key, f.CourseID)
}

// ══════════════════════════════════════════════════════════════════════════════
// STATUS
// ══════════════════════════════════════════════════════════════════════════════

// Status is the last known state of a job.
type Status string

const (
	StatusQueued  Status = "queued"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
)

// FailedStatus builds the status of a failed job, e.g. "failed:not_found".
func FailedStatus(code string) Status {
	return Status("failed:" + code)
}

// JobState is the inspectable record of a job.
type JobState struct {
	Job       Job       `json:"job"`
	Status    Status    `json:"status"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ══════════════════════════════════════════════════════════════════════════════
// QUEUE
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrEmpty is returned by Dequeue when no job arrived before the timeout.
	ErrEmpty = errors.New("queue: empty")

	// ErrUnknownJob is returned by State for job IDs that were never seen or expired.
	ErrUnknownJob = errors.New("queue: unknown job")

	// ErrClosed is returned after the queue has been closed.
	ErrClosed = errors.New("queue: closed")
)

// Queue is the job transport.
type Queue interface {
	// Enqueue appends the job and marks it queued.
	Enqueue(ctx context.Context, job Job) error

	// Dequeue waits up to timeout for the next job.
	// It returns ErrEmpty when nothing arrived.
	Dequeue(ctx context.Context, timeout time.Duration) (Job, error)

	// SetState records the status of a job.
	SetState(ctx context.Context, job Job, status Status, jobErr error) error

	// State returns the last recorded status of a job.
	State(ctx context.Context, jobID string) (JobState, error)

	// DeadLetter stores a job that exhausted its retries.
	DeadLetter(ctx context.Context, job Job, jobErr error) error

	// DeadLetters returns up to limit dead jobs, newest first.
	DeadLetters(ctx context.Context, limit int) ([]JobState, error)
}

// Enqueuer is the producer side of a Queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, job Job) error
}

// EnqueueFollowUps enqueues every follow-up job.
func EnqueueFollowUps(ctx context.Context, q Enqueuer, followUps []classification.FollowUpJob) ([]Job, error) {
	jobs := make([]Job, 0, len(followUps))
	for _, f := range followUps {
		job := FromFollowUp(f)
		if err := q.Enqueue(ctx, job); err != nil {
			return jobs, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
