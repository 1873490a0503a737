package queue

import (
	"context"
	"sync"
	"time"
)

// MemoryQueue is an in-process Queue.
type MemoryQueue struct {
	mu     sync.Mutex
	jobs   []Job
	states map[string]JobState
	dead   []JobState
	notify chan struct{}
	closed bool
}

// NewMemoryQueue creates an empty MemoryQueue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		states: make(map[string]JobState),
		notify: make(chan struct{}, 1),
	}
}

// Enqueue appends the job.
func (q *MemoryQueue) Enqueue(_ context.Context, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrClosed
	}
	q.jobs = append(q.jobs, job)
	q.states[job.ID] = JobState{Job: job, Status: StatusQueued, UpdatedAt: time.Now().UTC()}

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return nil
}

// Dequeue pops the oldest job, waiting up to timeout.
func (q *MemoryQueue) Dequeue(ctx context.Context, timeout time.Duration) (Job, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		if job, ok, err := q.pop(); err != nil || ok {
			return job, err
		}

		select {
		case <-ctx.Done():
			return Job{}, ctx.Err()
		case <-timer.C:
			return Job{}, ErrEmpty
		case <-q.notify:
		}
	}
}

func (q *MemoryQueue) pop() (Job, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.jobs) == 0 {
		if q.closed {
			return Job{}, false, ErrClosed
		}
		return Job{}, false, nil
	}
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	if len(q.jobs) > 0 {
		select {
		case q.notify <- struct{}{}:
		default:
		}
	}
	return job, true, nil
}

// SetState records the job status.
func (q *MemoryQueue) SetState(_ context.Context, job Job, status Status, jobErr error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.states[job.ID] = JobState{Job: job, Status: status, Error: errString(jobErr), UpdatedAt: time.Now().UTC()}
	return nil
}

// State returns the job status.
func (q *MemoryQueue) State(_ context.Context, jobID string) (JobState, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	s, ok := q.states[jobID]
	if !ok {
		return JobState{}, ErrUnknownJob
	}
	return s, nil
}

// DeadLetter stores a failed job.
func (q *MemoryQueue) DeadLetter(_ context.Context, job Job, jobErr error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.dead = append(q.dead, JobState{
		Job:       job,
		Status:    FailedStatus(Code(jobErr)),
		Error:     errString(jobErr),
		UpdatedAt: time.Now().UTC(),
	})
	return nil
}

// DeadLetters returns dead jobs, newest first.
func (q *MemoryQueue) DeadLetters(_ context.Context, limit int) ([]JobState, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]JobState, 0, len(q.dead))
	for i := len(q.dead) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, q.dead[i])
	}
	return out, nil
}

// Len returns the number of pending jobs.
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// Close stops accepting jobs. Pending jobs can still be dequeued.
func (q *MemoryQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	select {
	case q.notify <- struct{}{}:
	default:
	}
}
