package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	rediscache "github.com/academic-records/records-hub/internal/infrastructure/persistence/redis"
)

// RedisQueue is a Queue on a Redis list.
// Jobs are pushed with LPUSH and popped with BRPOP, so the list is FIFO.
type RedisQueue struct {
	client    *redis.Client
	name      string
	statusTTL time.Duration
}

// NewRedisQueue creates a RedisQueue named name.
func NewRedisQueue(client *redis.Client, name string, statusTTL time.Duration) *RedisQueue {
	if statusTTL <= 0 {
		statusTTL = rediscache.TTLJobStatus
	}
	return &RedisQueue{client: client, name: name, statusTTL: statusTTL}
}

// Enqueue pushes the job and marks it queued.
func (q *RedisQueue) Enqueue(ctx context.Context, job Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	pipe := q.client.TxPipeline()
	pipe.LPush(ctx, rediscache.QueueKey(q.name), data)
	q.writeState(ctx, pipe, job, StatusQueued, nil)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}
	return nil
}

// Dequeue blocks up to timeout for the next job.
func (q *RedisQueue) Dequeue(ctx context.Context, timeout time.Duration) (Job, error) {
	res, err := q.client.BRPop(ctx, timeout, rediscache.QueueKey(q.name)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Job{}, ErrEmpty
		}
		return Job{}, fmt.Errorf("failed to dequeue job: %w", err)
	}

	// BRPOP returns [key, value].
	var job Job
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return Job{}, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	return job, nil
}

// SetState writes the job status hash.
func (q *RedisQueue) SetState(ctx context.Context, job Job, status Status, jobErr error) error {
	pipe := q.client.TxPipeline()
	q.writeState(ctx, pipe, job, status, jobErr)
	_, err := pipe.Exec(ctx)
	return err
}

func (q *RedisQueue) writeState(ctx context.Context, pipe redis.Pipeliner, job Job, status Status, jobErr error) {
	data, _ := json.Marshal(job)
	key := rediscache.JobKey(job.ID)
	pipe.HSet(ctx, key,
		"job", data,
		"status", string(status),
		"error", errString(jobErr),
		"updated_at", time.Now().UTC().Format(time.RFC3339Nano),
	)
	pipe.Expire(ctx, key, q.statusTTL)
}

// State reads the job status hash.
func (q *RedisQueue) State(ctx context.Context, jobID string) (JobState, error) {
	fields, err := q.client.HGetAll(ctx, rediscache.JobKey(jobID)).Result()
	if err != nil {
		return JobState{}, fmt.Errorf("failed to read job state: %w", err)
	}
	if len(fields) == 0 {
		return JobState{}, ErrUnknownJob
	}

	state := JobState{Status: Status(fields["status"]), Error: fields["error"]}
	if err := json.Unmarshal([]byte(fields["job"]), &state.Job); err != nil {
		return JobState{}, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	state.UpdatedAt, _ = time.Parse(time.RFC3339Nano, fields["updated_at"])
	return state, nil
}

// DeadLetter pushes the job onto the dead-letter list.
func (q *RedisQueue) DeadLetter(ctx context.Context, job Job, jobErr error) error {
	data, err := json.Marshal(JobState{
		Job:       job,
		Status:    FailedStatus(Code(jobErr)),
		Error:     errString(jobErr),
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal dead job: %w", err)
	}
	return q.client.LPush(ctx, rediscache.DeadLetterKey(q.name), data).Err()
}

// DeadLetters returns up to limit dead jobs, newest first.
func (q *RedisQueue) DeadLetters(ctx context.Context, limit int) ([]JobState, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}

	items, err := q.client.LRange(ctx, rediscache.DeadLetterKey(q.name), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list dead letters: %w", err)
	}

	out := make([]JobState, 0, len(items))
	for _, item := range items {
		var s JobState
		if err := json.Unmarshal([]byte(item), &s); err != nil {
			return nil, fmt.Errorf("failed to unmarshal dead job: %w", err)
		}
		out = append(out, s)
	}
	return out, nil
}
