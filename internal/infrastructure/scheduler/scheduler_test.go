package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	name  string
	runs  int32
	err   error
	block chan struct{}
}

func (j *countingJob) Name() string        { return j.name }
func (j *countingJob) Description() string { return "test job" }
func (j *countingJob) Run(ctx context.Context) error {
	atomic.AddInt32(&j.runs, 1)
	if j.block != nil {
		select {
		case <-j.block:
		case <-ctx.Done():
		}
	}
	return j.err
}

type every time.Duration

func (e every) Next(t time.Time) time.Time { return t.Add(time.Duration(e)) }
func (e every) String() string             { return "every " + time.Duration(e).String() }

func TestParseCron(t *testing.T) {
	s, err := ParseCron("0 3 * * *")
	require.NoError(t, err)
	assert.Equal(t, "0 3 * * *", s.String())

	from := time.Date(2024, 5, 10, 4, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 5, 11, 3, 0, 0, 0, time.UTC), s.Next(from))

	_, err = ParseCron("every night")
	assert.Error(t, err)
}

func TestScheduler_RegisterDuplicate(t *testing.T) {
	s := NewScheduler(SchedulerConfig{})
	job := &countingJob{name: "a"}

	require.NoError(t, s.Register(job, MustParseCron("@daily")))
	assert.ErrorIs(t, s.Register(job, MustParseCron("@daily")), ErrJobAlreadyExists)
	assert.ErrorIs(t, s.Register(nil, MustParseCron("@daily")), ErrNilJob)
	assert.ErrorIs(t, s.Register(&countingJob{name: "b"}, nil), ErrNilSchedule)
}

func TestScheduler_RunNow(t *testing.T) {
	s := NewScheduler(SchedulerConfig{})
	job := &countingJob{name: "a", err: errors.New("boom")}
	require.NoError(t, s.Register(job, MustParseCron("@daily")))

	res, err := s.RunNow(context.Background(), "a")
	require.Error(t, err)
	assert.False(t, res.Success)
	assert.True(t, res.Manual)

	infos := s.ListJobs()
	require.Len(t, infos, 1)
	assert.Equal(t, int64(1), infos[0].RunCount)
	assert.Equal(t, int64(1), infos[0].FailCount)

	_, err = s.RunNow(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestScheduler_RunsDueJobsWithoutOverlap(t *testing.T) {
	s := NewScheduler(SchedulerConfig{})
	job := &countingJob{name: "slow", block: make(chan struct{})}
	require.NoError(t, s.Register(job, every(5*time.Millisecond)))

	require.NoError(t, s.Start(context.Background()))
	assert.ErrorIs(t, s.Start(context.Background()), ErrSchedulerAlreadyRunning)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&job.runs))

	_, err := s.RunNow(context.Background(), "slow")
	assert.ErrorIs(t, err, ErrJobBusy)

	close(job.block)
	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
	assert.ErrorIs(t, s.Stop(), ErrSchedulerNotRunning)
}

func TestScheduler_StopCancelsRunningJob(t *testing.T) {
	s := NewScheduler(SchedulerConfig{})
	job := &countingJob{name: "blocked", block: make(chan struct{})}
	require.NoError(t, s.Register(job, every(5*time.Millisecond)))
	require.NoError(t, s.Start(context.Background()))

	require.Eventually(t, func() bool { return atomic.LoadInt32(&job.runs) == 1 }, time.Second, 5*time.Millisecond)

	done := make(chan struct{})
	go func() {
		_ = s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}
}
