package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/academic-records/records-hub/internal/domain/classification"
	"github.com/academic-records/records-hub/internal/infrastructure/queue"
)

type staticCourses []string

func (s staticCourses) ListClassifiedCourses(context.Context) ([]string, error) {
	return s, nil
}

type failingQueue struct {
	failFor string
	jobs    []queue.Job
}

func (q *failingQueue) Enqueue(_ context.Context, job queue.Job) error {
	if job.Data.CourseID == q.failFor {
		return errors.New("redis down")
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func TestReconcileClassifications_EnqueuesUpdates(t *testing.T) {
	q := queue.NewMemoryQueue()
	job := NewReconcileClassificationsJob(staticCourses{"c1", "c2"}, q, nil, ReconcileClassificationsConfig{})

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 2, q.Len())

	first, err := q.Dequeue(context.Background(), time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, classification.UpdateJobKey, first.Key)
	assert.Equal(t, "c1", first.Data.CourseID)

	stats := job.LastStats()
	require.NotNil(t, stats)
	assert.Equal(t, 2, stats.Enqueued)
}

func TestReconcileClassifications_ReportsFailures(t *testing.T) {
	q := &failingQueue{failFor: "c2"}
	job := NewReconcileClassificationsJob(staticCourses{"c1", "c2", "c3"}, q, nil, ReconcileClassificationsConfig{})

	err := job.Run(context.Background())
	require.Error(t, err)
	assert.Len(t, q.jobs, 2)
	assert.Equal(t, 1, job.LastStats().Failed)
}
