package app

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/academic-records/records-hub/config"
	"github.com/academic-records/records-hub/internal/application/query"
	"github.com/academic-records/records-hub/internal/domain/classification"
	"github.com/academic-records/records-hub/internal/domain/course"
	"github.com/academic-records/records-hub/internal/domain/grading"
	"github.com/academic-records/records-hub/internal/infrastructure/queue"
)

func newMemoryRuntime(t *testing.T) *Runtime {
	t.Helper()

	t.Setenv("APP_STORAGE", "memory")
	t.Setenv("APP_ENV", "development")
	cfg, err := config.FromEnv()
	require.NoError(t, err)

	rt, err := New(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(rt.Close)

	require.NotNil(t, rt.MemoryDB)
	rt.MemoryDB.PutCourse(course.Course{ID: "c1", Formula: course.FormulaCAS, IsPeriod: true},
		course.CourseDiscipline{DisciplineID: "d1", Hours: 10, Expected: course.ExpectedVF},
	)
	rt.MemoryDB.PutEnrollment(course.Enrollment{StudentID: "s1", CourseID: "c1", PoleID: "p1", Active: true})
	require.NoError(t, rt.Assessments.Save(context.Background(),
		grading.Assessment{ID: "a1", StudentID: "s1", CourseID: "c1", DisciplineID: "d1", VF: grading.Some(8)}))

	return rt
}

func TestRuntime_MemoryModeRunsGenerateJob(t *testing.T) {
	rt := newMemoryRuntime(t)
	ctx := context.Background()

	assert.Nil(t, rt.Rankings())

	job := queue.NewJob(classification.GenerateJobKey, "c1")
	require.NoError(t, rt.Jobs.Enqueue(ctx, job))
	require.NoError(t, rt.Worker().Process(ctx, job))

	state, err := rt.Jobs.State(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, queue.StatusDone, state.Status)

	c, err := rt.Classifications.Get(ctx, "s1", "c1")
	require.NoError(t, err)
	assert.Equal(t, 8.0, c.Average)
	assert.Equal(t, "p1", c.PoleID)

	ranking, err := rt.Queries().CourseClassification.Handle(ctx, query.GetCourseClassificationQuery{CourseID: "c1"})
	require.NoError(t, err)
	require.Len(t, ranking.Entries, 1)
	assert.Equal(t, 1, ranking.Entries[0].Rank)
}

func TestRuntime_JobForUnknownCourseFails(t *testing.T) {
	rt := newMemoryRuntime(t)
	ctx := context.Background()

	job := queue.NewJob(classification.UpdateJobKey, "missing")
	require.NoError(t, rt.Jobs.Enqueue(ctx, job))
	require.Error(t, rt.Worker().Process(ctx, job))

	state, err := rt.Jobs.State(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, queue.FailedStatus(queue.CodeNotFound), state.Status)
}

func TestRuntime_Scheduler(t *testing.T) {
	rt := newMemoryRuntime(t)

	s, err := rt.Scheduler()
	require.NoError(t, err)

	jobs := s.ListJobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "reconcile_classifications", jobs[0].Name)
	assert.True(t, jobs[0].Enabled)

	rt.Config.Scheduler.ReconcileCron = "not a cron"
	_, err = rt.Scheduler()
	assert.Error(t, err)
}

func TestRuntime_HealthChecker(t *testing.T) {
	rt := newMemoryRuntime(t)

	status := rt.HealthChecker().Check(context.Background())
	assert.True(t, status.Healthy)
	assert.Contains(t, status.Checks, "queue")
	assert.NotContains(t, status.Checks, "database")
}

func TestNew_UnknownStorage(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Storage: "sqlite"}}

	rt, err := New(context.Background(), cfg, nil)
	assert.Nil(t, rt)
	assert.Error(t, err)
}
