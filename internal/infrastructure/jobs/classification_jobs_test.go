package jobs

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/academic-records/records-hub/internal/application/command"
	"github.com/academic-records/records-hub/internal/domain/classification"
	"github.com/academic-records/records-hub/internal/domain/course"
	"github.com/academic-records/records-hub/internal/domain/grading"
	"github.com/academic-records/records-hub/internal/domain/shared"
	"github.com/academic-records/records-hub/internal/infrastructure/persistence/memory"
	"github.com/academic-records/records-hub/internal/infrastructure/queue"
)

func newClassifier(t *testing.T, db *memory.DB) *command.ClassifyCourseHandler {
	t.Helper()

	return command.NewClassifyCourseHandler(
		memory.NewCourseRepository(db),
		memory.NewAssessmentRepository(db),
		memory.NewBehaviorRepository(db),
		memory.NewClassificationRepository(db),
		grading.NewCalculator(grading.DefaultPolicy()),
		memory.NewCourseLocker(),
		shared.NoopPublisher{},
		command.ClassifyCourseHandlerConfig{Workers: 2},
	)
}

func seedCourse(t *testing.T, db *memory.DB, formula course.Formula) {
	t.Helper()

	db.PutCourse(course.Course{ID: "c1", Formula: formula, IsPeriod: true},
		course.CourseDiscipline{DisciplineID: "d1", Hours: 10, Expected: course.ExpectedVF},
	)
	db.PutEnrollment(course.Enrollment{StudentID: "s1", CourseID: "c1", PoleID: "p1", Active: true})
	require.NoError(t, memory.NewAssessmentRepository(db).Save(context.Background(),
		grading.Assessment{StudentID: "s1", CourseID: "c1", DisciplineID: "d1", VF: grading.Some(7)}))
}

func transportStatus(t *testing.T, err error) int {
	t.Helper()

	var te *queue.TransportError
	require.ErrorAs(t, err, &te)
	return te.Status
}

func TestGenerateJob_Success(t *testing.T) {
	db := memory.NewDB()
	seedCourse(t, db, course.FormulaCAS)
	job := NewGenerateClassificationJob(newClassifier(t, db), nil)

	err := job.Handle(context.Background(), queue.NewJob(classification.GenerateJobKey, "c1"))
	require.NoError(t, err)

	c, err := memory.NewClassificationRepository(db).Get(context.Background(), "s1", "c1")
	require.NoError(t, err)
	assert.Equal(t, 7.0, c.Average)
}

func TestGenerateJob_SecondRunIsNotAllowed(t *testing.T) {
	db := memory.NewDB()
	seedCourse(t, db, course.FormulaCAS)
	job := NewGenerateClassificationJob(newClassifier(t, db), nil)
	ctx := context.Background()

	require.NoError(t, job.Handle(ctx, queue.NewJob(classification.GenerateJobKey, "c1")))

	err := job.Handle(ctx, queue.NewJob(classification.GenerateJobKey, "c1"))
	assert.Equal(t, http.StatusMethodNotAllowed, transportStatus(t, err))
	assert.True(t, shared.IsNotAllowed(err))
}

func TestUpdateJob_MissingCourse(t *testing.T) {
	db := memory.NewDB()
	job := NewUpdateClassificationJob(newClassifier(t, db), nil)

	err := job.Handle(context.Background(), queue.NewJob(classification.UpdateJobKey, "missing"))
	assert.Equal(t, http.StatusNotFound, transportStatus(t, err))
	assert.Equal(t, 0, db.ClassificationWrites())
}

func TestUpdateJob_InvalidFormula(t *testing.T) {
	db := memory.NewDB()
	seedCourse(t, db, course.Formula("XYZ"))
	job := NewUpdateClassificationJob(newClassifier(t, db), nil)

	err := job.Handle(context.Background(), queue.NewJob(classification.UpdateJobKey, "c1"))
	assert.Equal(t, http.StatusConflict, transportStatus(t, err))
}

func TestJob_InvalidPayload(t *testing.T) {
	job := NewUpdateClassificationJob(newClassifier(t, memory.NewDB()), nil)

	err := job.Handle(context.Background(), queue.NewJob(classification.UpdateJobKey, ""))
	assert.Equal(t, http.StatusBadRequest, transportStatus(t, err))
}

func TestRegister_WorkerRunsBothKeys(t *testing.T) {
	db := memory.NewDB()
	seedCourse(t, db, course.FormulaCHO)
	ctx := context.Background()

	q := queue.NewMemoryQueue()
	w := queue.NewWorker(q, queue.WorkerConfig{MaxAttempts: 1, PollTimeout: 10 * time.Millisecond})
	Register(w, newClassifier(t, db), nil)

	gen := queue.NewJob(classification.GenerateJobKey, "c1")
	require.NoError(t, w.Process(ctx, gen))

	upd := queue.NewJob(classification.UpdateJobKey, "c1")
	require.NoError(t, w.Process(ctx, upd))

	again := queue.NewJob(classification.GenerateJobKey, "c1")
	require.Error(t, w.Process(ctx, again))

	state, err := q.State(ctx, again.ID)
	require.NoError(t, err)
	assert.Equal(t, queue.FailedStatus(queue.CodeNotAllowed), state.Status)
}
