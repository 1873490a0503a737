package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/academic-records/records-hub/internal/application/command"
	"github.com/academic-records/records-hub/internal/application/query"
	"github.com/academic-records/records-hub/internal/domain/classification"
	"github.com/academic-records/records-hub/internal/domain/course"
	"github.com/academic-records/records-hub/internal/domain/grading"
	"github.com/academic-records/records-hub/internal/domain/shared"
	"github.com/academic-records/records-hub/internal/infrastructure/messaging"
	"github.com/academic-records/records-hub/internal/infrastructure/persistence/memory"
	"github.com/academic-records/records-hub/internal/infrastructure/queue"
	"github.com/academic-records/records-hub/pkg/logger"
)

const testAPIKey = "test-key"

type testEnv struct {
	server *Server
	db     *memory.DB
	jobs   *queue.MemoryQueue
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := memory.NewDB()
	db.PutCourse(course.Course{ID: "c1", Formula: course.FormulaCAS, IsPeriod: true},
		course.CourseDiscipline{DisciplineID: "d1", Hours: 10, Expected: course.ExpectedVF},
	)
	db.PutEnrollment(course.Enrollment{StudentID: "s1", CourseID: "c1", PoleID: "p1", Active: true})
	require.NoError(t, memory.NewAssessmentRepository(db).Save(context.Background(),
		grading.Assessment{ID: "a1", StudentID: "s1", CourseID: "c1", DisciplineID: "d1", VF: grading.Some(7)}))
	require.NoError(t, memory.NewBehaviorRepository(db).Save(context.Background(),
		grading.Behavior{ID: "b1", StudentID: "s1", CourseID: "c1", Module: 1, CurrentYear: 2024}))

	courses := memory.NewCourseRepository(db)
	assessments := memory.NewAssessmentRepository(db)
	behaviors := memory.NewBehaviorRepository(db)
	classifications := memory.NewClassificationRepository(db)
	calculator := grading.NewCalculator(grading.DefaultPolicy())

	hash, err := bcrypt.GenerateFromPassword([]byte(testAPIKey), bcrypt.MinCost)
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.RateLimitPerMinute = 0
	cfg.APIKeyHashes = []string{string(hash)}

	jobs := queue.NewMemoryQueue()
	t.Cleanup(jobs.Close)

	srv := NewServer(cfg, Dependencies{
		GetCourseClassificationHandler: query.NewGetCourseClassificationHandler(courses, classifications, nil),
		GetClassificationByPoleHandler: query.NewGetClassificationByPoleHandler(courses, classifications, nil),
		GetStudentAverageHandler:       query.NewGetStudentAverageHandler(courses, assessments, behaviors, calculator),
		GradeEditHandler:               command.NewGradeEditHandler(assessments, behaviors, nil, nil),
		Jobs:                           jobs,
		Logger:                         logger.New(logger.Options{Output: io.Discard}),
	})

	return &testEnv{server: srv, db: db, jobs: jobs}
}

// classify runs the generate mode directly, as the worker would.
func (e *testEnv) classify(t *testing.T) {
	t.Helper()

	h := command.NewClassifyCourseHandler(
		memory.NewCourseRepository(e.db),
		memory.NewAssessmentRepository(e.db),
		memory.NewBehaviorRepository(e.db),
		memory.NewClassificationRepository(e.db),
		grading.NewCalculator(grading.DefaultPolicy()),
		memory.NewCourseLocker(),
		shared.NoopPublisher{},
		command.ClassifyCourseHandlerConfig{Workers: 1},
	)
	_, err := h.Handle(context.Background(), command.ClassifyCourseCommand{CourseID: "c1", Mode: classification.ModeGenerate})
	require.NoError(t, err)
}

func (e *testEnv) do(t *testing.T, method, target, body string, authed bool) (*httptest.ResponseRecorder, testResponse) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if authed {
		req.Header.Set("X-API-Key", testAPIKey)
	}

	rec := httptest.NewRecorder()
	e.server.httpServer.Handler.ServeHTTP(rec, req)

	var resp testResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return rec, resp
}

type testResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *APIError       `json:"error"`
}

func TestServer_Health(t *testing.T) {
	env := newTestEnv(t)

	rec, resp := env.do(t, http.MethodGet, "/health", "", false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestServer_GetClassification(t *testing.T) {
	env := newTestEnv(t)
	env.classify(t)

	rec, resp := env.do(t, http.MethodGet, "/api/v1/courses/c1/classifications", "", false)
	require.Equal(t, http.StatusOK, rec.Code)

	var result query.GetCourseClassificationResult
	require.NoError(t, json.Unmarshal(resp.Data, &result))
	require.Len(t, result.Entries, 1)
	assert.Equal(t, "s1", result.Entries[0].StudentID)
	assert.Equal(t, 1, result.Entries[0].Rank)
	assert.Equal(t, 7.0, result.Entries[0].Average)
}

func TestServer_GetClassificationByPole(t *testing.T) {
	env := newTestEnv(t)
	env.classify(t)

	rec, resp := env.do(t, http.MethodGet, "/api/v1/courses/c1/classifications/poles", "", false)
	require.Equal(t, http.StatusOK, rec.Code)

	var result query.GetClassificationByPoleResult
	require.NoError(t, json.Unmarshal(resp.Data, &result))
	require.Len(t, result.Poles, 1)
	assert.Equal(t, "p1", result.Poles[0].PoleID)
}

func TestServer_UnknownCourseIsNotFound(t *testing.T) {
	env := newTestEnv(t)

	rec, resp := env.do(t, http.MethodGet, "/api/v1/courses/missing/classifications", "", false)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, queue.CodeNotFound, resp.Error.Code)
}

func TestServer_GetStudentAverage(t *testing.T) {
	env := newTestEnv(t)

	rec, resp := env.do(t, http.MethodGet, "/api/v1/courses/c1/students/s1/average", "", false)
	require.Equal(t, http.StatusOK, rec.Code)

	var result query.GetStudentAverageResult
	require.NoError(t, json.Unmarshal(resp.Data, &result))
	assert.Equal(t, 7.0, result.GeralAverage)
	assert.Equal(t, "p1", result.PoleID)

	rec, _ = env.do(t, http.MethodGet, "/api/v1/courses/c1/students/nobody/average", "", false)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_EnqueueRequiresAPIKey(t *testing.T) {
	env := newTestEnv(t)

	rec, resp := env.do(t, http.MethodPost, "/api/v1/courses/c1/classifications", "", false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, resp.Success)
	assert.Equal(t, 0, env.jobs.Len())
}

func TestServer_EnqueueGenerateAndReadStatus(t *testing.T) {
	env := newTestEnv(t)

	rec, resp := env.do(t, http.MethodPost, "/api/v1/courses/c1/classifications", "", true)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var job jobResponse
	require.NoError(t, json.Unmarshal(resp.Data, &job))
	assert.Equal(t, classification.GenerateJobKey, job.Key)
	assert.Equal(t, "c1", job.CourseID)
	assert.Equal(t, 1, env.jobs.Len())

	rec, resp = env.do(t, http.MethodGet, job.StatusURL, "", false)
	require.Equal(t, http.StatusOK, rec.Code)

	var state queue.JobState
	require.NoError(t, json.Unmarshal(resp.Data, &state))
	assert.Equal(t, queue.StatusQueued, state.Status)
}

func TestServer_EnqueueUpdate(t *testing.T) {
	env := newTestEnv(t)

	rec, resp := env.do(t, http.MethodPut, "/api/v1/courses/c1/classifications", "", true)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var job jobResponse
	require.NoError(t, json.Unmarshal(resp.Data, &job))
	assert.Equal(t, classification.UpdateJobKey, job.Key)
}

func TestServer_UnknownJob(t *testing.T) {
	env := newTestEnv(t)

	rec, _ := env.do(t, http.MethodGet, "/api/v1/jobs/nope", "", false)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_UpdateAssessmentEnqueuesFollowUp(t *testing.T) {
	env := newTestEnv(t)

	rec, resp := env.do(t, http.MethodPatch, "/api/v1/assessments/a1", `{"vf": 8.5}`, true)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var edit gradeEditResponse
	require.NoError(t, json.Unmarshal(resp.Data, &edit))
	require.NotNil(t, edit.Assessment)
	assert.Equal(t, 8.5, edit.Assessment.VF.Or(0))
	require.Len(t, edit.FollowUpJobs, 1)
	assert.Equal(t, classification.UpdateJobKey, edit.FollowUpJobs[0].Key)
	assert.Equal(t, 1, env.jobs.Len())
}

func TestServer_GradeEditErrors(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		method string
		target string
		body   string
		status int
		code   string
	}{
		{"score out of range", http.MethodPatch, "/api/v1/assessments/a1", `{"vf": 11}`, http.StatusBadRequest, queue.CodeInvalidPayload},
		{"malformed body", http.MethodPatch, "/api/v1/assessments/a1", `{"vf":`, http.StatusBadRequest, queue.CodeInvalidPayload},
		{"vf cannot be removed", http.MethodDelete, "/api/v1/assessments/a1?field=vf", "", http.StatusMethodNotAllowed, queue.CodeNotAllowed},
		{"unknown assessment", http.MethodPatch, "/api/v1/assessments/zz", `{"avi": 5}`, http.StatusNotFound, queue.CodeNotFound},
		{"month not a number", http.MethodDelete, "/api/v1/behaviors/b1?month=x", "", http.StatusBadRequest, queue.CodeInvalidPayload},
		{"month out of range", http.MethodDelete, "/api/v1/behaviors/b1?month=13", "", http.StatusBadRequest, queue.CodeInvalidPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, resp := env.do(t, tt.method, tt.target, tt.body, true)
			assert.Equal(t, tt.status, rec.Code)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
	assert.Equal(t, 0, env.jobs.Len())
}

func TestServer_UpdateBehavior(t *testing.T) {
	env := newTestEnv(t)

	rec, resp := env.do(t, http.MethodPatch, "/api/v1/behaviors/b1", `{"months": {"3": 9, "4": 8}}`, true)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var edit gradeEditResponse
	require.NoError(t, json.Unmarshal(resp.Data, &edit))
	require.NotNil(t, edit.Behavior)
	assert.Equal(t, 9.0, edit.Behavior.Months[2].Or(0))
	assert.Equal(t, 8.0, edit.Behavior.Months[3].Or(0))
	assert.False(t, edit.Behavior.Months[0].IsSet())
}

func TestServer_DeadJobs(t *testing.T) {
	env := newTestEnv(t)
	job := queue.NewJob(classification.UpdateJobKey, "c1")
	require.NoError(t, env.jobs.DeadLetter(context.Background(), job, assert.AnError))

	rec, resp := env.do(t, http.MethodGet, "/api/v1/jobs/dead", "", true)
	require.Equal(t, http.StatusOK, rec.Code)

	var dead []queue.JobState
	require.NoError(t, json.Unmarshal(resp.Data, &dead))
	require.Len(t, dead, 1)
	assert.Equal(t, job.ID, dead[0].Job.ID)
}

func TestServer_CORSPreflight(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/courses/c1/classifications", nil)
	req.Header.Set("Origin", "https://secretaria.example")
	rec := httptest.NewRecorder()
	env.server.httpServer.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://secretaria.example", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimiter_FixedWindow(t *testing.T) {
	rl := newRateLimiter(2, time.Minute)
	defer rl.stop()

	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	_, ok := rl.allow("10.0.0.1", now)
	assert.True(t, ok)
	_, ok = rl.allow("10.0.0.1", now.Add(time.Second))
	assert.True(t, ok)

	wait, ok := rl.allow("10.0.0.1", now.Add(20*time.Second))
	assert.False(t, ok)
	assert.Equal(t, 40*time.Second, wait)

	_, ok = rl.allow("10.0.0.2", now.Add(20*time.Second))
	assert.True(t, ok)

	_, ok = rl.allow("10.0.0.1", now.Add(time.Minute))
	assert.True(t, ok)
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.10:5123"
	assert.Equal(t, "192.0.2.10", clientIP(req))

	req.Header.Set("X-Real-IP", "198.51.100.2")
	assert.Equal(t, "198.51.100.2", clientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	assert.Equal(t, "203.0.113.7", clientIP(req))
}

func TestServer_MetricsIncludeEventBus(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RateLimitPerMinute = 0
	srv := NewServer(cfg, Dependencies{
		Logger: logger.New(logger.Options{Output: io.Discard}),
		EventMetrics: func() messaging.EventBusMetricsSnapshot {
			return messaging.EventBusMetricsSnapshot{Published: 3, Succeeded: 2, Failed: 1}
		},
	})

	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data struct {
			Events messaging.EventBusMetricsSnapshot `json:"events"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(3), resp.Data.Events.Published)
	assert.Equal(t, int64(1), resp.Data.Events.Failed)
}
