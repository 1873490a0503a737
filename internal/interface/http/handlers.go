package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"strconv"

	"github.com/academic-records/records-hub/internal/application/command"
	"github.com/academic-records/records-hub/internal/application/query"
	"github.com/academic-records/records-hub/internal/domain/classification"
	"github.com/academic-records/records-hub/internal/domain/grading"
	"github.com/academic-records/records-hub/internal/domain/shared"
	"github.com/academic-records/records-hub/internal/infrastructure/queue"
	"github.com/academic-records/records-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot serves the root endpoint with basic API information.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"name":        "Records Hub API",
		"version":     s.config.Version,
		"description": "Course classification and student averages",
		"endpoints": map[string]string{
			"health":          "/health",
			"classifications": "/api/v1/courses/{courseId}/classifications",
			"poles":           "/api/v1/courses/{courseId}/classifications/poles",
			"average":         "/api/v1/courses/{courseId}/students/{studentId}/average",
			"jobs":            "/api/v1/jobs/{id}",
		},
	}

	writeJSON(w, http.StatusOK, info)
}

// handleHealth handles the health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Healthy {
			writeJSON(w, http.StatusServiceUnavailable, status)
			return
		}
		writeJSON(w, http.StatusOK, status)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"uptime":  s.Uptime().String(),
		"version": s.config.Version,
	})
}

// handleReady handles the readiness probe endpoint (for Kubernetes).
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Ready {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not_ready",
				"reason": status.Message,
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleLive handles the liveness probe endpoint (for Kubernetes).
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// handleMetrics returns basic server counters as JSON.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	metrics := map[string]interface{}{
		"uptime_seconds":  s.Uptime().Seconds(),
		"running":         s.IsRunning(),
		"requests_total":  s.requests.Load(),
		"requests_failed": s.failures.Load(),
		"goroutines":      runtime.NumGoroutine(),
	}
	if s.deps.EventMetrics != nil {
		metrics["events"] = s.deps.EventMetrics()
	}

	writeJSON(w, http.StatusOK, metrics)
}

// ══════════════════════════════════════════════════════════════════════════════
// CLASSIFICATION HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetClassification handles GET /api/v1/courses/{courseId}/classifications
func (s *Server) handleGetClassification(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetCourseClassificationHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Classification handler not configured")
		return
	}

	q := query.GetCourseClassificationQuery{
		CourseID: r.PathValue("courseId"),
		PoleID:   getQueryParam(r, "pole", ""),
		Page:     getQueryParamInt(r, "page", 1),
		PageSize: getQueryParamInt(r, "page_size", 50),
	}

	result, err := s.deps.GetCourseClassificationHandler.Handle(r.Context(), q)
	if err != nil {
		s.writeDomainError(w, r, "failed to get classification", err, logger.CourseID(q.CourseID))
		return
	}

	meta := &ResponseMeta{
		TotalCount: result.TotalCount,
		Page:       result.Page,
		PageSize:   result.PageSize,
		HasMore:    result.HasMore,
	}

	writeJSONWithMeta(w, r, http.StatusOK, result, meta)
}

// handleGetClassificationByPole handles GET /api/v1/courses/{courseId}/classifications/poles
func (s *Server) handleGetClassificationByPole(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetClassificationByPoleHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Pole classification handler not configured")
		return
	}

	courseID := r.PathValue("courseId")
	result, err := s.deps.GetClassificationByPoleHandler.Handle(r.Context(), query.GetClassificationByPoleQuery{CourseID: courseID})
	if err != nil {
		s.writeDomainError(w, r, "failed to get pole classification", err, logger.CourseID(courseID))
		return
	}

	writeJSONWithMeta(w, r, http.StatusOK, result, &ResponseMeta{TotalCount: result.TotalCount})
}

// handleGetStudentAverage handles GET /api/v1/courses/{courseId}/students/{studentId}/average
func (s *Server) handleGetStudentAverage(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetStudentAverageHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Student average handler not configured")
		return
	}

	q := query.GetStudentAverageQuery{
		CourseID:  r.PathValue("courseId"),
		StudentID: r.PathValue("studentId"),
	}

	result, err := s.deps.GetStudentAverageHandler.Handle(r.Context(), q)
	if err != nil {
		s.writeDomainError(w, r, "failed to compute student average", err,
			logger.CourseID(q.CourseID), logger.StudentID(q.StudentID))
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleGenerateClassification handles POST /api/v1/courses/{courseId}/classifications
func (s *Server) handleGenerateClassification(w http.ResponseWriter, r *http.Request) {
	s.enqueueCourseJob(w, r, classification.GenerateJobKey)
}

// handleUpdateClassification handles PUT /api/v1/courses/{courseId}/classifications
func (s *Server) handleUpdateClassification(w http.ResponseWriter, r *http.Request) {
	s.enqueueCourseJob(w, r, classification.UpdateJobKey)
}

// jobResponse describes an enqueued job.
type jobResponse struct {
	ID        string                `json:"id"`
	Key       classification.JobKey `json:"key"`
	CourseID  string                `json:"course_id"`
	Status    queue.Status          `json:"status"`
	StatusURL string                `json:"status_url"`
}

func newJobResponse(job queue.Job) jobResponse {
	return jobResponse{
		ID:        job.ID,
		Key:       job.Key,
		CourseID:  job.Data.CourseID,
		Status:    queue.StatusQueued,
		StatusURL: "/api/v1/jobs/" + job.ID,
	}
}

func (s *Server) enqueueCourseJob(w http.ResponseWriter, r *http.Request, key classification.JobKey) {
	if s.deps.Jobs == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Job queue not configured")
		return
	}

	courseID := r.PathValue("courseId")
	job := queue.NewJob(key, courseID)
	if err := s.deps.Jobs.Enqueue(r.Context(), job); err != nil {
		s.writeDomainError(w, r, "failed to enqueue job", err, logger.JobKey(string(key)), logger.CourseID(courseID))
		return
	}

	logger.FromContext(r.Context()).Info("classification job enqueued",
		logger.JobID(job.ID),
		logger.JobKey(string(key)),
		logger.CourseID(courseID),
	)

	writeJSON(w, http.StatusAccepted, newJobResponse(job))
}

// ══════════════════════════════════════════════════════════════════════════════
// JOB HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetJob handles GET /api/v1/jobs/{id}
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	if s.deps.Jobs == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Job queue not configured")
		return
	}

	id := r.PathValue("id")
	state, err := s.deps.Jobs.State(r.Context(), id)
	if errors.Is(err, queue.ErrUnknownJob) {
		writeJSONError(w, http.StatusNotFound, queue.CodeNotFound, "Job not found")
		return
	}
	if err != nil {
		s.writeDomainError(w, r, "failed to get job state", err, logger.JobID(id))
		return
	}

	writeJSON(w, http.StatusOK, state)
}

// handleListDeadJobs handles GET /api/v1/jobs/dead
func (s *Server) handleListDeadJobs(w http.ResponseWriter, r *http.Request) {
	if s.deps.Jobs == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Job queue not configured")
		return
	}

	limit := getQueryParamInt(r, "limit", 50)
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	jobs, err := s.deps.Jobs.DeadLetters(r.Context(), limit)
	if err != nil {
		s.writeDomainError(w, r, "failed to list dead jobs", err)
		return
	}

	writeJSONWithMeta(w, r, http.StatusOK, jobs, &ResponseMeta{TotalCount: len(jobs)})
}

// ══════════════════════════════════════════════════════════════════════════════
// GRADE EDIT HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// assessmentDTO is the wire form of an assessment.
type assessmentDTO struct {
	ID           string        `json:"id"`
	StudentID    string        `json:"student_id"`
	CourseID     string        `json:"course_id"`
	DisciplineID string        `json:"discipline_id"`
	AVI          grading.Grade `json:"avi"`
	AVII         grading.Grade `json:"avii"`
	VF           grading.Grade `json:"vf"`
	VFE          grading.Grade `json:"vfe"`
}

// behaviorDTO is the wire form of a behavior record.
type behaviorDTO struct {
	ID          string            `json:"id"`
	StudentID   string            `json:"student_id"`
	CourseID    string            `json:"course_id"`
	Module      int               `json:"module"`
	CurrentYear int               `json:"current_year"`
	Months      [12]grading.Grade `json:"months"`
}

// gradeEditResponse is returned by every grade edit.
type gradeEditResponse struct {
	Assessment   *assessmentDTO `json:"assessment,omitempty"`
	Behavior     *behaviorDTO   `json:"behavior,omitempty"`
	FollowUpJobs []jobResponse  `json:"follow_up_jobs"`
}

type updateAssessmentRequest struct {
	AVI  *float64 `json:"avi"`
	AVII *float64 `json:"avii"`
	VF   *float64 `json:"vf"`
	VFE  *float64 `json:"vfe"`
}

type updateBehaviorRequest struct {
	Months map[int]float64 `json:"months"`
}

// handleUpdateAssessment handles PATCH /api/v1/assessments/{id}
func (s *Server) handleUpdateAssessment(w http.ResponseWriter, r *http.Request) {
	if !s.gradeEditsEnabled(w) {
		return
	}

	var req updateAssessmentRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	result, err := s.deps.GradeEditHandler.UpdateAssessmentScores(r.Context(), command.UpdateAssessmentScoresCommand{
		AssessmentID: r.PathValue("id"),
		AVI:          req.AVI,
		AVII:         req.AVII,
		VF:           req.VF,
		VFE:          req.VFE,
	})
	s.respondGradeEdit(w, r, result, err)
}

// handleRemoveAssessmentScore handles DELETE /api/v1/assessments/{id}?field=avi
func (s *Server) handleRemoveAssessmentScore(w http.ResponseWriter, r *http.Request) {
	if !s.gradeEditsEnabled(w) {
		return
	}

	result, err := s.deps.GradeEditHandler.RemoveAssessmentScore(r.Context(), command.RemoveAssessmentScoreCommand{
		AssessmentID: r.PathValue("id"),
		Field:        r.URL.Query().Get("field"),
	})
	s.respondGradeEdit(w, r, result, err)
}

// handleUpdateBehavior handles PATCH /api/v1/behaviors/{id}
func (s *Server) handleUpdateBehavior(w http.ResponseWriter, r *http.Request) {
	if !s.gradeEditsEnabled(w) {
		return
	}

	var req updateBehaviorRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	result, err := s.deps.GradeEditHandler.UpdateBehaviorScores(r.Context(), command.UpdateBehaviorScoresCommand{
		BehaviorID: r.PathValue("id"),
		Months:     req.Months,
	})
	s.respondGradeEdit(w, r, result, err)
}

// handleRemoveBehaviorScore handles DELETE /api/v1/behaviors/{id}?month=3
func (s *Server) handleRemoveBehaviorScore(w http.ResponseWriter, r *http.Request) {
	if !s.gradeEditsEnabled(w) {
		return
	}

	month, err := strconv.Atoi(r.URL.Query().Get("month"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, queue.CodeInvalidPayload, "month must be an integer between 1 and 12")
		return
	}

	result, err := s.deps.GradeEditHandler.RemoveBehaviorScore(r.Context(), command.RemoveBehaviorScoreCommand{
		BehaviorID: r.PathValue("id"),
		Month:      month,
	})
	s.respondGradeEdit(w, r, result, err)
}

func (s *Server) gradeEditsEnabled(w http.ResponseWriter) bool {
	if s.deps.GradeEditHandler == nil || s.deps.Jobs == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Grade edits not configured")
		return false
	}
	return true
}

// respondGradeEdit enqueues the follow-up jobs of an edit and writes the response.
func (s *Server) respondGradeEdit(w http.ResponseWriter, r *http.Request, result *command.GradeEditResult, err error) {
	if err != nil {
		s.writeDomainError(w, r, "grade edit failed", err)
		return
	}

	jobs, err := queue.EnqueueFollowUps(r.Context(), s.deps.Jobs, result.FollowUpJobs)
	if err != nil {
		// The edit is already saved; the nightly reconcile picks the course up.
		logger.FromContext(r.Context()).Error("failed to enqueue follow-up jobs", logger.Err(err), logger.Int("enqueued", len(jobs)))
	}

	resp := gradeEditResponse{FollowUpJobs: make([]jobResponse, len(jobs))}
	for i, job := range jobs {
		resp.FollowUpJobs[i] = newJobResponse(job)
	}
	if a := result.Assessment; a != nil {
		resp.Assessment = &assessmentDTO{
			ID:           a.ID,
			StudentID:    a.StudentID,
			CourseID:     a.CourseID,
			DisciplineID: a.DisciplineID,
			AVI:          a.AVI,
			AVII:         a.AVII,
			VF:           a.VF,
			VFE:          a.VFE,
		}
	}
	if b := result.Behavior; b != nil {
		resp.Behavior = &behaviorDTO{
			ID:          b.ID,
			StudentID:   b.StudentID,
			CourseID:    b.CourseID,
			Module:      b.Module,
			CurrentYear: b.CurrentYear,
			Months:      b.Months,
		}
	}

	writeJSON(w, http.StatusAccepted, resp)
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// writeDomainError maps an application error to an HTTP response.
// Classification errors use the same status/code pairs as failed jobs.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, msg string, err error, fields ...logger.Field) {
	fields = append(fields, logger.Err(err))
	log := logger.FromContext(r.Context())

	var te *queue.TransportError
	switch {
	case errors.As(queue.ToTransportError(err), &te):
		log.Warn(msg, append(fields, logger.Int("status", te.Status))...)
		writeJSONError(w, te.Status, te.Code, publicMessage(err))
	case errors.Is(err, context.DeadlineExceeded):
		log.Warn(msg, fields...)
		writeJSONError(w, http.StatusGatewayTimeout, "timeout", "Request timeout exceeded")
	case shared.IsRetryable(err):
		log.Warn(msg, fields...)
		writeJSONError(w, http.StatusServiceUnavailable, "unavailable", publicMessage(err))
	default:
		log.Error(msg, fields...)
		writeJSONError(w, http.StatusInternalServerError, queue.CodeInternal, "An unexpected error occurred")
	}
}

// publicMessage returns the outermost domain message of err.
func publicMessage(err error) string {
	var de *shared.DomainError
	if errors.As(err, &de) && de.Message != "" {
		return de.Message
	}
	return err.Error()
}

// decodeJSONBody decodes the request body into dst, writing 400 on failure.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeJSONError(w, http.StatusBadRequest, queue.CodeInvalidPayload, "Invalid JSON payload")
		return false
	}
	return true
}
