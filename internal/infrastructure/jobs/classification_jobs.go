// Package jobs contains the queue handlers of the classification job runner.
// generate-classification-job and update-classification-job both take
// {course_id} and run the course aggregator in the matching mode. Domain
// failures leave this package as queue.TransportError values.
package jobs

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/academic-records/records-hub/internal/application/command"
	"github.com/academic-records/records-hub/internal/domain/classification"
	"github.com/academic-records/records-hub/internal/infrastructure/queue"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// CourseClassifier runs the course aggregator.
type CourseClassifier interface {
	Handle(ctx context.Context, cmd command.ClassifyCourseCommand) (*command.ClassifyCourseResult, error)
}

// ClassificationJob handles one of the two classification job keys.
type ClassificationJob struct {
	key        classification.JobKey
	classifier CourseClassifier
	logger     *slog.Logger
}

// NewGenerateClassificationJob creates the generate-classification-job handler.
func NewGenerateClassificationJob(classifier CourseClassifier, logger *slog.Logger) *ClassificationJob {
	return newClassificationJob(classification.GenerateJobKey, classifier, logger)
}

// NewUpdateClassificationJob creates the update-classification-job handler.
func NewUpdateClassificationJob(classifier CourseClassifier, logger *slog.Logger) *ClassificationJob {
	return newClassificationJob(classification.UpdateJobKey, classifier, logger)
}

func newClassificationJob(key classification.JobKey, classifier CourseClassifier, logger *slog.Logger) *ClassificationJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &ClassificationJob{
		key:        key,
		classifier: classifier,
		logger:     logger.With("job", string(key)),
	}
}

// Key returns the job key served by the handler.
func (j *ClassificationJob) Key() classification.JobKey {
	return j.key
}

// Handle runs the aggregator for the job's course.
func (j *ClassificationJob) Handle(ctx context.Context, job queue.Job) error {
	if err := validate.Struct(job.Data); err != nil {
		j.logger.Error("invalid job payload", "job_id", job.ID, "error", err)
		return &queue.TransportError{Status: http.StatusBadRequest, Code: queue.CodeInvalidPayload, Err: err}
	}

	result, err := j.classifier.Handle(ctx, command.ClassifyCourseCommand{
		CourseID:      job.Data.CourseID,
		Mode:          j.key.Mode(),
		CorrelationID: job.ID,
	})
	if err != nil {
		mapped := queue.ToTransportError(err)
		var te *queue.TransportError
		if errors.As(mapped, &te) {
			j.logger.Error("classification job failed",
				"job_id", job.ID,
				"course_id", job.Data.CourseID,
				"status", te.Status,
				"code", te.Code,
				"error", err,
			)
		}
		return mapped
	}

	j.logger.Info("classification job completed",
		"job_id", job.ID,
		"course_id", result.CourseID,
		"students", result.Students,
		"status_changes", result.StatusChanges,
		"duration", result.Duration.String(),
	)
	return nil
}

// Register binds both classification jobs to the worker.
func Register(w *queue.Worker, classifier CourseClassifier, logger *slog.Logger) {
	for _, job := range []*ClassificationJob{
		NewGenerateClassificationJob(classifier, logger),
		NewUpdateClassificationJob(classifier, logger),
	} {
		w.Register(job.Key(), job)
	}
}
