// Package command contains write operations (CQRS - Commands).
// Commands are responsible for changing the state of the system.
package command

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/academic-records/records-hub/internal/domain/classification"
	"github.com/academic-records/records-hub/internal/domain/course"
	"github.com/academic-records/records-hub/internal/domain/grading"
	"github.com/academic-records/records-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CLASSIFY COURSE COMMAND
// Computes and persists a Classification for every active enrollment of a course.
// Generate refuses to run twice; update overwrites in place and is idempotent.
// ══════════════════════════════════════════════════════════════════════════════

// ClassifyCourseCommand contains the data needed to classify a course.
type ClassifyCourseCommand struct {
	// CourseID is the course to classify.
	CourseID string `validate:"required"`

	// Mode is "generate" or "update".
	Mode classification.Mode `validate:"required,oneof=generate update"`

	// CorrelationID for tracing across services.
	CorrelationID string
}

// Validate validates the command.
func (c ClassifyCourseCommand) Validate() error {
	return validateStruct("ClassifyCourse", c)
}

// ClassifyCourseResult contains the outcome of a classification run.
type ClassifyCourseResult struct {
	CourseID string
	Mode     classification.Mode

	// Students is the number of active enrollments classified.
	Students int

	// Created and Updated split Students by whether a row existed before.
	Created int
	Updated int

	// Approved counts approved and approved-second-season students.
	Approved int

	// StatusChanges counts students whose status differs from the stored one.
	StatusChanges int

	StartedAt time.Time
	Duration  time.Duration

	// Events contains domain events generated during the run.
	Events []shared.Event
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES (Interfaces)
// ══════════════════════════════════════════════════════════════════════════════

// CourseLocker serializes classification runs of the same course.
type CourseLocker interface {
	// Lock acquires the course lock. It returns shared.ErrCourseBusy when the
	// lock is held elsewhere and cannot be acquired in time.
	Lock(ctx context.Context, courseID string) (unlock func(), err error)
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// ClassifyCourseHandler handles the ClassifyCourseCommand.
type ClassifyCourseHandler struct {
	courses         course.Repository
	assessments     grading.AssessmentRepository
	behaviors       grading.BehaviorRepository
	classifications classification.Repository
	calculator      *grading.Calculator
	locker          CourseLocker
	eventPublisher  shared.EventPublisher
	logger          *slog.Logger

	// Configuration
	workers int
	clock   func() time.Time
}

// ClassifyCourseHandlerConfig contains configuration for the handler.
type ClassifyCourseHandlerConfig struct {
	// Workers bounds the number of students computed in parallel.
	Workers int

	// Logger for run summaries.
	Logger *slog.Logger

	// Clock returns the timestamp written to classifications.
	Clock func() time.Time
}

// DefaultClassifyCourseHandlerConfig returns default configuration.
func DefaultClassifyCourseHandlerConfig() ClassifyCourseHandlerConfig {
	return ClassifyCourseHandlerConfig{
		Workers: 8,
		Logger:  slog.Default(),
		Clock:   func() time.Time { return time.Now().UTC() },
	}
}

// NewClassifyCourseHandler creates a new ClassifyCourseHandler.
// A nil publisher discards events; a nil locker runs without serialization.
func NewClassifyCourseHandler(
	courses course.Repository,
	assessments grading.AssessmentRepository,
	behaviors grading.BehaviorRepository,
	classifications classification.Repository,
	calculator *grading.Calculator,
	locker CourseLocker,
	eventPublisher shared.EventPublisher,
	config ClassifyCourseHandlerConfig,
) *ClassifyCourseHandler {
	defaults := DefaultClassifyCourseHandlerConfig()
	if config.Workers <= 0 {
		config.Workers = defaults.Workers
	}
	if config.Logger == nil {
		config.Logger = defaults.Logger
	}
	if config.Clock == nil {
		config.Clock = defaults.Clock
	}
	if eventPublisher == nil {
		eventPublisher = shared.NoopPublisher{}
	}
	if locker == nil {
		locker = noopLocker{}
	}

	return &ClassifyCourseHandler{
		courses:         courses,
		assessments:     assessments,
		behaviors:       behaviors,
		classifications: classifications,
		calculator:      calculator,
		locker:          locker,
		eventPublisher:  eventPublisher,
		logger:          config.Logger,
		workers:         config.Workers,
		clock:           config.Clock,
	}
}

// Handle executes the classify course command.
func (h *ClassifyCourseHandler) Handle(ctx context.Context, cmd ClassifyCourseCommand) (*ClassifyCourseResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("classify_course: validation failed: %w", err)
	}

	unlock, err := h.locker.Lock(ctx, cmd.CourseID)
	if err != nil {
		return nil, fmt.Errorf("classify_course: %w", err)
	}
	defer unlock()

	result, err := h.classify(ctx, cmd)
	if err != nil {
		h.reject(cmd, err)
		return nil, err
	}

	for _, event := range result.Events {
		if err := h.eventPublisher.Publish(event); err != nil {
			h.logger.Warn("failed to publish event",
				"event", event.EventType(),
				"course_id", cmd.CourseID,
				"error", err,
			)
		}
	}

	h.logger.Info("course classified",
		"course_id", result.CourseID,
		"mode", result.Mode,
		"students", result.Students,
		"created", result.Created,
		"updated", result.Updated,
		"approved", result.Approved,
		"duration", result.Duration,
	)

	return result, nil
}

// studentOutcome bundles one enrollment with its computed average.
type studentOutcome struct {
	enrollment  course.Enrollment
	average     grading.StudentAverage
	assessments int
	behaviors   int
}

func (h *ClassifyCourseHandler) classify(ctx context.Context, cmd ClassifyCourseCommand) (*ClassifyCourseResult, error) {
	startedAt := h.clock()
	result := &ClassifyCourseResult{
		CourseID:  cmd.CourseID,
		Mode:      cmd.Mode,
		StartedAt: startedAt,
	}

	crs, err := h.courses.GetByID(ctx, cmd.CourseID)
	if err != nil {
		return nil, err
	}
	if _, err := h.calculator.Policy().SplitFor(crs.Formula); err != nil {
		return nil, err
	}

	if cmd.Mode == classification.ModeGenerate {
		exists, err := h.classifications.ExistsForCourse(ctx, crs.ID)
		if err != nil {
			return nil, fmt.Errorf("classify_course: failed to check classifications: %w", err)
		}
		if exists {
			return nil, shared.WrapError("classification", "Generate", shared.ErrClassificationExists,
				fmt.Sprintf("course %s already has classifications", crs.ID), nil)
		}
	}

	outcomes, err := h.computeAll(ctx, crs)
	if err != nil {
		return nil, err
	}

	existing, err := h.classifications.ListByCourse(ctx, crs.ID, "")
	if err != nil {
		return nil, fmt.Errorf("classify_course: failed to load classifications: %w", err)
	}
	previous := make(map[string]*classification.Classification, len(existing))
	for _, c := range existing {
		previous[c.StudentID] = c
	}

	now := h.clock()
	for _, o := range outcomes {
		next := classification.New(o.average, o.enrollment, o.assessments, o.behaviors, now)
		prev := previous[o.enrollment.StudentID]
		if prev != nil {
			next = prev.Replace(next)
			result.Updated++
		} else {
			result.Created++
		}

		if err := h.classifications.Upsert(ctx, next); err != nil {
			return nil, fmt.Errorf("classify_course: failed to save classification of student %s: %w",
				o.enrollment.StudentID, err)
		}

		if next.Status.IsApproved() {
			result.Approved++
		}
		if next.StatusChanged(prev) {
			result.StatusChanges++
			event := shared.NewStudentStatusChangedEvent(next.StudentID, next.CourseID,
				string(prev.Status), string(next.Status), next.Average)
			if cmd.CorrelationID != "" {
				event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
			}
			result.Events = append(result.Events, event)
		}
	}
	result.Students = len(outcomes)

	courseEvent := shared.NewCourseClassifiedEvent(crs.ID, string(cmd.Mode), result.Students, result.Approved)
	if cmd.CorrelationID != "" {
		courseEvent.BaseEvent = courseEvent.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}
	result.Events = append(result.Events, courseEvent)
	result.Duration = h.clock().Sub(startedAt)

	return result, nil
}

// computeAll calculates every active enrollment before anything is written,
// so a failing student leaves the stored classifications untouched.
func (h *ClassifyCourseHandler) computeAll(ctx context.Context, crs *course.Course) ([]studentOutcome, error) {
	disciplines, err := h.courses.ListDisciplines(ctx, crs.ID)
	if err != nil {
		return nil, fmt.Errorf("classify_course: failed to load disciplines: %w", err)
	}
	enrollments, err := h.courses.ListActiveEnrollments(ctx, crs.ID)
	if err != nil {
		return nil, fmt.Errorf("classify_course: failed to load enrollments: %w", err)
	}
	assessments, err := h.assessments.ListByCourse(ctx, crs.ID)
	if err != nil {
		return nil, fmt.Errorf("classify_course: failed to load assessments: %w", err)
	}
	behaviors, err := h.behaviors.ListByCourse(ctx, crs.ID)
	if err != nil {
		return nil, fmt.Errorf("classify_course: failed to load behaviors: %w", err)
	}

	index := course.NewDisciplineIndex(disciplines)
	outcomes := make([]studentOutcome, len(enrollments))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.workers)
	for i, e := range enrollments {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			avg, err := h.calculator.Compute(grading.StudentInput{
				StudentID:   e.StudentID,
				Course:      crs,
				Disciplines: index,
				Assessments: assessments[e.StudentID],
				Behaviors:   behaviors[e.StudentID],
			})
			if err != nil {
				return err
			}
			outcomes[i] = studentOutcome{
				enrollment:  e,
				average:     avg,
				assessments: len(assessments[e.StudentID]),
				behaviors:   len(behaviors[e.StudentID]),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

// reject publishes a rejection event for domain failures.
func (h *ClassifyCourseHandler) reject(cmd ClassifyCourseCommand, err error) {
	if !shared.IsNotFound(err) && !shared.IsInvalidCourseFormula(err) && !shared.IsNotAllowed(err) {
		return
	}
	event := shared.NewClassificationRejectedEvent(cmd.CourseID, string(cmd.Mode), err.Error())
	if pubErr := h.eventPublisher.Publish(event); pubErr != nil {
		h.logger.Warn("failed to publish rejection", "course_id", cmd.CourseID, "error", pubErr)
	}
}

type noopLocker struct{}

func (noopLocker) Lock(context.Context, string) (func(), error) {
	return func() {}, nil
}
