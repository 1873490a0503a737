package command

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/academic-records/records-hub/internal/domain/classification"
	"github.com/academic-records/records-hub/internal/domain/grading"
	"github.com/academic-records/records-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GRADE EDIT COMMANDS
// Correct or remove individual scores. Every edit returns the follow-up jobs the
// caller must enqueue; the edit itself never triggers a recalculation.
// ══════════════════════════════════════════════════════════════════════════════

// UpdateAssessmentScoresCommand sets one or more scores of an assessment.
// Nil fields are left unchanged.
type UpdateAssessmentScoresCommand struct {
	AssessmentID string   `validate:"required"`
	AVI          *float64 `validate:"omitempty,gte=0,lte=10"`
	AVII         *float64 `validate:"omitempty,gte=0,lte=10"`
	VF           *float64 `validate:"omitempty,gte=0,lte=10"`
	VFE          *float64 `validate:"omitempty,gte=0,lte=10"`
}

// Validate validates the command.
func (c UpdateAssessmentScoresCommand) Validate() error {
	if err := validateStruct("UpdateAssessmentScores", c); err != nil {
		return err
	}
	if c.AVI == nil && c.AVII == nil && c.VF == nil && c.VFE == nil {
		return shared.NewDomainError("command", "UpdateAssessmentScores", shared.ErrValidation, "no scores to update")
	}
	return nil
}

// RemoveAssessmentScoreCommand clears one optional score of an assessment.
type RemoveAssessmentScoreCommand struct {
	AssessmentID string `validate:"required"`
	Field        string `validate:"required,oneof=avi avii vf vfe"`
}

// Validate validates the command.
func (c RemoveAssessmentScoreCommand) Validate() error {
	return validateStruct("RemoveAssessmentScore", c)
}

// UpdateBehaviorScoresCommand sets monthly behavior scores, keyed by month (1..12).
type UpdateBehaviorScoresCommand struct {
	BehaviorID string          `validate:"required"`
	Months     map[int]float64 `validate:"required,min=1,dive,keys,gte=1,lte=12,endkeys,gte=0,lte=10"`
}

// Validate validates the command.
func (c UpdateBehaviorScoresCommand) Validate() error {
	return validateStruct("UpdateBehaviorScores", c)
}

// RemoveBehaviorScoreCommand clears the score of one month.
type RemoveBehaviorScoreCommand struct {
	BehaviorID string `validate:"required"`
	Month      int    `validate:"gte=1,lte=12"`
}

// Validate validates the command.
func (c RemoveBehaviorScoreCommand) Validate() error {
	return validateStruct("RemoveBehaviorScore", c)
}

// GradeEditResult contains the edited record and the jobs to enqueue.
type GradeEditResult struct {
	// Assessment is set for assessment edits.
	Assessment *grading.Assessment

	// Behavior is set for behavior edits.
	Behavior *grading.Behavior

	// FollowUpJobs must be enqueued by the caller.
	FollowUpJobs []classification.FollowUpJob

	// Events contains domain events generated by the edit.
	Events []shared.Event
}

// GradeEditHandler handles the grade edit commands.
type GradeEditHandler struct {
	assessments    grading.AssessmentRepository
	behaviors      grading.BehaviorRepository
	eventPublisher shared.EventPublisher
	logger         *slog.Logger
}

// NewGradeEditHandler creates a new GradeEditHandler.
func NewGradeEditHandler(
	assessments grading.AssessmentRepository,
	behaviors grading.BehaviorRepository,
	eventPublisher shared.EventPublisher,
	logger *slog.Logger,
) *GradeEditHandler {
	if eventPublisher == nil {
		eventPublisher = shared.NoopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GradeEditHandler{
		assessments:    assessments,
		behaviors:      behaviors,
		eventPublisher: eventPublisher,
		logger:         logger,
	}
}

// UpdateAssessmentScores applies the non-nil scores of the command.
func (h *GradeEditHandler) UpdateAssessmentScores(ctx context.Context, cmd UpdateAssessmentScoresCommand) (*GradeEditResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("update_assessment: validation failed: %w", err)
	}

	current, err := h.assessments.GetByID(ctx, cmd.AssessmentID)
	if err != nil {
		return nil, err
	}

	next := current
	for _, change := range []struct {
		field grading.ScoreField
		value *float64
	}{
		{grading.FieldAVI, cmd.AVI},
		{grading.FieldAVII, cmd.AVII},
		{grading.FieldVF, cmd.VF},
		{grading.FieldVFE, cmd.VFE},
	} {
		if change.value == nil {
			continue
		}
		if next, err = next.WithScore(change.field, grading.Some(*change.value)); err != nil {
			return nil, err
		}
	}

	return h.saveAssessment(ctx, next, "update")
}

// RemoveAssessmentScore clears one score. Removing vf is not allowed.
func (h *GradeEditHandler) RemoveAssessmentScore(ctx context.Context, cmd RemoveAssessmentScoreCommand) (*GradeEditResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("remove_assessment_score: validation failed: %w", err)
	}
	field, err := grading.ParseScoreField(cmd.Field)
	if err != nil {
		return nil, err
	}

	current, err := h.assessments.GetByID(ctx, cmd.AssessmentID)
	if err != nil {
		return nil, err
	}
	next, err := current.WithoutScore(field)
	if err != nil {
		return nil, err
	}

	return h.saveAssessment(ctx, next, "remove:"+cmd.Field)
}

// UpdateBehaviorScores sets the given months.
func (h *GradeEditHandler) UpdateBehaviorScores(ctx context.Context, cmd UpdateBehaviorScoresCommand) (*GradeEditResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("update_behavior: validation failed: %w", err)
	}

	current, err := h.behaviors.GetByID(ctx, cmd.BehaviorID)
	if err != nil {
		return nil, err
	}

	months := make([]int, 0, len(cmd.Months))
	for m := range cmd.Months {
		months = append(months, m)
	}
	sort.Ints(months)

	next := current
	for _, m := range months {
		if next, err = next.WithMonth(shared.Month(m), grading.Some(cmd.Months[m])); err != nil {
			return nil, err
		}
	}

	return h.saveBehavior(ctx, next, "update")
}

// RemoveBehaviorScore clears one month.
func (h *GradeEditHandler) RemoveBehaviorScore(ctx context.Context, cmd RemoveBehaviorScoreCommand) (*GradeEditResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("remove_behavior_score: validation failed: %w", err)
	}

	current, err := h.behaviors.GetByID(ctx, cmd.BehaviorID)
	if err != nil {
		return nil, err
	}
	next, err := current.WithoutMonth(shared.Month(cmd.Month))
	if err != nil {
		return nil, err
	}

	return h.saveBehavior(ctx, next, fmt.Sprintf("remove:month:%d", cmd.Month))
}

func (h *GradeEditHandler) saveAssessment(ctx context.Context, a grading.Assessment, change string) (*GradeEditResult, error) {
	if err := h.assessments.Save(ctx, a); err != nil {
		return nil, fmt.Errorf("edit_grades: failed to save assessment: %w", err)
	}

	event := shared.NewGradeChangedEvent(shared.EventAssessmentChanged, a.ID, a.StudentID, a.CourseID, change)
	h.publish(event)

	return &GradeEditResult{
		Assessment:   &a,
		FollowUpJobs: []classification.FollowUpJob{classification.RecalculateCourse(a.CourseID)},
		Events:       []shared.Event{event},
	}, nil
}

func (h *GradeEditHandler) saveBehavior(ctx context.Context, b grading.Behavior, change string) (*GradeEditResult, error) {
	if err := h.behaviors.Save(ctx, b); err != nil {
		return nil, fmt.Errorf("edit_grades: failed to save behavior: %w", err)
	}

	event := shared.NewGradeChangedEvent(shared.EventBehaviorChanged, b.ID, b.StudentID, b.CourseID, change)
	h.publish(event)

	return &GradeEditResult{
		Behavior:     &b,
		FollowUpJobs: []classification.FollowUpJob{classification.RecalculateCourse(b.CourseID)},
		Events:       []shared.Event{event},
	}, nil
}

func (h *GradeEditHandler) publish(event shared.Event) {
	if err := h.eventPublisher.Publish(event); err != nil {
		h.logger.Warn("failed to publish event", "event", event.EventType(), "error", err)
	}
}
