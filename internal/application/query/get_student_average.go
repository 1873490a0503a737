package query

import (
	"context"
	"errors"
	"fmt"

	"github.com/academic-records/records-hub/internal/domain/course"
	"github.com/academic-records/records-hub/internal/domain/grading"
	"github.com/academic-records/records-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET STUDENT AVERAGE QUERY
// Расчёт средней одного студента "на лету", без сохранения.
// Используется экраном "средняя студента в курсе" до запуска пересчёта.
// ══════════════════════════════════════════════════════════════════════════════

// GetStudentAverageQuery содержит параметры запроса.
type GetStudentAverageQuery struct {
	CourseID  string
	StudentID string
}

// Validate проверяет корректность параметров запроса.
func (q *GetStudentAverageQuery) Validate() error {
	if q.CourseID == "" || q.StudentID == "" {
		return errors.New("course_id and student_id are required")
	}
	return nil
}

// GetStudentAverageResult содержит результат расчёта.
type GetStudentAverageResult struct {
	CourseID     string                     `json:"course_id"`
	StudentID    string                     `json:"student_id"`
	PoleID       string                     `json:"pole_id"`
	GeralAverage float64                    `json:"geral_average"`
	Status       string                     `json:"status"`
	Concept      string                     `json:"concept"`
	IsRecovering bool                       `json:"is_recovering"`
	Grouping     string                     `json:"grouping"`
	Disciplines  []grading.DisciplineResult `json:"disciplines"`
	Behaviors    []grading.BehaviorAverage  `json:"behaviors"`
	Groups       []grading.GroupAverage     `json:"groups"`
}

// GetStudentAverageHandler обрабатывает запрос.
type GetStudentAverageHandler struct {
	courses     course.Repository
	assessments grading.AssessmentRepository
	behaviors   grading.BehaviorRepository
	calculator  *grading.Calculator
}

// NewGetStudentAverageHandler создаёт обработчик.
func NewGetStudentAverageHandler(
	courses course.Repository,
	assessments grading.AssessmentRepository,
	behaviors grading.BehaviorRepository,
	calculator *grading.Calculator,
) *GetStudentAverageHandler {
	return &GetStudentAverageHandler{
		courses:     courses,
		assessments: assessments,
		behaviors:   behaviors,
		calculator:  calculator,
	}
}

// Handle выполняет запрос.
func (h *GetStudentAverageHandler) Handle(ctx context.Context, query GetStudentAverageQuery) (*GetStudentAverageResult, error) {
	if err := query.Validate(); err != nil {
		return nil, shared.WrapError("query", "GetStudentAverage", shared.ErrValidation, err.Error(), err)
	}

	crs, err := h.courses.GetByID(ctx, query.CourseID)
	if err != nil {
		return nil, err
	}
	enrollment, err := h.courses.GetEnrollment(ctx, query.CourseID, query.StudentID)
	if err != nil {
		return nil, err
	}

	disciplines, err := h.courses.ListDisciplines(ctx, crs.ID)
	if err != nil {
		return nil, fmt.Errorf("get_student_average: failed to load disciplines: %w", err)
	}
	assessments, err := h.assessments.ListByStudent(ctx, crs.ID, query.StudentID)
	if err != nil {
		return nil, fmt.Errorf("get_student_average: failed to load assessments: %w", err)
	}
	behaviors, err := h.behaviors.ListByStudent(ctx, crs.ID, query.StudentID)
	if err != nil {
		return nil, fmt.Errorf("get_student_average: failed to load behaviors: %w", err)
	}

	avg, err := h.calculator.Compute(grading.StudentInput{
		StudentID:   query.StudentID,
		Course:      crs,
		Disciplines: course.NewDisciplineIndex(disciplines),
		Assessments: assessments,
		Behaviors:   behaviors,
	})
	if err != nil {
		return nil, err
	}

	return &GetStudentAverageResult{
		CourseID:     crs.ID,
		StudentID:    query.StudentID,
		PoleID:       enrollment.PoleID,
		GeralAverage: avg.GeralAverage,
		Status:       string(avg.Status),
		Concept:      avg.Concept,
		IsRecovering: avg.IsRecovering,
		Grouping:     string(crs.Grouping()),
		Disciplines:  avg.Disciplines,
		Behaviors:    avg.Behaviors,
		Groups:       avg.Groups,
	}, nil
}

// roundAverage округляет среднюю для отображения.
func roundAverage(v float64) float64 {
	return grading.Round3(v)
}
