// Package classification содержит сохраняемый результат расчёта: классификацию
// студента в курсе, рейтинг по полюсам и ключи фоновых задач пересчёта.
package classification

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/academic-records/records-hub/internal/domain/course"
	"github.com/academic-records/records-hub/internal/domain/grading"
)

// Mode - режим запуска агрегатора.
type Mode string

const (
	// ModeGenerate - первичная генерация; запрещена, если классификации уже есть.
	ModeGenerate Mode = "generate"

	// ModeUpdate - идемпотентный пересчёт с перезаписью.
	ModeUpdate Mode = "update"
)

// Classification - итог расчёта студента в курсе.
// Одна запись на пару (StudentID, CourseID); при пересчёте заменяется целиком.
type Classification struct {
	ID          string `json:"id"`
	StudentID   string `json:"student_id"`
	StudentName string `json:"student_name,omitempty"`
	CourseID    string `json:"course_id"`
	PoleID      string `json:"pole_id"`

	// Average - итоговая средняя студента (3 знака).
	Average float64 `json:"average"`

	AssessmentsCount int `json:"assessments_count"`
	BehaviorsCount   int `json:"behaviors_count"`

	Concept      string         `json:"concept"`
	Status       grading.Status `json:"status"`
	IsRecovering bool           `json:"is_recovering"`

	// Снимок расчёта.
	Assessments []grading.DisciplineResult `json:"assessments"`
	Behaviors   []grading.BehaviorAverage  `json:"behaviors"`
	Groups      []grading.GroupAverage     `json:"groups"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New строит классификацию из результата калькулятора.
func New(avg grading.StudentAverage, enrollment course.Enrollment, assessmentsCount, behaviorsCount int, now time.Time) *Classification {
	return &Classification{
		ID:               uuid.NewString(),
		StudentID:        enrollment.StudentID,
		StudentName:      enrollment.StudentName,
		CourseID:         enrollment.CourseID,
		PoleID:           enrollment.PoleID,
		Average:          avg.GeralAverage,
		AssessmentsCount: assessmentsCount,
		BehaviorsCount:   behaviorsCount,
		Concept:          avg.Concept,
		Status:           avg.Status,
		IsRecovering:     avg.IsRecovering,
		Assessments:      avg.Disciplines,
		Behaviors:        avg.Behaviors,
		Groups:           avg.Groups,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// Replace возвращает next, сохраняя идентичность текущей записи (ID и CreatedAt).
func (c *Classification) Replace(next *Classification) *Classification {
	if c == nil {
		return next
	}
	replaced := *next
	replaced.ID = c.ID
	replaced.CreatedAt = c.CreatedAt
	return &replaced
}

// StatusChanged возвращает true, если статус отличается от предыдущего.
func (c *Classification) StatusChanged(previous *Classification) bool {
	return previous != nil && previous.Status != c.Status
}

// Key - ключ уникальности записи.
func (c *Classification) Key() string {
	return Key(c.StudentID, c.CourseID)
}

// Key строит ключ (студент, курс).
func Key(studentID, courseID string) string {
	return studentID + ":" + courseID
}

// String возвращает строковое представление для логирования.
func (c *Classification) String() string {
	return fmt.Sprintf("Classification{Student: %s, Course: %s, Average: %.3f, Status: %s}",
		c.StudentID, c.CourseID, c.Average, c.Status)
}
