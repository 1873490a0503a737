package grading

import "context"

// AssessmentRepository - хранилище оценок по дисциплинам.
type AssessmentRepository interface {
	// GetByID возвращает оценку или shared.ErrAssessmentNotFound.
	GetByID(ctx context.Context, id string) (Assessment, error)

	// ListByCourse возвращает оценки курса, сгруппированные по студенту.
	ListByCourse(ctx context.Context, courseID string) (map[string][]Assessment, error)

	// ListByStudent возвращает оценки студента в курсе.
	ListByStudent(ctx context.Context, courseID, studentID string) ([]Assessment, error)

	// Save сохраняет запись целиком.
	Save(ctx context.Context, a Assessment) error
}

// BehaviorRepository - хранилище оценок поведения.
type BehaviorRepository interface {
	// GetByID возвращает запись или shared.ErrBehaviorNotFound.
	GetByID(ctx context.Context, id string) (Behavior, error)

	// ListByCourse возвращает записи поведения курса по студентам.
	ListByCourse(ctx context.Context, courseID string) (map[string][]Behavior, error)

	// ListByStudent возвращает записи поведения студента в курсе.
	ListByStudent(ctx context.Context, courseID, studentID string) ([]Behavior, error)

	// Save сохраняет запись целиком.
	Save(ctx context.Context, b Behavior) error
}
