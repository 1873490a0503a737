package course

import "context"

// Repository - доступ к курсам, их дисциплинам и зачислениям.
// Реализации возвращают shared.ErrCourseNotFound, если курс не найден.
type Repository interface {
	// GetByID возвращает курс по ID.
	GetByID(ctx context.Context, courseID string) (*Course, error)

	// ListDisciplines возвращает дисциплины курса.
	ListDisciplines(ctx context.Context, courseID string) ([]CourseDiscipline, error)

	// ListActiveEnrollments возвращает активные зачисления, отсортированные по StudentID.
	ListActiveEnrollments(ctx context.Context, courseID string) ([]Enrollment, error)

	// GetEnrollment возвращает зачисление студента на курс.
	GetEnrollment(ctx context.Context, courseID, studentID string) (*Enrollment, error)
}
