package classification

import "context"

// Repository - хранилище классификаций.
type Repository interface {
	// ExistsForCourse проверяет, есть ли хотя бы одна классификация курса.
	ExistsForCourse(ctx context.Context, courseID string) (bool, error)

	// ListByCourse возвращает классификации курса; poleID == "" - все полюса.
	ListByCourse(ctx context.Context, courseID, poleID string) ([]*Classification, error)

	// Get возвращает классификацию студента в курсе или shared.ErrResourceNotFound.
	Get(ctx context.Context, studentID, courseID string) (*Classification, error)

	// Upsert атомарно вставляет или заменяет запись по (StudentID, CourseID).
	Upsert(ctx context.Context, c *Classification) error

	// ListClassifiedCourses возвращает ID курсов, у которых есть классификации.
	ListClassifiedCourses(ctx context.Context) ([]string, error)
}
