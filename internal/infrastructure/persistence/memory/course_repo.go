package memory

import (
	"context"
	"sort"

	"github.com/academic-records/records-hub/internal/domain/course"
	"github.com/academic-records/records-hub/internal/domain/shared"
)

type courseRepository struct {
	db *DB
}

// NewCourseRepository creates a course.Repository over db.
func NewCourseRepository(db *DB) course.Repository {
	return &courseRepository{db: db}
}

func (r *courseRepository) GetByID(_ context.Context, courseID string) (*course.Course, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	c, ok := r.db.courses[courseID]
	if !ok {
		return nil, shared.WrapError("course", "GetByID", shared.ErrCourseNotFound, "course "+courseID+" not found", nil)
	}
	return &c, nil
}

func (r *courseRepository) ListDisciplines(_ context.Context, courseID string) ([]course.CourseDiscipline, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	return append([]course.CourseDiscipline(nil), r.db.disciplines[courseID]...), nil
}

func (r *courseRepository) ListActiveEnrollments(_ context.Context, courseID string) ([]course.Enrollment, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	var out []course.Enrollment
	for _, e := range r.db.enrollments[courseID] {
		if e.Active {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudentID < out[j].StudentID })
	return out, nil
}

func (r *courseRepository) GetEnrollment(_ context.Context, courseID, studentID string) (*course.Enrollment, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	for _, e := range r.db.enrollments[courseID] {
		if e.StudentID == studentID {
			return &e, nil
		}
	}
	return nil, shared.WrapError("course", "GetEnrollment", shared.ErrStudentNotFound,
		"student "+studentID+" not enrolled in course "+courseID, nil)
}
