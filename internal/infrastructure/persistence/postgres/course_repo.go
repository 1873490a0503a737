package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/academic-records/records-hub/internal/domain/course"
	"github.com/academic-records/records-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// COURSE REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// CourseRepository implements course.Repository for PostgreSQL.
type CourseRepository struct {
	conn *Connection
}

// NewCourseRepository creates a new CourseRepository.
func NewCourseRepository(conn *Connection) *CourseRepository {
	return &CourseRepository{conn: conn}
}

// GetByID returns a course by ID.
func (r *CourseRepository) GetByID(ctx context.Context, courseID string) (*course.Course, error) {
	if !shared.IsValidID(courseID) {
		return nil, shared.ErrCourseNotFound
	}

	query := `
		SELECT id, name, formula, is_period, modules
		FROM courses
		WHERE id = $1
	`

	var (
		c       course.Course
		formula string
	)
	err := r.conn.QueryRow(ctx, query, courseID).Scan(&c.ID, &c.Name, &formula, &c.IsPeriod, &c.Modules)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrCourseNotFound
		}
		return nil, fmt.Errorf("failed to get course: %w", err)
	}

	// An unknown formula is kept as-is so the grading policy can reject it.
	c.Formula = course.Formula(formula)
	return &c, nil
}

// ListDisciplines returns the disciplines configured for a course.
func (r *CourseRepository) ListDisciplines(ctx context.Context, courseID string) ([]course.CourseDiscipline, error) {
	query := `
		SELECT cd.course_id, cd.discipline_id, d.name, cd.hours, cd.weight, cd.module, cd.expected
		FROM course_disciplines cd
		JOIN disciplines d ON d.id = cd.discipline_id
		WHERE cd.course_id = $1
		ORDER BY cd.module, cd.discipline_id
	`

	rows, err := r.conn.Query(ctx, query, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list disciplines: %w", err)
	}
	defer rows.Close()

	var disciplines []course.CourseDiscipline
	for rows.Next() {
		var (
			d        course.CourseDiscipline
			expected string
		)
		if err := rows.Scan(&d.CourseID, &d.DisciplineID, &d.Name, &d.Hours, &d.Weight, &d.Module, &expected); err != nil {
			return nil, fmt.Errorf("failed to scan discipline: %w", err)
		}
		if d.Expected, err = course.ParseExpected(expected); err != nil {
			return nil, fmt.Errorf("discipline %s: %w", d.DisciplineID, err)
		}
		disciplines = append(disciplines, d)
	}

	return disciplines, rows.Err()
}

// ListActiveEnrollments returns active enrollments ordered by student ID.
func (r *CourseRepository) ListActiveEnrollments(ctx context.Context, courseID string) ([]course.Enrollment, error) {
	query := `
		SELECT student_id, student_name, course_id, pole_id, active
		FROM enrollments
		WHERE course_id = $1 AND active
		ORDER BY student_id
	`

	rows, err := r.conn.Query(ctx, query, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list enrollments: %w", err)
	}

	enrollments, err := pgx.CollectRows(rows, scanEnrollment)
	if err != nil {
		return nil, fmt.Errorf("failed to scan enrollments: %w", err)
	}
	return enrollments, nil
}

// GetEnrollment returns a single enrollment.
func (r *CourseRepository) GetEnrollment(ctx context.Context, courseID, studentID string) (*course.Enrollment, error) {
	if !shared.IsValidID(courseID) || !shared.IsValidID(studentID) {
		return nil, shared.ErrStudentNotFound
	}

	query := `
		SELECT student_id, student_name, course_id, pole_id, active
		FROM enrollments
		WHERE course_id = $1 AND student_id = $2
	`

	rows, err := r.conn.Query(ctx, query, courseID, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get enrollment: %w", err)
	}

	e, err := pgx.CollectExactlyOneRow(rows, scanEnrollment)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrStudentNotFound
		}
		return nil, fmt.Errorf("failed to scan enrollment: %w", err)
	}
	return &e, nil
}

func scanEnrollment(row pgx.CollectableRow) (course.Enrollment, error) {
	var e course.Enrollment
	err := row.Scan(&e.StudentID, &e.StudentName, &e.CourseID, &e.PoleID, &e.Active)
	return e, err
}
