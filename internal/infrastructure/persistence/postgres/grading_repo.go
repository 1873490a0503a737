package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/academic-records/records-hub/internal/domain/grading"
	"github.com/academic-records/records-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ASSESSMENT REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// AssessmentRepository implements grading.AssessmentRepository for PostgreSQL.
type AssessmentRepository struct {
	conn *Connection
}

// NewAssessmentRepository creates a new AssessmentRepository.
func NewAssessmentRepository(conn *Connection) *AssessmentRepository {
	return &AssessmentRepository{conn: conn}
}

const assessmentColumns = `id, student_id, course_id, discipline_id, avi, avii, vf, vfe`

// GetByID returns an assessment by ID.
func (r *AssessmentRepository) GetByID(ctx context.Context, id string) (grading.Assessment, error) {
	if !shared.IsValidID(id) {
		return grading.Assessment{}, shared.ErrAssessmentNotFound
	}

	rows, err := r.conn.Query(ctx, `SELECT `+assessmentColumns+` FROM assessments WHERE id = $1`, id)
	if err != nil {
		return grading.Assessment{}, fmt.Errorf("failed to get assessment: %w", err)
	}

	a, err := pgx.CollectExactlyOneRow(rows, scanAssessment)
	if err != nil {
		if IsNoRows(err) {
			return grading.Assessment{}, shared.ErrAssessmentNotFound
		}
		return grading.Assessment{}, fmt.Errorf("failed to scan assessment: %w", err)
	}
	return a, nil
}

// ListByCourse returns the course assessments grouped by student.
func (r *AssessmentRepository) ListByCourse(ctx context.Context, courseID string) (map[string][]grading.Assessment, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT `+assessmentColumns+`
		FROM assessments
		WHERE course_id = $1
		ORDER BY student_id, discipline_id
	`, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assessments: %w", err)
	}

	list, err := pgx.CollectRows(rows, scanAssessment)
	if err != nil {
		return nil, fmt.Errorf("failed to scan assessments: %w", err)
	}

	out := make(map[string][]grading.Assessment)
	for _, a := range list {
		out[a.StudentID] = append(out[a.StudentID], a)
	}
	return out, nil
}

// ListByStudent returns a student's assessments in a course.
func (r *AssessmentRepository) ListByStudent(ctx context.Context, courseID, studentID string) ([]grading.Assessment, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT `+assessmentColumns+`
		FROM assessments
		WHERE course_id = $1 AND student_id = $2
		ORDER BY discipline_id
	`, courseID, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assessments: %w", err)
	}

	list, err := pgx.CollectRows(rows, scanAssessment)
	if err != nil {
		return nil, fmt.Errorf("failed to scan assessments: %w", err)
	}
	return list, nil
}

// Save inserts or replaces the assessment for (student, course, discipline).
func (r *AssessmentRepository) Save(ctx context.Context, a grading.Assessment) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}

	_, err := r.conn.Exec(ctx, `
		INSERT INTO assessments (id, student_id, course_id, discipline_id, avi, avii, vf, vfe, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (student_id, course_id, discipline_id) DO UPDATE SET
			avi = EXCLUDED.avi,
			avii = EXCLUDED.avii,
			vf = EXCLUDED.vf,
			vfe = EXCLUDED.vfe,
			updated_at = EXCLUDED.updated_at
	`,
		a.ID,
		a.StudentID,
		a.CourseID,
		a.DisciplineID,
		a.AVI.Ptr(),
		a.AVII.Ptr(),
		a.VF.Ptr(),
		a.VFE.Ptr(),
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save assessment: %w", err)
	}
	return nil
}

func scanAssessment(row pgx.CollectableRow) (grading.Assessment, error) {
	var (
		a                  grading.Assessment
		avi, avii, vf, vfe *float64
	)
	if err := row.Scan(&a.ID, &a.StudentID, &a.CourseID, &a.DisciplineID, &avi, &avii, &vf, &vfe); err != nil {
		return a, err
	}
	a.AVI = grading.FromPtr(avi)
	a.AVII = grading.FromPtr(avii)
	a.VF = grading.FromPtr(vf)
	a.VFE = grading.FromPtr(vfe)
	return a, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// BEHAVIOR REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// BehaviorRepository implements grading.BehaviorRepository for PostgreSQL.
type BehaviorRepository struct {
	conn *Connection
}

// NewBehaviorRepository creates a new BehaviorRepository.
func NewBehaviorRepository(conn *Connection) *BehaviorRepository {
	return &BehaviorRepository{conn: conn}
}

const behaviorColumns = `id, student_id, course_id, module, current_year, months`

// GetByID returns a behavior row by ID.
func (r *BehaviorRepository) GetByID(ctx context.Context, id string) (grading.Behavior, error) {
	if !shared.IsValidID(id) {
		return grading.Behavior{}, shared.ErrBehaviorNotFound
	}

	rows, err := r.conn.Query(ctx, `SELECT `+behaviorColumns+` FROM behaviors WHERE id = $1`, id)
	if err != nil {
		return grading.Behavior{}, fmt.Errorf("failed to get behavior: %w", err)
	}

	b, err := pgx.CollectExactlyOneRow(rows, scanBehavior)
	if err != nil {
		if IsNoRows(err) {
			return grading.Behavior{}, shared.ErrBehaviorNotFound
		}
		return grading.Behavior{}, fmt.Errorf("failed to scan behavior: %w", err)
	}
	return b, nil
}

// ListByCourse returns the course behavior rows grouped by student.
func (r *BehaviorRepository) ListByCourse(ctx context.Context, courseID string) (map[string][]grading.Behavior, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT `+behaviorColumns+`
		FROM behaviors
		WHERE course_id = $1
		ORDER BY student_id, current_year, module
	`, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list behaviors: %w", err)
	}

	list, err := pgx.CollectRows(rows, scanBehavior)
	if err != nil {
		return nil, fmt.Errorf("failed to scan behaviors: %w", err)
	}

	out := make(map[string][]grading.Behavior)
	for _, b := range list {
		out[b.StudentID] = append(out[b.StudentID], b)
	}
	return out, nil
}

// ListByStudent returns a student's behavior rows in a course.
func (r *BehaviorRepository) ListByStudent(ctx context.Context, courseID, studentID string) ([]grading.Behavior, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT `+behaviorColumns+`
		FROM behaviors
		WHERE course_id = $1 AND student_id = $2
		ORDER BY current_year, module
	`, courseID, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list behaviors: %w", err)
	}

	list, err := pgx.CollectRows(rows, scanBehavior)
	if err != nil {
		return nil, fmt.Errorf("failed to scan behaviors: %w", err)
	}
	return list, nil
}

// Save inserts or replaces a behavior row by ID.
func (r *BehaviorRepository) Save(ctx context.Context, b grading.Behavior) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}

	months := make([]*float64, len(b.Months))
	for i, g := range b.Months {
		months[i] = g.Ptr()
	}

	_, err := r.conn.Exec(ctx, `
		INSERT INTO behaviors (id, student_id, course_id, module, current_year, months, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			module = EXCLUDED.module,
			current_year = EXCLUDED.current_year,
			months = EXCLUDED.months,
			updated_at = EXCLUDED.updated_at
	`,
		b.ID,
		b.StudentID,
		b.CourseID,
		b.Module,
		b.CurrentYear,
		months,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save behavior: %w", err)
	}
	return nil
}

func scanBehavior(row pgx.CollectableRow) (grading.Behavior, error) {
	var (
		b      grading.Behavior
		months []*float64
	)
	if err := row.Scan(&b.ID, &b.StudentID, &b.CourseID, &b.Module, &b.CurrentYear, &months); err != nil {
		return b, err
	}
	for i := 0; i < len(months) && i < len(b.Months); i++ {
		b.Months[i] = grading.FromPtr(months[i])
	}
	return b, nil
}
