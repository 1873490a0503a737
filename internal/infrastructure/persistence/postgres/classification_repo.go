package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/academic-records/records-hub/internal/domain/classification"
	"github.com/academic-records/records-hub/internal/domain/grading"
	"github.com/academic-records/records-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CLASSIFICATION REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ClassificationRepository implements classification.Repository for PostgreSQL.
type ClassificationRepository struct {
	conn *Connection
}

// NewClassificationRepository creates a new ClassificationRepository.
func NewClassificationRepository(conn *Connection) *ClassificationRepository {
	return &ClassificationRepository{conn: conn}
}

const classificationColumns = `
	id, student_id, student_name, course_id, pole_id, average,
	assessments_count, behaviors_count, concept, status, is_recovering,
	assessments, behaviors, groups, created_at, updated_at
`

// ExistsForCourse reports whether the course has at least one classification.
func (r *ClassificationRepository) ExistsForCourse(ctx context.Context, courseID string) (bool, error) {
	var exists bool
	err := r.conn.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM classifications WHERE course_id = $1)`, courseID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check classifications: %w", err)
	}
	return exists, nil
}

// ListByCourse returns course classifications, optionally filtered by pole.
func (r *ClassificationRepository) ListByCourse(ctx context.Context, courseID, poleID string) ([]*classification.Classification, error) {
	query := `SELECT ` + classificationColumns + ` FROM classifications WHERE course_id = $1`
	args := []interface{}{courseID}
	if poleID != "" {
		query += ` AND pole_id = $2`
		args = append(args, poleID)
	}
	query += ` ORDER BY average DESC, student_id`

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list classifications: %w", err)
	}

	list, err := pgx.CollectRows(rows, scanClassification)
	if err != nil {
		return nil, fmt.Errorf("failed to scan classifications: %w", err)
	}
	return list, nil
}

// Get returns the classification of a student in a course.
func (r *ClassificationRepository) Get(ctx context.Context, studentID, courseID string) (*classification.Classification, error) {
	rows, err := r.conn.Query(ctx,
		`SELECT `+classificationColumns+` FROM classifications WHERE student_id = $1 AND course_id = $2`,
		studentID, courseID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get classification: %w", err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanClassification)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrResourceNotFound
		}
		return nil, fmt.Errorf("failed to scan classification: %w", err)
	}
	return c, nil
}

// Upsert inserts or replaces the classification for (student, course).
// The stored ID and created_at survive a replace.
func (r *ClassificationRepository) Upsert(ctx context.Context, c *classification.Classification) error {
	assessments, err := json.Marshal(nonNil(c.Assessments))
	if err != nil {
		return fmt.Errorf("failed to marshal assessments: %w", err)
	}
	behaviors, err := json.Marshal(nonNil(c.Behaviors))
	if err != nil {
		return fmt.Errorf("failed to marshal behaviors: %w", err)
	}
	groups, err := json.Marshal(nonNil(c.Groups))
	if err != nil {
		return fmt.Errorf("failed to marshal groups: %w", err)
	}

	updatedAt := c.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	createdAt := c.CreatedAt
	if createdAt.IsZero() {
		createdAt = updatedAt
	}

	_, err = r.conn.Exec(ctx, `
		INSERT INTO classifications (
			id, student_id, student_name, course_id, pole_id, average,
			assessments_count, behaviors_count, concept, status, is_recovering,
			assessments, behaviors, groups, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (student_id, course_id) DO UPDATE SET
			student_name = EXCLUDED.student_name,
			pole_id = EXCLUDED.pole_id,
			average = EXCLUDED.average,
			assessments_count = EXCLUDED.assessments_count,
			behaviors_count = EXCLUDED.behaviors_count,
			concept = EXCLUDED.concept,
			status = EXCLUDED.status,
			is_recovering = EXCLUDED.is_recovering,
			assessments = EXCLUDED.assessments,
			behaviors = EXCLUDED.behaviors,
			groups = EXCLUDED.groups,
			updated_at = EXCLUDED.updated_at
	`,
		c.ID,
		c.StudentID,
		c.StudentName,
		c.CourseID,
		c.PoleID,
		c.Average,
		c.AssessmentsCount,
		c.BehaviorsCount,
		c.Concept,
		string(c.Status),
		c.IsRecovering,
		assessments,
		behaviors,
		groups,
		createdAt,
		updatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert classification: %w", err)
	}
	return nil
}

// ListClassifiedCourses returns the IDs of courses that have classifications.
func (r *ClassificationRepository) ListClassifiedCourses(ctx context.Context) ([]string, error) {
	rows, err := r.conn.Query(ctx, `SELECT DISTINCT course_id FROM classifications ORDER BY course_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list classified courses: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan course ids: %w", err)
	}
	return ids, nil
}

func scanClassification(row pgx.CollectableRow) (*classification.Classification, error) {
	var (
		c                              classification.Classification
		status                         string
		assessments, behaviors, groups []byte
	)
	err := row.Scan(
		&c.ID, &c.StudentID, &c.StudentName, &c.CourseID, &c.PoleID, &c.Average,
		&c.AssessmentsCount, &c.BehaviorsCount, &c.Concept, &status, &c.IsRecovering,
		&assessments, &behaviors, &groups, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.Status = grading.Status(status)

	if err := json.Unmarshal(assessments, &c.Assessments); err != nil {
		return nil, fmt.Errorf("failed to unmarshal assessments: %w", err)
	}
	if err := json.Unmarshal(behaviors, &c.Behaviors); err != nil {
		return nil, fmt.Errorf("failed to unmarshal behaviors: %w", err)
	}
	if err := json.Unmarshal(groups, &c.Groups); err != nil {
		return nil, fmt.Errorf("failed to unmarshal groups: %w", err)
	}
	return &c, nil
}

// nonNil keeps empty snapshots as JSON arrays instead of null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
