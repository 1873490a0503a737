package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/academic-records/records-hub/internal/domain/grading"
	"github.com/academic-records/records-hub/internal/domain/shared"
)

type assessmentRepository struct {
	db *DB
}

// NewAssessmentRepository creates a grading.AssessmentRepository over db.
func NewAssessmentRepository(db *DB) grading.AssessmentRepository {
	return &assessmentRepository{db: db}
}

func (r *assessmentRepository) GetByID(_ context.Context, id string) (grading.Assessment, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	a, ok := r.db.assessments[id]
	if !ok {
		return grading.Assessment{}, shared.ErrAssessmentNotFound
	}
	return a, nil
}

func (r *assessmentRepository) ListByCourse(_ context.Context, courseID string) (map[string][]grading.Assessment, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	out := make(map[string][]grading.Assessment)
	for _, a := range r.db.assessments {
		if a.CourseID == courseID {
			out[a.StudentID] = append(out[a.StudentID], a)
		}
	}
	for _, list := range out {
		sort.Slice(list, func(i, j int) bool { return list[i].DisciplineID < list[j].DisciplineID })
	}
	return out, nil
}

func (r *assessmentRepository) ListByStudent(ctx context.Context, courseID, studentID string) ([]grading.Assessment, error) {
	all, err := r.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	return all[studentID], nil
}

// Save inserts or replaces by (student, course, discipline).
func (r *assessmentRepository) Save(_ context.Context, a grading.Assessment) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for id, existing := range r.db.assessments {
		if id != a.ID && existing.StudentID == a.StudentID && existing.CourseID == a.CourseID &&
			existing.DisciplineID == a.DisciplineID {
			delete(r.db.assessments, id)
			if a.ID == "" {
				a.ID = id
			}
		}
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	r.db.assessments[a.ID] = a
	return nil
}

type behaviorRepository struct {
	db *DB
}

// NewBehaviorRepository creates a grading.BehaviorRepository over db.
func NewBehaviorRepository(db *DB) grading.BehaviorRepository {
	return &behaviorRepository{db: db}
}

func (r *behaviorRepository) GetByID(_ context.Context, id string) (grading.Behavior, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	b, ok := r.db.behaviors[id]
	if !ok {
		return grading.Behavior{}, shared.ErrBehaviorNotFound
	}
	return b, nil
}

func (r *behaviorRepository) ListByCourse(_ context.Context, courseID string) (map[string][]grading.Behavior, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	out := make(map[string][]grading.Behavior)
	for _, b := range r.db.behaviors {
		if b.CourseID == courseID {
			out[b.StudentID] = append(out[b.StudentID], b)
		}
	}
	for _, list := range out {
		sort.Slice(list, func(i, j int) bool {
			if list[i].CurrentYear != list[j].CurrentYear {
				return list[i].CurrentYear < list[j].CurrentYear
			}
			return list[i].Module < list[j].Module
		})
	}
	return out, nil
}

func (r *behaviorRepository) ListByStudent(ctx context.Context, courseID, studentID string) ([]grading.Behavior, error) {
	all, err := r.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	return all[studentID], nil
}

func (r *behaviorRepository) Save(_ context.Context, b grading.Behavior) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	r.db.behaviors[b.ID] = b
	return nil
}
