package memory

import (
	"context"
	"sort"

	"github.com/academic-records/records-hub/internal/domain/classification"
	"github.com/academic-records/records-hub/internal/domain/shared"
)

type classificationRepository struct {
	db *DB
}

// NewClassificationRepository creates a classification.Repository over db.
func NewClassificationRepository(db *DB) classification.Repository {
	return &classificationRepository{db: db}
}

func (r *classificationRepository) ExistsForCourse(_ context.Context, courseID string) (bool, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	for _, c := range r.db.classifications {
		if c.CourseID == courseID {
			return true, nil
		}
	}
	return false, nil
}

func (r *classificationRepository) ListByCourse(_ context.Context, courseID, poleID string) ([]*classification.Classification, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	var out []*classification.Classification
	for _, c := range r.db.classifications {
		if c.CourseID != courseID || (poleID != "" && c.PoleID != poleID) {
			continue
		}
		c := c
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudentID < out[j].StudentID })
	return out, nil
}

func (r *classificationRepository) Get(_ context.Context, studentID, courseID string) (*classification.Classification, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	c, ok := r.db.classifications[classification.Key(studentID, courseID)]
	if !ok {
		return nil, shared.WrapError("classification", "Get", shared.ErrResourceNotFound, "classification not found", nil)
	}
	return &c, nil
}

func (r *classificationRepository) Upsert(_ context.Context, c *classification.Classification) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	r.db.classifications[c.Key()] = *c
	r.db.writes++
	return nil
}

func (r *classificationRepository) ListClassifiedCourses(_ context.Context) ([]string, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	seen := make(map[string]bool)
	var out []string
	for _, c := range r.db.classifications {
		if !seen[c.CourseID] {
			seen[c.CourseID] = true
			out = append(out, c.CourseID)
		}
	}
	sort.Strings(out)
	return out, nil
}
