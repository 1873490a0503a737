package eventhandler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/academic-records/records-hub/internal/domain/shared"
)

type recordingInvalidator struct {
	courses []string
	err     error
}

func (r *recordingInvalidator) InvalidateCourse(_ context.Context, courseID string) error {
	r.courses = append(r.courses, courseID)
	return r.err
}

func TestOnCourseClassified_InvalidatesCourse(t *testing.T) {
	inv := &recordingInvalidator{}
	h := NewOnCourseClassifiedHandler(inv, nil)

	err := h.Handle(shared.NewCourseClassifiedEvent("c1", "update", 10, 7))

	assert.NoError(t, err)
	assert.Equal(t, []string{"c1"}, inv.courses)
}

func TestOnCourseClassified_IgnoresOtherEvents(t *testing.T) {
	inv := &recordingInvalidator{}
	h := NewOnCourseClassifiedHandler(inv, nil)

	err := h.Handle(shared.NewClassificationRejectedEvent("c1", "generate", "boom"))

	assert.NoError(t, err)
	assert.Empty(t, inv.courses)
}

func TestOnCourseClassified_PropagatesCacheError(t *testing.T) {
	inv := &recordingInvalidator{err: errors.New("redis down")}
	h := NewOnCourseClassifiedHandler(inv, nil)

	assert.Error(t, h.Handle(shared.NewCourseClassifiedEvent("c1", "update", 1, 1)))
}
