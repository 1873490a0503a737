package grading

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/academic-records/records-hub/internal/domain/course"
	"github.com/academic-records/records-hub/internal/domain/shared"
)

func TestPolicy_ThresholdBoundary(t *testing.T) {
	p := DefaultPolicy()

	assert.Equal(t, StatusApproved, p.DisciplineStatus(6.000))
	assert.Equal(t, StatusDisapproved, p.DisciplineStatus(5.999))
	assert.Equal(t, StatusApproved, p.StudentStatus(6.000, false))
	assert.NotEqual(t, StatusApproved, p.StudentStatus(5.999, false))
}

func TestPolicy_StudentStatus(t *testing.T) {
	p := DefaultPolicy()

	tests := []struct {
		name      string
		avg       float64
		recovered bool
		want      Status
	}{
		{"approved", 7, false, StatusApproved},
		{"approved after recovery", 6.5, true, StatusApprovedSecondSeason},
		{"second season", 5.5, false, StatusSecondSeason},
		{"at recovery floor", 5.0, false, StatusSecondSeason},
		{"below recovery floor", 4.999, false, StatusDisapproved},
		{"failed recovery", 5.5, true, StatusDisapproved},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.StudentStatus(tt.avg, tt.recovered))
		})
	}
}

func TestPolicy_RecoveryDisabled(t *testing.T) {
	p := DefaultPolicy()
	p.RecoveryEnabled = false

	assert.Equal(t, StatusDisapproved, p.StudentStatus(5.5, false))
}

func TestPolicy_Concept(t *testing.T) {
	p := DefaultPolicy()

	assert.Equal(t, "excellent", p.Concept(9.5))
	assert.Equal(t, "very good", p.Concept(8))
	assert.Equal(t, "good", p.Concept(7.999))
	assert.Equal(t, "regular", p.Concept(6))
	assert.Equal(t, "bad", p.Concept(0))
}

func TestPolicy_SplitFor(t *testing.T) {
	p := DefaultPolicy()

	s, err := p.SplitFor(course.FormulaCGS)
	require.NoError(t, err)
	assert.Equal(t, DefaultSplit, s)

	_, err = p.SplitFor(course.Formula("XYZ"))
	assert.ErrorIs(t, err, shared.ErrInvalidCourseFormula)
}

func TestPolicy_Validate(t *testing.T) {
	require.NoError(t, DefaultPolicy().Validate())

	p := DefaultPolicy()
	p.Splits[course.FormulaCAS] = Split{Discipline: 0.8, Behavior: 0.1}
	assert.Error(t, p.Validate())

	p = DefaultPolicy()
	p.RecoveryFloor = 7
	assert.Error(t, p.Validate())
}
