package grading

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/academic-records/records-hub/internal/domain/course"
)

func TestResolveDisciplineAverage(t *testing.T) {
	tests := []struct {
		name       string
		assessment Assessment
		expected   course.Expected
		want       DisciplineAverage
	}{
		{
			name:       "VF only",
			assessment: Assessment{VF: Some(7)},
			expected:   course.ExpectedVF,
			want:       DisciplineAverage{Average: 7},
		},
		{
			name:       "VF below threshold without vfe",
			assessment: Assessment{VF: Some(4.5)},
			expected:   course.ExpectedVF,
			want:       DisciplineAverage{Average: 4.5},
		},
		{
			name:       "VF below threshold with vfe",
			assessment: Assessment{VF: Some(4.5), VFE: Some(6.5)},
			expected:   course.ExpectedVF,
			want:       DisciplineAverage{Average: 6.5, IsRecovering: true},
		},
		{
			name:       "VF passing ignores vfe",
			assessment: Assessment{VF: Some(6), VFE: Some(9)},
			expected:   course.ExpectedVF,
			want:       DisciplineAverage{Average: 6},
		},
		{
			name:       "AVI VF with recovery",
			assessment: Assessment{AVI: Some(5), VF: Some(4), VFE: Some(8)},
			expected:   course.ExpectedAVIVF,
			want:       DisciplineAverage{Average: 6.8, IsRecovering: true},
		},
		{
			name:       "AVI VF passing",
			assessment: Assessment{AVI: Some(7), VF: Some(8)},
			expected:   course.ExpectedAVIVF,
			want:       DisciplineAverage{Average: 7.6},
		},
		{
			name:       "AVI AVII VF",
			assessment: Assessment{AVI: Some(5), AVII: Some(6), VF: Some(7)},
			expected:   course.ExpectedAVIAVIIVF,
			want:       DisciplineAverage{Average: 6.4},
		},
		{
			name:       "AVI AVII VF missing optional scores count as zero",
			assessment: Assessment{VF: Some(9), VFE: Some(10)},
			expected:   course.ExpectedAVIAVIIVF,
			want:       DisciplineAverage{Average: 6, IsRecovering: true},
		},
		{
			name:       "recovery still failing",
			assessment: Assessment{AVI: Some(2), VF: Some(3), VFE: Some(4)},
			expected:   course.ExpectedAVIVF,
			want:       DisciplineAverage{Average: 3.2, IsRecovering: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveDisciplineAverage(tt.assessment, tt.expected, 6.0)
			assert.InDelta(t, tt.want.Average, got.Average, 1e-9)
			assert.Equal(t, tt.want.IsRecovering, got.IsRecovering)
		})
	}
}

func TestResolveDisciplineAverage_Deterministic(t *testing.T) {
	a := Assessment{AVI: Some(5.55), AVII: Some(6.65), VF: Some(5.1), VFE: Some(7.77)}
	first := ResolveDisciplineAverage(a, course.ExpectedAVIAVIIVF, 6.0)
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, ResolveDisciplineAverage(a, course.ExpectedAVIAVIIVF, 6.0))
	}
}

func TestRound3(t *testing.T) {
	assert.Equal(t, 7.23, Round3(7.2*0.9+7.5*0.1))
	assert.Equal(t, 4.4, Round3(5*0.4+4*0.6))
	assert.Equal(t, 5.999, Round3(5.9994))
	assert.Equal(t, 6.0, Round3(5.9996))
}
