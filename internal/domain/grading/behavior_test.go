package grading

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/academic-records/records-hub/internal/domain/course"
)

func behaviorRow(year, module int, months ...Grade) Behavior {
	b := Behavior{CurrentYear: year, Module: module}
	copy(b.Months[:], months)
	return b
}

func TestAverageBehaviors_Period(t *testing.T) {
	row := behaviorRow(2024, 0, Some(7), Some(8), Some(7.5))

	got := AverageBehaviors([]Behavior{row}, course.GroupingPeriod)

	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].Group)
	assert.Equal(t, 7.5, got[0].Average)
	assert.Equal(t, 3, got[0].Scores)
}

func TestAverageBehaviors_TwelveMonthsYieldTwoPeriods(t *testing.T) {
	row := behaviorRow(2024, 0,
		Some(6), Some(6), Some(6), Some(6), Some(6), Some(6),
		Some(8), Some(9), None, None, None, Some(10),
	)

	got := AverageBehaviors([]Behavior{row}, course.GroupingPeriod)

	require.Len(t, got, 2)
	assert.Equal(t, 6.0, got[0].Average)
	assert.Equal(t, 2, got[1].Group)
	assert.Equal(t, 9.0, got[1].Average)
}

func TestAverageBehaviors_PeriodSpansYears(t *testing.T) {
	second := behaviorRow(2025, 0, Some(5), Some(7))
	first := behaviorRow(2024, 0, Some(8))

	got := AverageBehaviors([]Behavior{second, first}, course.GroupingPeriod)

	require.Len(t, got, 2)
	assert.Equal(t, BehaviorAverage{Group: 1, Average: 8, Scores: 1}, got[0])
	assert.Equal(t, BehaviorAverage{Group: 3, Average: 6, Scores: 2}, got[1])
}

func TestAverageBehaviors_Module(t *testing.T) {
	rows := []Behavior{
		behaviorRow(2024, 2, Some(9), Some(7)),
		behaviorRow(2024, 1, Some(6)),
		behaviorRow(2024, 3),
	}

	got := AverageBehaviors(rows, course.GroupingModule)

	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].Group)
	assert.Equal(t, 6.0, got[0].Average)
	assert.Equal(t, 2, got[1].Group)
	assert.Equal(t, 8.0, got[1].Average)
}

func TestAverageBehaviors_Empty(t *testing.T) {
	assert.Empty(t, AverageBehaviors(nil, course.GroupingPeriod))
	assert.Empty(t, AverageBehaviors(nil, course.GroupingModule))
}
