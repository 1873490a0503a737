package classification

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/academic-records/records-hub/internal/domain/course"
	"github.com/academic-records/records-hub/internal/domain/grading"
	"github.com/academic-records/records-hub/internal/domain/shared"
)

func cls(student, pole string, avg float64, status grading.Status) *Classification {
	return &Classification{StudentID: student, PoleID: pole, Average: avg, Status: status}
}

func TestNewRanking_SortsAndSharesRanks(t *testing.T) {
	r := NewRanking([]*Classification{
		cls("s3", "p1", 6.5, grading.StatusApproved),
		cls("s1", "p1", 8.0, grading.StatusApproved),
		cls("s2", "p1", 6.5, grading.StatusApproved),
		cls("s4", "p1", 4.0, grading.StatusDisapproved),
		nil,
	})

	entries := r.Entries()
	require.Len(t, entries, 4)
	assert.Equal(t, "s1", entries[0].Classification.StudentID)
	assert.Equal(t, shared.Rank(1), entries[0].Rank)
	assert.Equal(t, "s2", entries[1].Classification.StudentID)
	assert.Equal(t, shared.Rank(2), entries[1].Rank)
	assert.Equal(t, shared.Rank(2), entries[2].Rank)
	assert.Equal(t, shared.Rank(4), entries[3].Rank)
	assert.Equal(t, 3, r.Approved())
}

func TestRanking_Page(t *testing.T) {
	var items []*Classification
	for i := 0; i < 5; i++ {
		items = append(items, cls(string(rune('a'+i)), "p", float64(10-i), grading.StatusApproved))
	}
	r := NewRanking(items)

	page := r.Page(shared.NewPagination(2, 2))
	require.Len(t, page, 2)
	assert.Equal(t, "c", page[0].Classification.StudentID)

	assert.Len(t, r.Page(shared.NewPagination(3, 2)), 1)
	assert.Empty(t, r.Page(shared.NewPagination(4, 2)))
	assert.Empty(t, r.Page(shared.NewPagination(math.MaxInt/10, 100)))
	assert.Empty(t, r.Page(shared.Pagination{Page: math.MaxInt, PageSize: shared.MaxPageSize}))
}

func TestByPole(t *testing.T) {
	poles, rankings := ByPole([]*Classification{
		cls("s1", "north", 7, grading.StatusApproved),
		cls("s2", "south", 9, grading.StatusApproved),
		cls("s3", "north", 8, grading.StatusApproved),
	})

	assert.Equal(t, []string{"north", "south"}, poles)
	north := rankings["north"].Entries()
	require.Len(t, north, 2)
	assert.Equal(t, "s3", north[0].Classification.StudentID)
	assert.Equal(t, shared.Rank(1), rankings["south"].Entries()[0].Rank)
}

func TestClassification_ReplaceKeepsIdentity(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	enrollment := course.Enrollment{StudentID: "s1", CourseID: "c1", PoleID: "p1"}

	first := New(grading.StudentAverage{GeralAverage: 5, Status: grading.StatusSecondSeason}, enrollment, 1, 0, created)
	next := New(grading.StudentAverage{GeralAverage: 7, Status: grading.StatusApproved}, enrollment, 1, 0, created.Add(time.Hour))

	replaced := first.Replace(next)

	assert.Equal(t, first.ID, replaced.ID)
	assert.Equal(t, created, replaced.CreatedAt)
	assert.Equal(t, 7.0, replaced.Average)
	assert.True(t, replaced.StatusChanged(first))
	assert.NotSame(t, next, replaced)
}

func TestJobKey(t *testing.T) {
	assert.Equal(t, ModeGenerate, GenerateJobKey.Mode())
	assert.Equal(t, ModeUpdate, UpdateJobKey.Mode())
	assert.False(t, JobKey("other").IsValid())
	assert.Equal(t, FollowUpJob{Key: UpdateJobKey, CourseID: "c1"}, RecalculateCourse("c1"))
}
