package query

import (
	"context"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/academic-records/records-hub/internal/domain/classification"
	"github.com/academic-records/records-hub/internal/domain/course"
	"github.com/academic-records/records-hub/internal/domain/grading"
	"github.com/academic-records/records-hub/internal/domain/shared"
	"github.com/academic-records/records-hub/internal/infrastructure/persistence/memory"
)

type fakeCache struct {
	data     map[string][]*classification.Classification
	versions map[string]int64
	sets     int
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		data:     make(map[string][]*classification.Classification),
		versions: make(map[string]int64),
	}
}

func (c *fakeCache) key(courseID string, version int64, poleID string) string {
	return fmt.Sprintf("%s/%d/%s", courseID, version, poleID)
}

func (c *fakeCache) GetCourse(_ context.Context, courseID, poleID string) ([]*classification.Classification, int64, bool, error) {
	v := c.versions[courseID]
	items, ok := c.data[c.key(courseID, v, poleID)]
	return items, v, ok, nil
}

func (c *fakeCache) SetCourse(_ context.Context, courseID, poleID string, version int64, items []*classification.Classification) error {
	c.sets++
	c.data[c.key(courseID, version, poleID)] = items
	return nil
}

func (c *fakeCache) InvalidateCourse(_ context.Context, courseID string) error {
	c.versions[courseID]++
	for k := range c.data {
		if strings.HasPrefix(k, courseID+"/") {
			delete(c.data, k)
		}
	}
	return nil
}

// recomputingRepo simulates a classification run that finishes while a
// ranking read is loading from the database.
type recomputingRepo struct {
	classification.Repository
	onList func()
}

func (r *recomputingRepo) ListByCourse(ctx context.Context, courseID, poleID string) ([]*classification.Classification, error) {
	items, err := r.Repository.ListByCourse(ctx, courseID, poleID)
	if r.onList != nil {
		r.onList()
		r.onList = nil
	}
	return items, err
}

func seed(t *testing.T) (*memory.DB, course.Repository, classification.Repository) {
	t.Helper()

	db := memory.NewDB()
	db.PutCourse(course.Course{ID: "c1", Formula: course.FormulaCFO, IsPeriod: true},
		course.CourseDiscipline{DisciplineID: "d1", Hours: 30, Expected: course.ExpectedAVIVF})
	db.PutEnrollment(course.Enrollment{StudentID: "s1", CourseID: "c1", PoleID: "north", Active: true})

	repo := memory.NewClassificationRepository(db)
	for _, c := range []*classification.Classification{
		{ID: "1", StudentID: "s1", CourseID: "c1", PoleID: "north", Average: 7.5, Status: grading.StatusApproved},
		{ID: "2", StudentID: "s2", CourseID: "c1", PoleID: "south", Average: 8.25, Status: grading.StatusApproved},
		{ID: "3", StudentID: "s3", CourseID: "c1", PoleID: "north", Average: 5.5, Status: grading.StatusSecondSeason},
		{ID: "4", StudentID: "s4", CourseID: "c1", PoleID: "north", Average: 9.0, Status: grading.StatusApproved},
	} {
		require.NoError(t, repo.Upsert(context.Background(), c))
	}
	return db, memory.NewCourseRepository(db), repo
}

func TestGetCourseClassification_SortedAndPaginated(t *testing.T) {
	_, courses, repo := seed(t)
	h := NewGetCourseClassificationHandler(courses, repo, nil)

	res, err := h.Handle(context.Background(), GetCourseClassificationQuery{CourseID: "c1", Page: 1, PageSize: 3})
	require.NoError(t, err)

	assert.Equal(t, 4, res.TotalCount)
	assert.Equal(t, 3, res.ApprovedCount)
	assert.True(t, res.HasMore)
	require.Len(t, res.Entries, 3)
	assert.Equal(t, "s4", res.Entries[0].StudentID)
	assert.Equal(t, 1, res.Entries[0].Rank)
	assert.Equal(t, "s2", res.Entries[1].StudentID)
	assert.Equal(t, "s1", res.Entries[2].StudentID)
}

func TestGetCourseClassification_PoleFilter(t *testing.T) {
	_, courses, repo := seed(t)
	h := NewGetCourseClassificationHandler(courses, repo, nil)

	res, err := h.Handle(context.Background(), GetCourseClassificationQuery{CourseID: "c1", PoleID: "north"})
	require.NoError(t, err)

	require.Len(t, res.Entries, 3)
	assert.Equal(t, []string{"s4", "s1", "s3"}, []string{res.Entries[0].StudentID, res.Entries[1].StudentID, res.Entries[2].StudentID})
	assert.Equal(t, 3, res.Entries[2].Rank)
	assert.False(t, res.HasMore)
}

func TestGetCourseClassification_UnknownCourse(t *testing.T) {
	_, courses, repo := seed(t)
	h := NewGetCourseClassificationHandler(courses, repo, nil)

	_, err := h.Handle(context.Background(), GetCourseClassificationQuery{CourseID: "missing"})
	assert.True(t, shared.IsNotFound(err))

	_, err = h.Handle(context.Background(), GetCourseClassificationQuery{})
	assert.True(t, shared.IsValidation(err))
}

func TestGetCourseClassification_UsesCache(t *testing.T) {
	_, courses, repo := seed(t)
	cache := newFakeCache()
	h := NewGetCourseClassificationHandler(courses, repo, cache)

	_, err := h.Handle(context.Background(), GetCourseClassificationQuery{CourseID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, 1, cache.sets)

	cache.data["c1/0/"] = cache.data["c1/0/"][:1]
	res, err := h.Handle(context.Background(), GetCourseClassificationQuery{CourseID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.TotalCount)
	assert.Equal(t, 1, cache.sets)

	require.NoError(t, cache.InvalidateCourse(context.Background(), "c1"))
	res, err = h.Handle(context.Background(), GetCourseClassificationQuery{CourseID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, 4, res.TotalCount)
}

func TestGetCourseClassification_StaleReadNotCached(t *testing.T) {
	_, courses, repo := seed(t)
	cache := newFakeCache()
	stale := &recomputingRepo{Repository: repo}
	stale.onList = func() {
		require.NoError(t, repo.Upsert(context.Background(), &classification.Classification{
			ID: "5", StudentID: "s5", CourseID: "c1", PoleID: "south", Average: 9.5, Status: grading.StatusApproved,
		}))
		require.NoError(t, cache.InvalidateCourse(context.Background(), "c1"))
	}
	h := NewGetCourseClassificationHandler(courses, stale, cache)

	res, err := h.Handle(context.Background(), GetCourseClassificationQuery{CourseID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, 4, res.TotalCount)

	res, err = h.Handle(context.Background(), GetCourseClassificationQuery{CourseID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, 5, res.TotalCount)
	assert.Equal(t, "s5", res.Entries[0].StudentID)
}

func TestGetCourseClassification_IncludesBehaviorBreakdown(t *testing.T) {
	_, courses, repo := seed(t)
	require.NoError(t, repo.Upsert(context.Background(), &classification.Classification{
		ID: "1", StudentID: "s1", CourseID: "c1", PoleID: "north", Average: 7.5, Status: grading.StatusApproved,
		Behaviors: []grading.BehaviorAverage{
			{Group: 1, Average: 3.5, Scores: 2, Status: grading.StatusDisapproved},
			{Group: 2, Average: 9, Scores: 1, Status: grading.StatusApproved},
		},
		Groups: []grading.GroupAverage{{Group: 1, Average: 7.2}, {Group: 2, Average: 8.1}},
	}))
	h := NewGetCourseClassificationHandler(courses, repo, nil)

	res, err := h.Handle(context.Background(), GetCourseClassificationQuery{CourseID: "c1", PoleID: "north"})
	require.NoError(t, err)

	require.Len(t, res.Entries, 3)
	s1 := res.Entries[1]
	assert.Equal(t, "s1", s1.StudentID)
	require.Len(t, s1.Behaviors, 2)
	assert.Equal(t, grading.StatusDisapproved, s1.Behaviors[0].Status)
	assert.Equal(t, grading.StatusApproved, s1.Behaviors[1].Status)
	require.Len(t, s1.Groups, 2)
	assert.Equal(t, 8.1, s1.Groups[1].Average)

	byPole, err := NewGetClassificationByPoleHandler(courses, repo, nil).Handle(context.Background(), GetClassificationByPoleQuery{CourseID: "c1"})
	require.NoError(t, err)
	assert.Len(t, byPole.Poles[0].Entries[1].Behaviors, 2)
}

func TestGetCourseClassification_PageBeyondRange(t *testing.T) {
	_, courses, repo := seed(t)
	h := NewGetCourseClassificationHandler(courses, repo, nil)

	for _, page := range []int{3, math.MaxInt / 10, math.MaxInt} {
		res, err := h.Handle(context.Background(), GetCourseClassificationQuery{CourseID: "c1", Page: page, PageSize: 100})
		require.NoError(t, err, "page %d", page)
		assert.Empty(t, res.Entries, "page %d", page)
		assert.False(t, res.HasMore, "page %d", page)
		assert.Equal(t, 4, res.TotalCount)
	}
}

func TestGetClassificationByPole(t *testing.T) {
	_, courses, repo := seed(t)
	h := NewGetClassificationByPoleHandler(courses, repo, nil)

	res, err := h.Handle(context.Background(), GetClassificationByPoleQuery{CourseID: "c1"})
	require.NoError(t, err)

	require.Len(t, res.Poles, 2)
	north := res.Poles[0]
	assert.Equal(t, "north", north.PoleID)
	assert.Equal(t, 2, north.ApprovedCount)
	assert.Equal(t, 7.333, north.AverageOfAverages)
	assert.Equal(t, 1, res.Poles[1].Entries[0].Rank)
	assert.Equal(t, 4, res.TotalCount)
}

func TestGetStudentAverage(t *testing.T) {
	db, courses, _ := seed(t)
	assessments := memory.NewAssessmentRepository(db)
	behaviors := memory.NewBehaviorRepository(db)
	require.NoError(t, assessments.Save(context.Background(), grading.Assessment{
		StudentID: "s1", CourseID: "c1", DisciplineID: "d1", AVI: grading.Some(5), VF: grading.Some(4), VFE: grading.Some(8),
	}))

	h := NewGetStudentAverageHandler(courses, assessments, behaviors, grading.NewCalculator(grading.DefaultPolicy()))

	res, err := h.Handle(context.Background(), GetStudentAverageQuery{CourseID: "c1", StudentID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, 6.8, res.GeralAverage)
	assert.True(t, res.IsRecovering)
	assert.Equal(t, string(grading.StatusApprovedSecondSeason), res.Status)
	assert.Equal(t, "north", res.PoleID)
	assert.Equal(t, "period", res.Grouping)

	_, err = h.Handle(context.Background(), GetStudentAverageQuery{CourseID: "c1", StudentID: "nobody"})
	assert.True(t, shared.IsNotFound(err))
}
