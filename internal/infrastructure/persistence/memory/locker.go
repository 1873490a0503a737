package memory

import (
	"context"
	"sync"

	"github.com/academic-records/records-hub/internal/domain/shared"
)

// CourseLocker serializes work per course inside one process.
// Lock waits until the course is free or ctx is done.
type CourseLocker struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

// NewCourseLocker creates a CourseLocker.
func NewCourseLocker() *CourseLocker {
	return &CourseLocker{slots: make(map[string]chan struct{})}
}

func (l *CourseLocker) slot(courseID string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch, ok := l.slots[courseID]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[courseID] = ch
	}
	return ch
}

// Lock acquires the course lock.
func (l *CourseLocker) Lock(ctx context.Context, courseID string) (func(), error) {
	ch := l.slot(courseID)
	select {
	case ch <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-ch }) }, nil
	case <-ctx.Done():
		return nil, shared.WrapError("classification", "Lock", shared.ErrCourseBusy, "course "+courseID, ctx.Err())
	}
}
