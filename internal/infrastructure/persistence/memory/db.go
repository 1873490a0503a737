// Package memory provides in-process implementations of the repositories.
// It backs tests and the APP_STORAGE=memory development mode.
package memory

import (
	"sync"

	"github.com/academic-records/records-hub/internal/domain/classification"
	"github.com/academic-records/records-hub/internal/domain/course"
	"github.com/academic-records/records-hub/internal/domain/grading"
)

// DB holds every table behind a single lock.
type DB struct {
	mu sync.RWMutex

	courses         map[string]course.Course
	disciplines     map[string][]course.CourseDiscipline
	enrollments     map[string][]course.Enrollment
	assessments     map[string]grading.Assessment
	behaviors       map[string]grading.Behavior
	classifications map[string]classification.Classification

	writes int
}

// NewDB creates an empty database.
func NewDB() *DB {
	return &DB{
		courses:         make(map[string]course.Course),
		disciplines:     make(map[string][]course.CourseDiscipline),
		enrollments:     make(map[string][]course.Enrollment),
		assessments:     make(map[string]grading.Assessment),
		behaviors:       make(map[string]grading.Behavior),
		classifications: make(map[string]classification.Classification),
	}
}

// ClassificationWrites returns the number of classification upserts performed.
func (db *DB) ClassificationWrites() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.writes
}

// PutCourse seeds a course with its disciplines.
func (db *DB) PutCourse(c course.Course, disciplines ...course.CourseDiscipline) {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.courses[c.ID] = c
	for i := range disciplines {
		disciplines[i].CourseID = c.ID
	}
	db.disciplines[c.ID] = append([]course.CourseDiscipline(nil), disciplines...)
}

// PutEnrollment seeds an enrollment.
func (db *DB) PutEnrollment(e course.Enrollment) {
	db.mu.Lock()
	defer db.mu.Unlock()

	list := db.enrollments[e.CourseID]
	for i := range list {
		if list[i].StudentID == e.StudentID {
			list[i] = e
			return
		}
	}
	db.enrollments[e.CourseID] = append(list, e)
}
