// Package shared contains common domain types, errors and events
// that are used across all domain packages.
package shared

import (
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types.
const (
	// Classification events
	EventCourseClassified       EventType = "classification.course_classified"
	EventStudentStatusChanged   EventType = "classification.student_status_changed"
	EventClassificationRejected EventType = "classification.rejected"

	// Grading events
	EventAssessmentChanged EventType = "grading.assessment_changed"
	EventBehaviorChanged   EventType = "grading.behavior_changed"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Classification Events
// ═══════════════════════════════════════════════════════════════════════════

// CourseClassifiedEvent is emitted after the aggregator has written every
// student's classification for a course.
type CourseClassifiedEvent struct {
	BaseEvent
	CourseID string `json:"course_id"`
	Mode     string `json:"mode"` // "generate" or "update"
	Students int    `json:"students"`
	Approved int    `json:"approved"`
}

// Payload implements Event interface.
func (e CourseClassifiedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"course_id": e.CourseID,
		"mode":      e.Mode,
		"students":  e.Students,
		"approved":  e.Approved,
	}
}

// NewCourseClassifiedEvent creates a new CourseClassifiedEvent.
func NewCourseClassifiedEvent(courseID, mode string, students, approved int) CourseClassifiedEvent {
	return CourseClassifiedEvent{
		BaseEvent: NewBaseEvent(EventCourseClassified, courseID),
		CourseID:  courseID,
		Mode:      mode,
		Students:  students,
		Approved:  approved,
	}
}

// StudentStatusChangedEvent is emitted by update runs when a student's
// status differs from the previously stored classification.
type StudentStatusChangedEvent struct {
	BaseEvent
	StudentID string  `json:"student_id"`
	CourseID  string  `json:"course_id"`
	OldStatus string  `json:"old_status"`
	NewStatus string  `json:"new_status"`
	Average   float64 `json:"average"`
}

// Payload implements Event interface.
func (e StudentStatusChangedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id": e.StudentID,
		"course_id":  e.CourseID,
		"old_status": e.OldStatus,
		"new_status": e.NewStatus,
		"average":    e.Average,
	}
}

// NewStudentStatusChangedEvent creates a new StudentStatusChangedEvent.
func NewStudentStatusChangedEvent(studentID, courseID, oldStatus, newStatus string, average float64) StudentStatusChangedEvent {
	return StudentStatusChangedEvent{
		BaseEvent: NewBaseEvent(EventStudentStatusChanged, studentID),
		StudentID: studentID,
		CourseID:  courseID,
		OldStatus: oldStatus,
		NewStatus: newStatus,
		Average:   average,
	}
}

// ClassificationRejectedEvent is emitted when a classification run fails
// with one of the domain error kinds.
type ClassificationRejectedEvent struct {
	BaseEvent
	CourseID string `json:"course_id"`
	Mode     string `json:"mode"`
	Reason   string `json:"reason"`
}

// Payload implements Event interface.
func (e ClassificationRejectedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"course_id": e.CourseID,
		"mode":      e.Mode,
		"reason":    e.Reason,
	}
}

// NewClassificationRejectedEvent creates a new ClassificationRejectedEvent.
func NewClassificationRejectedEvent(courseID, mode, reason string) ClassificationRejectedEvent {
	return ClassificationRejectedEvent{
		BaseEvent: NewBaseEvent(EventClassificationRejected, courseID),
		CourseID:  courseID,
		Mode:      mode,
		Reason:    reason,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Grading Events
// ═══════════════════════════════════════════════════════════════════════════

// GradeChangedEvent is emitted when an assessment or behavior record is edited.
type GradeChangedEvent struct {
	BaseEvent
	RecordID  string `json:"record_id"`
	StudentID string `json:"student_id"`
	CourseID  string `json:"course_id"`
	Change    string `json:"change"` // e.g. "update", "remove:vfe", "remove:month:3"
}

// Payload implements Event interface.
func (e GradeChangedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"record_id":  e.RecordID,
		"student_id": e.StudentID,
		"course_id":  e.CourseID,
		"change":     e.Change,
	}
}

// NewGradeChangedEvent creates a new GradeChangedEvent.
func NewGradeChangedEvent(eventType EventType, recordID, studentID, courseID, change string) GradeChangedEvent {
	return GradeChangedEvent{
		BaseEvent: NewBaseEvent(eventType, recordID),
		RecordID:  recordID,
		StudentID: studentID,
		CourseID:  courseID,
		Change:    change,
	}
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}

// NoopPublisher discards every event. It is the default sink when a
// component is built without an event bus.
type NoopPublisher struct{}

// Publish implements EventPublisher.
func (NoopPublisher) Publish(Event) error { return nil }

// RecordingPublisher keeps published events in memory.
type RecordingPublisher struct {
	Events []Event
}

// Publish implements EventPublisher.
func (r *RecordingPublisher) Publish(event Event) error {
	r.Events = append(r.Events, event)
	return nil
}

// OfType returns the recorded events of the given type.
func (r *RecordingPublisher) OfType(t EventType) []Event {
	var out []Event
	for _, e := range r.Events {
		if e.EventType() == t {
			out = append(out, e)
		}
	}
	return out
}
