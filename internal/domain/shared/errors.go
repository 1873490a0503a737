package shared

import (
	"errors"
	"fmt"
)

// Базовые виды ошибок. Конкретные ошибки домена оборачивают один из них,
// и вызывающий код проверяет вид через errors.Is.
var (
	ErrNotFound = errors.New("resource not found")

	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrValueOutOfRange = errors.New("value out of range")

	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrNotAllowed           = errors.New("operation not allowed")

	ErrConcurrentModification = errors.New("concurrent modification detected")
	ErrServiceUnavailable     = errors.New("service unavailable")
	ErrTimeout                = errors.New("operation timeout")
)

// DomainError - ошибка домена с контекстом операции.
// Kind - вид ошибки (базовый или другая DomainError), Err - причина.
type DomainError struct {
	Domain  string
	Op      string
	Kind    error
	Message string
	Err     error
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is matches both the kind chain and the cause chain.
func (e *DomainError) Is(target error) bool {
	return (e.Kind != nil && errors.Is(e.Kind, target)) ||
		(e.Err != nil && errors.Is(e.Err, target))
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
// The kind may itself be a *DomainError, in which case errors.Is matches both.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// The three error kinds surfaced by the classification engine.
var (
	// ErrResourceNotFound: course, student or discipline does not exist.
	ErrResourceNotFound = NewDomainError("classification", "Resolve", ErrNotFound, "resource not found")

	// ErrInvalidCourseFormula: the course formula has no weighting configuration.
	ErrInvalidCourseFormula = NewDomainError("course", "ResolveFormula", ErrInvalidConfiguration, "course formula has no weighting configuration")

	// ErrOperationNotAllowed: generate requested on an already-classified course.
	ErrOperationNotAllowed = NewDomainError("classification", "Generate", ErrNotAllowed, "operation not allowed")
)

// Course domain errors
var (
	ErrCourseNotFound     = WrapError("course", "Find", ErrResourceNotFound, "course not found", nil)
	ErrDisciplineNotFound = WrapError("course", "FindDiscipline", ErrResourceNotFound, "discipline not configured for course", nil)
	ErrStudentNotFound    = WrapError("course", "FindStudent", ErrResourceNotFound, "student not enrolled in course", nil)
)

// Grading domain errors
var (
	ErrAssessmentNotFound = WrapError("grading", "FindAssessment", ErrResourceNotFound, "assessment not found", nil)
	ErrBehaviorNotFound   = WrapError("grading", "FindBehavior", ErrResourceNotFound, "behavior not found", nil)
	ErrInvalidScore       = NewDomainError("grading", "Validate", ErrValueOutOfRange, "score must be between 0 and 10")
	ErrInvalidMonth       = NewDomainError("grading", "Validate", ErrValueOutOfRange, "month must be between 1 and 12")
	ErrInvalidScoreField  = NewDomainError("grading", "Validate", ErrInvalidInput, "unknown score field")
	ErrRequiredScore      = NewDomainError("grading", "RemoveScore", ErrNotAllowed, "vf score is required and cannot be removed")
)

// Classification domain errors
var (
	ErrClassificationExists = WrapError("classification", "Generate", ErrOperationNotAllowed, "classification already generated for course", nil)
	ErrCourseBusy           = NewDomainError("classification", "Lock", ErrConcurrentModification, "course classification already in progress")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsInvalidCourseFormula checks if the error reports a course formula without weights.
func IsInvalidCourseFormula(err error) bool {
	return errors.Is(err, ErrInvalidCourseFormula)
}

// IsNotAllowed checks if the error is a "not allowed" error.
func IsNotAllowed(err error) bool {
	return errors.Is(err, ErrNotAllowed)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrValueOutOfRange)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrConcurrentModification)
}
