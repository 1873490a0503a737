package queue

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/academic-records/records-hub/internal/domain/shared"
)

// Transport codes reported for failed jobs.
const (
	CodeNotFound       = "not_found"
	CodeConflict       = "conflict"
	CodeNotAllowed     = "not_allowed"
	CodeInvalidPayload = "invalid_payload"
	CodeUnknownJob     = "unknown_job"
	CodeInternal       = "internal"
)

// TransportError is a domain failure translated for the job boundary.
// It is permanent: the worker never retries it.
type TransportError struct {
	Status int
	Code   string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%d %s: %v", e.Status, e.Code, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ToTransportError maps classification failures to transport errors.
// Errors outside the taxonomy are returned unchanged.
func ToTransportError(err error) error {
	if err == nil {
		return nil
	}

	var te *TransportError
	if errors.As(err, &te) {
		return err
	}

	switch {
	case shared.IsInvalidCourseFormula(err):
		return &TransportError{Status: http.StatusConflict, Code: CodeConflict, Err: err}
	case shared.IsNotFound(err):
		return &TransportError{Status: http.StatusNotFound, Code: CodeNotFound, Err: err}
	case shared.IsNotAllowed(err):
		return &TransportError{Status: http.StatusMethodNotAllowed, Code: CodeNotAllowed, Err: err}
	case shared.IsValidation(err):
		return &TransportError{Status: http.StatusBadRequest, Code: CodeInvalidPayload, Err: err}
	}
	return err
}

// IsTransportError reports whether err carries a TransportError.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// Code returns the transport code of err, or CodeInternal.
func Code(err error) string {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Code
	}
	return CodeInternal
}
