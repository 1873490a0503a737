package shared

import (
	"math"

	"github.com/google/uuid"
)

// ═══════════════════════════════════════════════════════════════════════════
// ID Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// IsValidID reports whether id is a UUID. Postgres keys are UUIDs, so any
// other string cannot address a row.
func IsValidID(id string) bool {
	return uuid.Validate(id) == nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Score Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Score is a grade on the 0..10 scale.
type Score float64

const (
	MinScore Score = 0
	MaxScore Score = 10
)

// IsValid checks if the score is within the grading scale.
func (s Score) IsValid() bool {
	f := float64(s)
	return !math.IsNaN(f) && s >= MinScore && s <= MaxScore
}

// Float returns the underlying value.
func (s Score) Float() float64 {
	return float64(s)
}

// NewScore creates a new Score with validation.
func NewScore(v float64) (Score, error) {
	s := Score(v)
	if !s.IsValid() {
		return 0, ErrInvalidScore
	}
	return s, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Month Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Month is a calendar month, 1 (January) through 12 (December).
type Month int

// IsValid checks if the month is within 1..12.
func (m Month) IsValid() bool {
	return m >= 1 && m <= 12
}

// Index returns the zero-based position of the month.
func (m Month) Index() int {
	return int(m) - 1
}

// ═══════════════════════════════════════════════════════════════════════════
// Rank Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Rank is a 1-based position in a classification listing.
type Rank int

// Int returns the underlying int value.
func (r Rank) Int() int {
	return int(r)
}

// ═══════════════════════════════════════════════════════════════════════════
// Pagination Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Pagination represents pagination parameters.
type Pagination struct {
	Page     int
	PageSize int
}

const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

// Offset returns the offset for database queries. Pages past the int range
// saturate at math.MaxInt.
func (p Pagination) Offset() int {
	if p.Page <= 0 {
		return 0
	}
	limit := p.Limit()
	if p.Page-1 > math.MaxInt/limit {
		return math.MaxInt
	}
	return (p.Page - 1) * limit
}

// Limit returns the limit for database queries.
func (p Pagination) Limit() int {
	if p.PageSize <= 0 {
		return DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		return MaxPageSize
	}
	return p.PageSize
}

// NewPagination creates a new Pagination with defaults.
func NewPagination(page, pageSize int) Pagination {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return Pagination{Page: page, PageSize: pageSize}
}
