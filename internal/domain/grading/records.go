package grading

import (
	"sort"

	"github.com/academic-records/records-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ASSESSMENT
// ══════════════════════════════════════════════════════════════════════════════

// ScoreField - поле оценки в Assessment.
type ScoreField string

const (
	FieldAVI  ScoreField = "avi"
	FieldAVII ScoreField = "avii"
	FieldVF   ScoreField = "vf"
	FieldVFE  ScoreField = "vfe"
)

// ParseScoreField разбирает имя поля оценки.
func ParseScoreField(s string) (ScoreField, error) {
	switch f := ScoreField(s); f {
	case FieldAVI, FieldAVII, FieldVF, FieldVFE:
		return f, nil
	}
	return "", shared.ErrInvalidScoreField
}

// Assessment - оценки студента по одной дисциплине курса.
// Значение неизменяемо: изменения создают новую копию.
// Уникальность: (StudentID, CourseID, DisciplineID).
type Assessment struct {
	ID           string
	StudentID    string
	CourseID     string
	DisciplineID string

	AVI  Grade
	AVII Grade
	VF   Grade // обязательная итоговая оценка
	VFE  Grade // экзамен пересдачи
}

// Score возвращает значение поля.
func (a Assessment) Score(field ScoreField) Grade {
	switch field {
	case FieldAVI:
		return a.AVI
	case FieldAVII:
		return a.AVII
	case FieldVF:
		return a.VF
	case FieldVFE:
		return a.VFE
	}
	return None
}

// WithScore возвращает копию с новым значением поля.
func (a Assessment) WithScore(field ScoreField, g Grade) (Assessment, error) {
	if v, ok := g.Value(); ok {
		if _, err := shared.NewScore(v); err != nil {
			return a, err
		}
	}
	switch field {
	case FieldAVI:
		a.AVI = g
	case FieldAVII:
		a.AVII = g
	case FieldVF:
		if !g.IsSet() {
			return a, shared.ErrRequiredScore
		}
		a.VF = g
	case FieldVFE:
		a.VFE = g
	default:
		return a, shared.ErrInvalidScoreField
	}
	return a, nil
}

// WithoutScore возвращает копию без указанной оценки. VF удалить нельзя.
func (a Assessment) WithoutScore(field ScoreField) (Assessment, error) {
	return a.WithScore(field, None)
}

// ══════════════════════════════════════════════════════════════════════════════
// BEHAVIOR
// ══════════════════════════════════════════════════════════════════════════════

// Behavior - помесячные оценки поведения студента за год.
type Behavior struct {
	ID          string
	StudentID   string
	CourseID    string
	Module      int
	CurrentYear int

	// Months - оценки с января (0) по декабрь (11).
	Months [12]Grade
}

// Month возвращает оценку за месяц.
func (b Behavior) Month(m shared.Month) Grade {
	if !m.IsValid() {
		return None
	}
	return b.Months[m.Index()]
}

// WithMonth возвращает копию с новой оценкой за месяц.
func (b Behavior) WithMonth(m shared.Month, g Grade) (Behavior, error) {
	if !m.IsValid() {
		return b, shared.ErrInvalidMonth
	}
	if v, ok := g.Value(); ok {
		if _, err := shared.NewScore(v); err != nil {
			return b, err
		}
	}
	b.Months[m.Index()] = g
	return b, nil
}

// WithoutMonth возвращает копию без оценки за месяц.
func (b Behavior) WithoutMonth(m shared.Month) (Behavior, error) {
	return b.WithMonth(m, None)
}

// Present возвращает выставленные оценки в календарном порядке.
func (b Behavior) Present() []float64 {
	out := make([]float64, 0, len(b.Months))
	for _, g := range b.Months {
		if v, ok := g.Value(); ok {
			out = append(out, v)
		}
	}
	return out
}

// sortBehaviors упорядочивает записи по году и модулю.
func sortBehaviors(rows []Behavior) []Behavior {
	sorted := make([]Behavior, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].CurrentYear != sorted[j].CurrentYear {
			return sorted[i].CurrentYear < sorted[j].CurrentYear
		}
		return sorted[i].Module < sorted[j].Module
	})
	return sorted
}
