package grading

import (
	"fmt"
	"sort"

	"github.com/academic-records/records-hub/internal/domain/course"
	"github.com/academic-records/records-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// STATUS
// ══════════════════════════════════════════════════════════════════════════════

// Status - статус студента или дисциплины.
type Status string

const (
	StatusApproved             Status = "approved"
	StatusDisapproved          Status = "disapproved"
	StatusSecondSeason         Status = "second season"
	StatusApprovedSecondSeason Status = "approved second season"
)

// IsApproved возвращает true для обоих статусов "approved".
func (s Status) IsApproved() bool {
	return s == StatusApproved || s == StatusApprovedSecondSeason
}

// ══════════════════════════════════════════════════════════════════════════════
// POLICY
// ══════════════════════════════════════════════════════════════════════════════

// Split - доли дисциплин и поведения в итоговой средней.
type Split struct {
	Discipline float64
	Behavior   float64
}

// IsValid проверяет, что доли неотрицательны и в сумме дают 1.
func (s Split) IsValid() bool {
	sum := s.Discipline + s.Behavior
	return s.Discipline >= 0 && s.Behavior >= 0 && sum > 0.999 && sum < 1.001
}

// ConceptBand - нижняя граница концепта (включительно).
type ConceptBand struct {
	Min     float64
	Concept string
}

// Policy - настраиваемые правила оценивания.
type Policy struct {
	// PassingThreshold - проходной балл (включительно).
	PassingThreshold float64

	// RecoveryFloor - минимальная средняя для пересдачи ("second season").
	RecoveryFloor float64

	// RecoveryEnabled - разрешена ли пересдача.
	RecoveryEnabled bool

	// Splits - доли по формуле курса.
	Splits map[course.Formula]Split

	// Concepts - таблица концептов.
	Concepts []ConceptBand
}

// DefaultSplit - 90% дисциплины, 10% поведение.
var DefaultSplit = Split{Discipline: 0.9, Behavior: 0.1}

// DefaultConcepts - таблица концептов по умолчанию.
func DefaultConcepts() []ConceptBand {
	return []ConceptBand{
		{Min: 9, Concept: "excellent"},
		{Min: 8, Concept: "very good"},
		{Min: 7, Concept: "good"},
		{Min: 6, Concept: "regular"},
		{Min: 0, Concept: "bad"},
	}
}

// DefaultPolicy возвращает правила по умолчанию.
func DefaultPolicy() Policy {
	splits := make(map[course.Formula]Split, 4)
	for _, f := range course.AllFormulas() {
		splits[f] = DefaultSplit
	}
	return Policy{
		PassingThreshold: 6.0,
		RecoveryFloor:    5.0,
		RecoveryEnabled:  true,
		Splits:           splits,
		Concepts:         DefaultConcepts(),
	}
}

// Validate проверяет согласованность правил.
func (p Policy) Validate() error {
	if p.PassingThreshold <= 0 || p.PassingThreshold > float64(shared.MaxScore) {
		return fmt.Errorf("passing threshold %.3f out of range", p.PassingThreshold)
	}
	if p.RecoveryFloor < 0 || p.RecoveryFloor > p.PassingThreshold {
		return fmt.Errorf("recovery floor %.3f must be within [0, threshold]", p.RecoveryFloor)
	}
	for f, s := range p.Splits {
		if !s.IsValid() {
			return fmt.Errorf("split for %s must sum to 1", f)
		}
	}
	if len(p.Concepts) == 0 {
		return fmt.Errorf("concept table is empty")
	}
	return nil
}

// SplitFor возвращает доли для формулы курса.
func (p Policy) SplitFor(f course.Formula) (Split, error) {
	s, ok := p.Splits[f]
	if !ok || !f.IsValid() {
		return Split{}, shared.WrapError("course", "ResolveFormula", shared.ErrInvalidCourseFormula,
			fmt.Sprintf("formula %q has no weighting configuration", f), nil)
	}
	return s, nil
}

// Passes проверяет порог прохождения.
func (p Policy) Passes(avg float64) bool {
	return Round3(avg) >= p.PassingThreshold
}

// DisciplineStatus возвращает статус дисциплины по её средней.
func (p Policy) DisciplineStatus(avg float64) Status {
	if p.Passes(avg) {
		return StatusApproved
	}
	return StatusDisapproved
}

// StudentStatus возвращает расширенный статус студента.
// recovered - хотя бы одна дисциплина закрыта экзаменом пересдачи.
func (p Policy) StudentStatus(avg float64, recovered bool) Status {
	avg = Round3(avg)
	if p.Passes(avg) {
		if recovered {
			return StatusApprovedSecondSeason
		}
		return StatusApproved
	}
	if p.RecoveryEnabled && !recovered && avg >= p.RecoveryFloor {
		return StatusSecondSeason
	}
	return StatusDisapproved
}

// Concept возвращает концепт для средней.
func (p Policy) Concept(avg float64) string {
	bands := make([]ConceptBand, len(p.Concepts))
	copy(bands, p.Concepts)
	sort.SliceStable(bands, func(i, j int) bool { return bands[i].Min > bands[j].Min })

	avg = Round3(avg)
	for _, b := range bands {
		if avg >= b.Min {
			return b.Concept
		}
	}
	if len(bands) > 0 {
		return bands[len(bands)-1].Concept
	}
	return ""
}
