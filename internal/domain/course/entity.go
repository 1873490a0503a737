// Package course содержит доменную модель курса: сам курс, его дисциплины
// (с весом в часах и формулой оценки) и зачисления студентов.
// Эти сущности только читаются движком классификации.
package course

import (
	"fmt"
	"strings"
)

// ══════════════════════════════════════════════════════════════════════════════
// FORMULA
// ══════════════════════════════════════════════════════════════════════════════

// Formula - формула курса. Определяет конфигурацию весов
// (дисциплины / поведение), но не алгоритм усреднения.
type Formula string

const (
	FormulaCAS Formula = "CAS"
	FormulaCGS Formula = "CGS"
	FormulaCFO Formula = "CFO"
	FormulaCHO Formula = "CHO"
)

// AllFormulas возвращает все известные формулы.
func AllFormulas() []Formula {
	return []Formula{FormulaCAS, FormulaCGS, FormulaCFO, FormulaCHO}
}

// IsValid проверяет, что формула известна.
func (f Formula) IsValid() bool {
	switch f {
	case FormulaCAS, FormulaCGS, FormulaCFO, FormulaCHO:
		return true
	}
	return false
}

// ParseFormula разбирает строку формулы без учёта регистра.
func ParseFormula(s string) (Formula, error) {
	f := Formula(strings.ToUpper(strings.TrimSpace(s)))
	if !f.IsValid() {
		return "", fmt.Errorf("unknown course formula %q", s)
	}
	return f, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// EXPECTED (формула оценки дисциплины)
// ══════════════════════════════════════════════════════════════════════════════

// Expected - закрытый набор формул оценки дисциплины.
type Expected string

const (
	// ExpectedVF - только итоговый экзамен.
	ExpectedVF Expected = "VF"

	// ExpectedAVIVF - первая оценка + итоговый экзамен.
	ExpectedAVIVF Expected = "AVI VF"

	// ExpectedAVIAVIIVF - две оценки + итоговый экзамен.
	ExpectedAVIAVIIVF Expected = "AVI AVII VF"
)

// IsValid проверяет, что формула оценки известна.
func (e Expected) IsValid() bool {
	switch e {
	case ExpectedVF, ExpectedAVIVF, ExpectedAVIAVIIVF:
		return true
	}
	return false
}

// ParseExpected разбирает строку формулы оценки, нормализуя пробелы и регистр.
func ParseExpected(s string) (Expected, error) {
	e := Expected(strings.Join(strings.Fields(strings.ToUpper(s)), " "))
	if !e.IsValid() {
		return "", fmt.Errorf("unknown discipline formula %q", s)
	}
	return e, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ENTITIES
// ══════════════════════════════════════════════════════════════════════════════

// Course - учебный курс.
type Course struct {
	ID      string
	Name    string
	Formula Formula

	// IsPeriod - курс делится на периоды по 6 месяцев.
	IsPeriod bool

	// Modules - курс делится на модули (взаимоисключающе с IsPeriod).
	Modules bool
}

// Grouping возвращает режим группировки курса.
func (c *Course) Grouping() Grouping {
	if c.IsPeriod {
		return GroupingPeriod
	}
	return GroupingModule
}

// Grouping - режим группировки средних: по периодам или по модулям.
type Grouping string

const (
	GroupingPeriod Grouping = "period"
	GroupingModule Grouping = "module"
)

// CourseDiscipline - дисциплина в составе курса.
type CourseDiscipline struct {
	CourseID     string
	DisciplineID string
	Name         string

	// Hours - учебные часы, используются как вес дисциплины.
	Hours int

	// Weight - вес для отображения; в расчёте средней не участвует.
	Weight float64

	// Module - номер модуля (0 для курсов с периодами).
	Module int

	Expected Expected
}

// Enrollment - зачисление студента на курс.
type Enrollment struct {
	StudentID   string
	StudentName string
	CourseID    string
	PoleID      string
	Active      bool
}

// DisciplineIndex - индекс дисциплин курса по ID.
type DisciplineIndex map[string]CourseDiscipline

// NewDisciplineIndex строит индекс дисциплин.
func NewDisciplineIndex(disciplines []CourseDiscipline) DisciplineIndex {
	idx := make(DisciplineIndex, len(disciplines))
	for _, d := range disciplines {
		idx[d.DisciplineID] = d
	}
	return idx
}

// Lookup возвращает дисциплину по ID.
func (idx DisciplineIndex) Lookup(disciplineID string) (CourseDiscipline, bool) {
	d, ok := idx[disciplineID]
	return d, ok
}
