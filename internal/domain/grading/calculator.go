package grading

import (
	"fmt"
	"sort"

	"github.com/academic-records/records-hub/internal/domain/course"
	"github.com/academic-records/records-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT AVERAGE CALCULATOR
// Итоговая средняя студента: средние дисциплин (взвешенные по часам)
// объединяются со средней поведения в пропорции формулы курса.
// ══════════════════════════════════════════════════════════════════════════════

// StudentInput - всё, что нужно для расчёта одного студента.
type StudentInput struct {
	StudentID   string
	Course      *course.Course
	Disciplines course.DisciplineIndex
	Assessments []Assessment
	Behaviors   []Behavior
}

// DisciplineResult - снимок расчёта по одной дисциплине.
type DisciplineResult struct {
	DisciplineID string          `json:"discipline_id"`
	Name         string          `json:"name,omitempty"`
	Module       int             `json:"module"`
	Hours        int             `json:"hours"`
	Expected     course.Expected `json:"expected"`
	AVI          Grade           `json:"avi"`
	AVII         Grade           `json:"avii"`
	VF           Grade           `json:"vf"`
	VFE          Grade           `json:"vfe"`
	Average      float64         `json:"average"`
	IsRecovering bool            `json:"is_recovering"`
	Status       Status          `json:"status"`
}

// GroupAverage - средняя одной группы (периода или модуля).
type GroupAverage struct {
	Group             int     `json:"group"`
	DisciplineAverage Grade   `json:"discipline_average"`
	BehaviorAverage   Grade   `json:"behavior_average"`
	Average           float64 `json:"average"`
}

// StudentAverage - результат расчёта студента.
type StudentAverage struct {
	StudentID    string
	CourseID     string
	GeralAverage float64
	Status       Status
	Concept      string
	IsRecovering bool
	Disciplines  []DisciplineResult
	Behaviors    []BehaviorAverage
	Groups       []GroupAverage
}

// Calculator вычисляет итоговые средние по правилам Policy.
type Calculator struct {
	policy Policy
}

// NewCalculator создаёт калькулятор.
func NewCalculator(policy Policy) *Calculator {
	return &Calculator{policy: policy}
}

// Policy возвращает правила калькулятора.
func (c *Calculator) Policy() Policy {
	return c.policy
}

// Compute рассчитывает среднюю студента.
// Возвращает ErrInvalidCourseFormula для формулы без весов и
// ErrDisciplineNotFound, если оценка ссылается на дисциплину вне курса.
func (c *Calculator) Compute(in StudentInput) (StudentAverage, error) {
	if in.Course == nil {
		return StudentAverage{}, shared.ErrCourseNotFound
	}
	split, err := c.policy.SplitFor(in.Course.Formula)
	if err != nil {
		return StudentAverage{}, err
	}

	results, err := c.resolveDisciplines(in)
	if err != nil {
		return StudentAverage{}, err
	}

	grouping := in.Course.Grouping()
	behaviors := AverageBehaviors(in.Behaviors, grouping)
	for i := range behaviors {
		behaviors[i].Status = c.policy.DisciplineStatus(behaviors[i].Average)
	}

	out := StudentAverage{
		StudentID:   in.StudentID,
		CourseID:    in.Course.ID,
		Disciplines: results,
		Behaviors:   behaviors,
	}

	if len(results) == 0 {
		out.GeralAverage = 0
		out.Status = StatusDisapproved
		out.Concept = c.policy.Concept(0)
		return out, nil
	}

	if grouping == course.GroupingPeriod {
		out.Groups = periodGroups(results, behaviors, split)
	} else {
		out.Groups = moduleGroups(results, behaviors, split)
	}

	var sum float64
	for _, g := range out.Groups {
		sum += g.Average
	}
	out.GeralAverage = Round3(sum / float64(len(out.Groups)))

	for _, r := range results {
		if r.IsRecovering {
			out.IsRecovering = true
			break
		}
	}
	out.Status = c.policy.StudentStatus(out.GeralAverage, out.IsRecovering)
	out.Concept = c.policy.Concept(out.GeralAverage)
	return out, nil
}

func (c *Calculator) resolveDisciplines(in StudentInput) ([]DisciplineResult, error) {
	results := make([]DisciplineResult, 0, len(in.Assessments))
	for _, a := range in.Assessments {
		d, ok := in.Disciplines.Lookup(a.DisciplineID)
		if !ok {
			return nil, shared.WrapError("grading", "ResolveDiscipline", shared.ErrDisciplineNotFound,
				fmt.Sprintf("discipline %s is not configured for course %s", a.DisciplineID, in.Course.ID), nil)
		}

		avg := ResolveDisciplineAverage(a, d.Expected, c.policy.PassingThreshold)
		results = append(results, DisciplineResult{
			DisciplineID: d.DisciplineID,
			Name:         d.Name,
			Module:       d.Module,
			Hours:        d.Hours,
			Expected:     d.Expected,
			AVI:          a.AVI,
			AVII:         a.AVII,
			VF:           a.VF,
			VFE:          a.VFE,
			Average:      avg.Average,
			IsRecovering: avg.IsRecovering,
			Status:       c.policy.DisciplineStatus(avg.Average),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Module != results[j].Module {
			return results[i].Module < results[j].Module
		}
		return results[i].DisciplineID < results[j].DisciplineID
	})
	return results, nil
}

// periodGroups: одна группа дисциплин на весь курс и по группе на каждый период поведения.
func periodGroups(results []DisciplineResult, behaviors []BehaviorAverage, split Split) []GroupAverage {
	d := weightedMean(results)
	if len(behaviors) == 0 {
		return []GroupAverage{{Group: 1, DisciplineAverage: Some(d), Average: d}}
	}

	groups := make([]GroupAverage, 0, len(behaviors))
	for _, b := range behaviors {
		groups = append(groups, GroupAverage{
			Group:             b.Group,
			DisciplineAverage: Some(d),
			BehaviorAverage:   Some(b.Average),
			Average:           combine(d, b.Average, split),
		})
	}
	return groups
}

// moduleGroups: группа на каждый модуль, встречающийся в дисциплинах или поведении.
func moduleGroups(results []DisciplineResult, behaviors []BehaviorAverage, split Split) []GroupAverage {
	byModule := make(map[int][]DisciplineResult)
	for _, r := range results {
		byModule[r.Module] = append(byModule[r.Module], r)
	}
	behaviorByModule := make(map[int]float64, len(behaviors))
	for _, b := range behaviors {
		behaviorByModule[b.Group] = b.Average
	}

	modules := make([]int, 0, len(byModule)+len(behaviorByModule))
	seen := make(map[int]bool)
	for m := range byModule {
		modules = append(modules, m)
		seen[m] = true
	}
	for m := range behaviorByModule {
		if !seen[m] {
			modules = append(modules, m)
		}
	}
	sort.Ints(modules)

	groups := make([]GroupAverage, 0, len(modules))
	for _, m := range modules {
		g := GroupAverage{Group: m}
		ds, hasD := byModule[m]
		b, hasB := behaviorByModule[m]
		switch {
		case hasD && hasB:
			d := weightedMean(ds)
			g.DisciplineAverage, g.BehaviorAverage = Some(d), Some(b)
			g.Average = combine(d, b, split)
		case hasD:
			d := weightedMean(ds)
			g.DisciplineAverage = Some(d)
			g.Average = d
		default:
			g.BehaviorAverage = Some(b)
			g.Average = b
		}
		groups = append(groups, g)
	}
	return groups
}

// weightedMean - средняя, взвешенная по часам. Без часов - арифметическая.
func weightedMean(results []DisciplineResult) float64 {
	if len(results) == 0 {
		return 0
	}
	var weighted, plain float64
	var hours int
	for _, r := range results {
		weighted += r.Average * float64(r.Hours)
		plain += r.Average
		hours += r.Hours
	}
	if hours == 0 {
		return Round3(plain / float64(len(results)))
	}
	return Round3(weighted / float64(hours))
}

func combine(disciplineAvg, behaviorAvg float64, split Split) float64 {
	return Round3(disciplineAvg*split.Discipline + behaviorAvg*split.Behavior)
}
