package grading

import (
	"sort"

	"github.com/academic-records/records-hub/internal/domain/course"
)

// PeriodLength - длина периода в месяцах.
const PeriodLength = 6

// BehaviorAverage - средняя поведения за период или модуль.
// Group - номер периода (с 1) или номер модуля.
// Status заполняется калькулятором: у поведения нет пересдачи.
type BehaviorAverage struct {
	Group   int     `json:"group"`
	Average float64 `json:"average"`
	Scores  int     `json:"scores"`
	Status  Status  `json:"status"`
}

// AverageBehaviors усредняет оценки поведения в зависимости от режима курса.
// Период без оценок не даёт средней; пустой вход даёт пустой результат.
func AverageBehaviors(rows []Behavior, grouping course.Grouping) []BehaviorAverage {
	if grouping == course.GroupingPeriod {
		return averagePeriods(rows)
	}
	return averageModules(rows)
}

// averagePeriods склеивает месяцы всех записей по годам и режет на окна по 6.
func averagePeriods(rows []Behavior) []BehaviorAverage {
	var months []Grade
	for _, row := range sortBehaviors(rows) {
		months = append(months, row.Months[:]...)
	}

	var out []BehaviorAverage
	for start, period := 0, 1; start < len(months); start, period = start+PeriodLength, period+1 {
		end := start + PeriodLength
		if end > len(months) {
			end = len(months)
		}
		if avg, n := mean(months[start:end]); n > 0 {
			out = append(out, BehaviorAverage{Group: period, Average: avg, Scores: n})
		}
	}
	return out
}

func averageModules(rows []Behavior) []BehaviorAverage {
	byModule := make(map[int][]Grade)
	for _, row := range sortBehaviors(rows) {
		byModule[row.Module] = append(byModule[row.Module], row.Months[:]...)
	}

	modules := make([]int, 0, len(byModule))
	for m := range byModule {
		modules = append(modules, m)
	}
	sort.Ints(modules)

	out := make([]BehaviorAverage, 0, len(modules))
	for _, m := range modules {
		if avg, n := mean(byModule[m]); n > 0 {
			out = append(out, BehaviorAverage{Group: m, Average: avg, Scores: n})
		}
	}
	return out
}

func mean(grades []Grade) (float64, int) {
	var sum float64
	var n int
	for _, g := range grades {
		if v, ok := g.Value(); ok {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0, 0
	}
	return Round3(sum / float64(n)), n
}
