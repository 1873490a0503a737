package grading

import "github.com/academic-records/records-hub/internal/domain/course"

// DisciplineAverage - результат применения формулы к оценкам дисциплины.
type DisciplineAverage struct {
	Average      float64
	IsRecovering bool
}

type componentWeights struct {
	avi, avii, vf float64
}

func weightsFor(e course.Expected) componentWeights {
	switch e {
	case course.ExpectedAVIVF:
		return componentWeights{avi: 0.4, vf: 0.6}
	case course.ExpectedAVIAVIIVF:
		return componentWeights{avi: 0.2, avii: 0.2, vf: 0.6}
	default:
		return componentWeights{vf: 1}
	}
}

func (w componentWeights) apply(avi, avii, vf float64) float64 {
	return Round3(avi*w.avi + avii*w.avii + vf*w.vf)
}

// ResolveDisciplineAverage вычисляет среднюю дисциплины по её формуле.
// Если средняя ниже порога и есть VFE, VFE подставляется вместо VF
// и результат помечается как пересдача. Отсутствующие AVI/AVII считаются нулём.
func ResolveDisciplineAverage(a Assessment, expected course.Expected, threshold float64) DisciplineAverage {
	w := weightsFor(expected)
	avi, avii := a.AVI.Or(0), a.AVII.Or(0)

	avg := w.apply(avi, avii, a.VF.Or(0))
	if avg >= threshold {
		return DisciplineAverage{Average: avg}
	}

	if vfe, ok := a.VFE.Value(); ok {
		return DisciplineAverage{Average: w.apply(avi, avii, vfe), IsRecovering: true}
	}
	return DisciplineAverage{Average: avg}
}
