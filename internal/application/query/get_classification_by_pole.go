package query

import (
	"context"
	"errors"
	"time"

	"github.com/academic-records/records-hub/internal/domain/classification"
	"github.com/academic-records/records-hub/internal/domain/course"
	"github.com/academic-records/records-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET CLASSIFICATION BY POLE QUERY
// Рейтинг курса, разбитый по полюсам: внутри каждого полюса свои места.
// ══════════════════════════════════════════════════════════════════════════════

// GetClassificationByPoleQuery содержит параметры запроса.
type GetClassificationByPoleQuery struct {
	CourseID string
}

// Validate проверяет корректность параметров запроса.
func (q *GetClassificationByPoleQuery) Validate() error {
	if q.CourseID == "" {
		return errors.New("course_id is required")
	}
	return nil
}

// PoleClassificationDTO - рейтинг одного полюса.
type PoleClassificationDTO struct {
	PoleID        string              `json:"pole_id"`
	Entries       []ClassificationDTO `json:"entries"`
	ApprovedCount int                 `json:"approved_count"`

	// AverageOfAverages - средняя итоговых средних полюса.
	AverageOfAverages float64 `json:"average_of_averages"`
}

// GetClassificationByPoleResult содержит результат запроса.
type GetClassificationByPoleResult struct {
	CourseID    string                  `json:"course_id"`
	Poles       []PoleClassificationDTO `json:"poles"`
	TotalCount  int                     `json:"total_count"`
	GeneratedAt time.Time               `json:"generated_at"`
}

// GetClassificationByPoleHandler обрабатывает запрос.
type GetClassificationByPoleHandler struct {
	courses         course.Repository
	classifications classification.Repository
	cache           ClassificationCache
}

// NewGetClassificationByPoleHandler создаёт обработчик. cache может быть nil.
func NewGetClassificationByPoleHandler(
	courses course.Repository,
	classifications classification.Repository,
	cache ClassificationCache,
) *GetClassificationByPoleHandler {
	return &GetClassificationByPoleHandler{
		courses:         courses,
		classifications: classifications,
		cache:           cache,
	}
}

// Handle выполняет запрос.
func (h *GetClassificationByPoleHandler) Handle(ctx context.Context, query GetClassificationByPoleQuery) (*GetClassificationByPoleResult, error) {
	if err := query.Validate(); err != nil {
		return nil, shared.WrapError("query", "GetClassificationByPole", shared.ErrValidation, err.Error(), err)
	}

	items, err := loadCourseClassifications(ctx, h.courses, h.classifications, h.cache, query.CourseID, "")
	if err != nil {
		return nil, err
	}

	poles, rankings := classification.ByPole(items)
	result := &GetClassificationByPoleResult{
		CourseID:    query.CourseID,
		Poles:       make([]PoleClassificationDTO, 0, len(poles)),
		TotalCount:  len(items),
		GeneratedAt: time.Now().UTC(),
	}

	for _, pole := range poles {
		ranking := rankings[pole]
		entries := ranking.Entries()

		dto := PoleClassificationDTO{
			PoleID:        pole,
			Entries:       make([]ClassificationDTO, len(entries)),
			ApprovedCount: ranking.Approved(),
		}
		var sum float64
		for i, e := range entries {
			dto.Entries[i] = toDTO(e)
			sum += e.Classification.Average
		}
		if len(entries) > 0 {
			dto.AverageOfAverages = roundAverage(sum / float64(len(entries)))
		}
		result.Poles = append(result.Poles, dto)
	}

	return result, nil
}
