// Package query contains read operations following CQRS pattern.
// Queries never modify state - they only read and return data.
// Each query is a self-contained use case with its own request/response types.
package query

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/academic-records/records-hub/internal/domain/classification"
	"github.com/academic-records/records-hub/internal/domain/course"
	"github.com/academic-records/records-hub/internal/domain/grading"
	"github.com/academic-records/records-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET COURSE CLASSIFICATION QUERY
// Рейтинг курса по итоговой средней (по убыванию), опционально по одному полюсу.
// Поддерживает пагинацию; места присваиваются до пагинации.
// ══════════════════════════════════════════════════════════════════════════════

// GetCourseClassificationQuery содержит параметры запроса.
type GetCourseClassificationQuery struct {
	// CourseID - курс (обязателен).
	CourseID string

	// PoleID - фильтр по полюсу (пустая строка = все полюса).
	PoleID string

	// Page - номер страницы (с 1).
	Page int

	// PageSize - размер страницы.
	PageSize int
}

// Validate проверяет корректность параметров запроса.
func (q *GetCourseClassificationQuery) Validate() error {
	if q.CourseID == "" {
		return errors.New("course_id is required")
	}
	if q.Page < 0 || q.PageSize < 0 {
		return errors.New("page and page_size cannot be negative")
	}
	return nil
}

// ClassificationDTO - запись рейтинга.
type ClassificationDTO struct {
	// Rank - место в рейтинге (с 1, одинаковая средняя - одинаковое место).
	Rank int `json:"rank"`

	StudentID   string `json:"student_id"`
	StudentName string `json:"student_name,omitempty"`
	PoleID      string `json:"pole_id"`

	// Average - итоговая средняя (3 знака).
	Average float64 `json:"average"`

	Concept      string `json:"concept"`
	Status       string `json:"status"`
	IsRecovering bool   `json:"is_recovering"`

	AssessmentsCount int `json:"assessments_count"`
	BehaviorsCount   int `json:"behaviors_count"`

	// Assessments - снимок по дисциплинам.
	Assessments []grading.DisciplineResult `json:"assessments"`

	// Behaviors - средние поведения по периодам или модулям, со статусом.
	Behaviors []grading.BehaviorAverage `json:"behaviors"`

	// Groups - итоговые средние по группам.
	Groups []grading.GroupAverage `json:"groups"`

	UpdatedAt time.Time `json:"updated_at"`
}

// GetCourseClassificationResult содержит результат запроса.
type GetCourseClassificationResult struct {
	CourseID string              `json:"course_id"`
	PoleID   string              `json:"pole_id,omitempty"`
	Entries  []ClassificationDTO `json:"entries"`

	// TotalCount - общее количество студентов (до пагинации).
	TotalCount int `json:"total_count"`

	// ApprovedCount - количество одобренных студентов.
	ApprovedCount int `json:"approved_count"`

	Page     int  `json:"page"`
	PageSize int  `json:"page_size"`
	HasMore  bool `json:"has_more"`

	GeneratedAt time.Time `json:"generated_at"`
}

// ClassificationCache кеширует списки классификаций курса.
//
// Кеш курса версионирован: GetCourse возвращает текущую версию даже при промахе,
// а SetCourse пишет под переданной версией. InvalidateCourse поднимает версию,
// поэтому список, прочитанный из БД до пересчёта, уже не попадёт в выдачу.
type ClassificationCache interface {
	// GetCourse возвращает закешированный список и версию; ok == false при промахе.
	GetCourse(ctx context.Context, courseID, poleID string) (items []*classification.Classification, version int64, ok bool, err error)

	// SetCourse сохраняет список под версией, полученной из GetCourse.
	SetCourse(ctx context.Context, courseID, poleID string, version int64, items []*classification.Classification) error

	// InvalidateCourse поднимает версию и удаляет все списки курса.
	InvalidateCourse(ctx context.Context, courseID string) error
}

// GetCourseClassificationHandler обрабатывает запрос рейтинга курса.
type GetCourseClassificationHandler struct {
	courses         course.Repository
	classifications classification.Repository
	cache           ClassificationCache
}

// NewGetCourseClassificationHandler создаёт обработчик. cache может быть nil.
func NewGetCourseClassificationHandler(
	courses course.Repository,
	classifications classification.Repository,
	cache ClassificationCache,
) *GetCourseClassificationHandler {
	return &GetCourseClassificationHandler{
		courses:         courses,
		classifications: classifications,
		cache:           cache,
	}
}

// Handle выполняет запрос.
func (h *GetCourseClassificationHandler) Handle(ctx context.Context, query GetCourseClassificationQuery) (*GetCourseClassificationResult, error) {
	if err := query.Validate(); err != nil {
		return nil, shared.WrapError("query", "GetCourseClassification", shared.ErrValidation, err.Error(), err)
	}

	items, err := loadCourseClassifications(ctx, h.courses, h.classifications, h.cache, query.CourseID, query.PoleID)
	if err != nil {
		return nil, err
	}

	ranking := classification.NewRanking(items)
	pagination := shared.NewPagination(query.Page, query.PageSize)
	page := ranking.Page(pagination)

	entries := make([]ClassificationDTO, len(page))
	for i, e := range page {
		entries[i] = toDTO(e)
	}

	return &GetCourseClassificationResult{
		CourseID:      query.CourseID,
		PoleID:        query.PoleID,
		Entries:       entries,
		TotalCount:    ranking.Len(),
		ApprovedCount: ranking.Approved(),
		Page:          pagination.Page,
		PageSize:      pagination.Limit(),
		HasMore:       pagination.Offset()+len(page) < ranking.Len(),
		GeneratedAt:   time.Now().UTC(),
	}, nil
}

// loadCourseClassifications проверяет курс и читает классификации (сначала из кеша).
func loadCourseClassifications(
	ctx context.Context,
	courses course.Repository,
	classifications classification.Repository,
	cache ClassificationCache,
	courseID, poleID string,
) ([]*classification.Classification, error) {
	var version int64
	cached := false
	if cache != nil {
		items, v, ok, err := cache.GetCourse(ctx, courseID, poleID)
		switch {
		case err != nil:
			slog.DebugContext(ctx, "ranking cache read failed", "course_id", courseID, "error", err)
		case ok:
			return items, nil
		default:
			version, cached = v, true
		}
	}

	if _, err := courses.GetByID(ctx, courseID); err != nil {
		return nil, err
	}

	items, err := classifications.ListByCourse(ctx, courseID, poleID)
	if err != nil {
		return nil, shared.WrapError("query", "ListClassifications", shared.ErrServiceUnavailable,
			"failed to load classifications", err)
	}

	if cached && len(items) > 0 {
		// Ошибка кеша не критична.
		if err := cache.SetCourse(ctx, courseID, poleID, version, items); err != nil {
			slog.DebugContext(ctx, "ranking cache write failed", "course_id", courseID, "error", err)
		}
	}
	return items, nil
}

// toDTO конвертирует запись рейтинга в DTO.
func toDTO(e classification.Entry) ClassificationDTO {
	c := e.Classification
	return ClassificationDTO{
		Rank:             e.Rank.Int(),
		StudentID:        c.StudentID,
		StudentName:      c.StudentName,
		PoleID:           c.PoleID,
		Average:          c.Average,
		Concept:          c.Concept,
		Status:           string(c.Status),
		IsRecovering:     c.IsRecovering,
		AssessmentsCount: c.AssessmentsCount,
		BehaviorsCount:   c.BehaviorsCount,
		Assessments:      c.Assessments,
		Behaviors:        c.Behaviors,
		Groups:           c.Groups,
		UpdatedAt:        c.UpdatedAt,
	}
}
