// Package eventhandler содержит обработчики доменных событий.
// Обработчики реагируют на изменения и запускают побочные эффекты,
// такие как сброс кешей и журналирование переходов статусов.
package eventhandler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/academic-records/records-hub/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON COURSE CLASSIFIED HANDLER
// После пересчёта курса сбрасывает закешированные рейтинги курса,
// чтобы запросы чтения увидели новые классификации.
// ═══════════════════════════════════════════════════════════════════════════

// RankingInvalidator сбрасывает кеш рейтингов курса.
type RankingInvalidator interface {
	InvalidateCourse(ctx context.Context, courseID string) error
}

// OnCourseClassifiedHandler обрабатывает событие пересчёта курса.
type OnCourseClassifiedHandler struct {
	cache   RankingInvalidator
	logger  *slog.Logger
	timeout time.Duration
}

// NewOnCourseClassifiedHandler создаёт обработчик.
func NewOnCourseClassifiedHandler(cache RankingInvalidator, logger *slog.Logger) *OnCourseClassifiedHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OnCourseClassifiedHandler{
		cache:   cache,
		logger:  logger.With("handler", "on_course_classified"),
		timeout: 5 * time.Second,
	}
}

// Handle реализует shared.EventHandler.
func (h *OnCourseClassifiedHandler) Handle(event shared.Event) error {
	classified, ok := event.(shared.CourseClassifiedEvent)
	if !ok {
		h.logger.Warn("received non-CourseClassifiedEvent", "event_type", event.EventType())
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	if err := h.cache.InvalidateCourse(ctx, classified.CourseID); err != nil {
		h.logger.Error("failed to invalidate rankings",
			"course_id", classified.CourseID,
			"error", err,
		)
		return fmt.Errorf("invalidate rankings: %w", err)
	}

	h.logger.Info("rankings invalidated",
		"course_id", classified.CourseID,
		"mode", classified.Mode,
		"students", classified.Students,
	)
	return nil
}

// ═══════════════════════════════════════════════════════════════════════════
// ON STUDENT STATUS CHANGED HANDLER
// Журналирует переходы статусов (например, "second season" → "approved second season").
// ═══════════════════════════════════════════════════════════════════════════

// OnStudentStatusChangedHandler журналирует смену статуса студента.
type OnStudentStatusChangedHandler struct {
	logger *slog.Logger
}

// NewOnStudentStatusChangedHandler создаёт обработчик.
func NewOnStudentStatusChangedHandler(logger *slog.Logger) *OnStudentStatusChangedHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OnStudentStatusChangedHandler{logger: logger.With("handler", "on_student_status_changed")}
}

// Handle реализует shared.EventHandler.
func (h *OnStudentStatusChangedHandler) Handle(event shared.Event) error {
	changed, ok := event.(shared.StudentStatusChangedEvent)
	if !ok {
		return nil
	}
	h.logger.Info("student status changed",
		"student_id", changed.StudentID,
		"course_id", changed.CourseID,
		"old_status", changed.OldStatus,
		"new_status", changed.NewStatus,
		"average", changed.Average,
	)
	return nil
}
