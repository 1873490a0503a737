package classification

// JobKey - ключ фоновой задачи пересчёта.
type JobKey string

const (
	GenerateJobKey JobKey = "generate-classification-job"
	UpdateJobKey   JobKey = "update-classification-job"
)

// IsValid проверяет, что ключ известен.
func (k JobKey) IsValid() bool {
	return k == GenerateJobKey || k == UpdateJobKey
}

// Mode возвращает режим агрегатора для задачи.
func (k JobKey) Mode() Mode {
	if k == GenerateJobKey {
		return ModeGenerate
	}
	return ModeUpdate
}

// FollowUpJob - задача, которую вызывающая сторона должна поставить в очередь
// после изменения оценок.
type FollowUpJob struct {
	Key      JobKey `json:"key"`
	CourseID string `json:"course_id"`
}

// RecalculateCourse - задача пересчёта курса после правки оценок.
func RecalculateCourse(courseID string) FollowUpJob {
	return FollowUpJob{Key: UpdateJobKey, CourseID: courseID}
}
