package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// CronSchedule runs a job on a standard 5-field cron expression.
// Examples:
//   - "*/5 * * * *"  - every 5 minutes
//   - "0 3 * * *"    - every day at 03:00
//   - "@daily"       - every day at midnight
type CronSchedule struct {
	expr     string
	schedule cron.Schedule
}

// ParseCron parses a cron expression or descriptor.
func ParseCron(expr string) (*CronSchedule, error) {
	s, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return &CronSchedule{expr: expr, schedule: s}, nil
}

// MustParseCron is like ParseCron but panics on error.
func MustParseCron(expr string) *CronSchedule {
	s, err := ParseCron(expr)
	if err != nil {
		panic(err)
	}
	return s
}

// Next returns the next activation time after t.
func (s *CronSchedule) Next(t time.Time) time.Time {
	return s.schedule.Next(t)
}

// String returns the original expression.
func (s *CronSchedule) String() string {
	return s.expr
}
