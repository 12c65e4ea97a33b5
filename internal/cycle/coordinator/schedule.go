package coordinator

import (
	"time"

	"github.com/labelhub/autotrain/internal/config"
)

// Schedule is a fixed daily run time plus an optional run at startup
type Schedule struct {
	Hour       int
	Minute     int
	RunOnStart bool
}

// ScheduleFromConfig reads the schedule section of cfg
func ScheduleFromConfig(cfg *config.Config) (Schedule, error) {
	hour, minute, err := config.ParseDailyAt(cfg.Schedule.DailyAt)
	if err != nil {
		return Schedule{}, err
	}
	return Schedule{Hour: hour, Minute: minute, RunOnStart: cfg.GetRunOnStart()}, nil
}

// Next returns the first scheduled time strictly after now, in now's location.
func (s Schedule) Next(now time.Time) time.Time {
	y, m, d := now.Date()
	next := time.Date(y, m, d, s.Hour, s.Minute, 0, 0, now.Location())
	if !next.After(now) {
		next = time.Date(y, m, d+1, s.Hour, s.Minute, 0, 0, now.Location())
	}
	return next
}
