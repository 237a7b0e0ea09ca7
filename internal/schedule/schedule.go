// Package schedule evaluates per-group work-hours windows.
package schedule

import (
	"fmt"
	"time"

	"github.com/yairfalse/lightsout/config"
	"github.com/yairfalse/lightsout/types"
)

// Schedule is a weekly work-hours window in one timezone.
// Start is inclusive and end is exclusive.
type Schedule struct {
	loc      *time.Location
	workDays map[int]bool
	start    time.Duration
	end      time.Duration
}

// New builds a schedule from its configuration
func New(cfg config.ScheduleConfig) (*Schedule, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	tz := cfg.Timezone
	if tz == "" {
		tz = "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", tz, err)
	}

	start, _ := config.ParseClock(cfg.Start)
	end, _ := config.ParseClock(cfg.End)

	days := make(map[int]bool, len(cfg.WorkDays))
	for _, d := range cfg.WorkDays {
		days[d] = true
	}

	return &Schedule{loc: loc, workDays: days, start: start, end: end}, nil
}

// Location returns the schedule's timezone
func (s *Schedule) Location() *time.Location {
	return s.loc
}

// IsWorkday reports whether t falls on a configured work day in the schedule's timezone
func (s *Schedule) IsWorkday(t time.Time) bool {
	return s.workDays[weekday(t.In(s.loc))]
}

// IsWorkingHours reports whether t's wall clock is inside [start, end)
func (s *Schedule) IsWorkingHours(t time.Time) bool {
	clock := sinceMidnight(t.In(s.loc))
	return clock >= s.start && clock < s.end
}

// IsWorkTime reports whether t is on a work day and inside working hours
func (s *Schedule) IsWorkTime(t time.Time) bool {
	local := t.In(s.loc)
	clock := sinceMidnight(local)
	return s.workDays[weekday(local)] && clock >= s.start && clock < s.end
}

// DesiredAction is start during work time and stop otherwise
func (s *Schedule) DesiredAction(t time.Time) types.Action {
	if s.IsWorkTime(t) {
		return types.ActionStart
	}
	return types.ActionStop
}

// NextTransition returns the first window boundary strictly after t and the
// action that applies from then on. ok is false when no work day is configured.
func (s *Schedule) NextTransition(t time.Time) (next time.Time, action types.Action, ok bool) {
	local := t.In(s.loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.loc)

	for i := 0; i <= 7; i++ {
		day := midnight.AddDate(0, 0, i)
		if !s.workDays[weekday(day)] {
			continue
		}
		open := atClock(day, s.start)
		if open.After(t) {
			return open, types.ActionStart, true
		}
		closing := atClock(day, s.end)
		if closing.After(t) {
			return closing, types.ActionStop, true
		}
	}
	return time.Time{}, "", false
}

// weekday maps time.Weekday onto 0 = Monday .. 6 = Sunday
func weekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

func sinceMidnight(t time.Time) time.Duration {
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second + time.Duration(t.Nanosecond())
}

// atClock builds the wall-clock time on day. Using time.Date keeps DST days correct.
func atClock(day time.Time, offset time.Duration) time.Time {
	h := int(offset / time.Hour)
	m := int((offset % time.Hour) / time.Minute)
	return time.Date(day.Year(), day.Month(), day.Day(), h, m, 0, 0, day.Location())
}
