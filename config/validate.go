package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct constraints and the cross-field rules the tags cannot express
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return describeValidationError(err)
	}

	for group, s := range c.Schedules {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("schedule %q: %w", group, err)
		}
	}

	if d := c.ResourceDefaults.ECSService; d != nil {
		if d.StopBehavior.Mode == StopModeReduceByCount && d.StopBehavior.Count == 0 {
			return errors.New("resource_defaults.ecs-service.stop_behavior: reduce_by_count requires a count")
		}
	}

	return nil
}

// Validate checks the schedule window
func (s ScheduleConfig) Validate() error {
	if s.Timezone != "" {
		if _, err := time.LoadLocation(s.Timezone); err != nil {
			return fmt.Errorf("invalid timezone %q: %w", s.Timezone, err)
		}
	}

	start, err := ParseClock(s.Start)
	if err != nil {
		return fmt.Errorf("start: %w", err)
	}
	end, err := ParseClock(s.End)
	if err != nil {
		return fmt.Errorf("end: %w", err)
	}
	if start >= end {
		return fmt.Errorf("start %s must be before end %s", s.Start, s.End)
	}

	if len(s.WorkDays) == 0 {
		return errors.New("work_days is required")
	}
	return nil
}

// ParseClock parses HH:MM into an offset from midnight
func ParseClock(v string) (time.Duration, error) {
	t, err := time.Parse("15:04", v)
	if err != nil {
		return 0, fmt.Errorf("time %q must be HH:MM", v)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

func describeValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "Config.")
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s (got %v)", field, fe.Tag(), fe.Param(), fe.Value()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s failed %s (got %v)", field, fe.Tag(), fe.Value()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}
