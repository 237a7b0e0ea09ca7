package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yairfalse/lightsout/config"
	"github.com/yairfalse/lightsout/types"
)

func laSchedule(t *testing.T) *Schedule {
	t.Helper()
	s, err := New(config.ScheduleConfig{
		Timezone: "America/Los_Angeles",
		WorkDays: []int{0, 1, 2, 3, 4},
		Start:    "09:00",
		End:      "17:00",
	})
	require.NoError(t, err)
	return s
}

func TestSchedule_IsWorkTime(t *testing.T) {
	s := laSchedule(t)
	la := s.Location()

	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"monday at start is inclusive", time.Date(2025, 1, 6, 9, 0, 0, 0, la), true},
		{"monday midday", time.Date(2025, 1, 6, 12, 30, 0, 0, la), true},
		{"monday just before end", time.Date(2025, 1, 6, 16, 59, 59, 0, la), true},
		{"monday at end is exclusive", time.Date(2025, 1, 6, 17, 0, 0, 0, la), false},
		{"monday before start", time.Date(2025, 1, 6, 8, 59, 0, 0, la), false},
		{"friday midday", time.Date(2025, 1, 10, 12, 0, 0, 0, la), true},
		{"saturday midday", time.Date(2025, 1, 11, 12, 0, 0, 0, la), false},
		{"sunday midday", time.Date(2025, 1, 12, 12, 0, 0, 0, la), false},
		// 18:00 UTC Monday is 10:00 in Los Angeles
		{"utc input is converted", time.Date(2025, 1, 6, 18, 0, 0, 0, time.UTC), true},
		// 03:00 UTC Tuesday is still Monday 19:00 in Los Angeles
		{"utc day differs from local day", time.Date(2025, 1, 7, 3, 0, 0, 0, time.UTC), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.IsWorkTime(tt.at))
		})
	}
}

func TestSchedule_Predicates(t *testing.T) {
	s := laSchedule(t)
	saturdayMorning := time.Date(2025, 1, 11, 10, 0, 0, 0, s.Location())

	assert.False(t, s.IsWorkday(saturdayMorning))
	assert.True(t, s.IsWorkingHours(saturdayMorning))
	assert.False(t, s.IsWorkTime(saturdayMorning))
}

func TestSchedule_DesiredAction(t *testing.T) {
	s := laSchedule(t)
	la := s.Location()

	assert.Equal(t, types.ActionStart, s.DesiredAction(time.Date(2025, 1, 7, 10, 0, 0, 0, la)))
	assert.Equal(t, types.ActionStop, s.DesiredAction(time.Date(2025, 1, 7, 20, 0, 0, 0, la)))
	assert.Equal(t, types.ActionStop, s.DesiredAction(time.Date(2025, 1, 11, 10, 0, 0, 0, la)))
}

func TestSchedule_NextTransition(t *testing.T) {
	s := laSchedule(t)
	la := s.Location()

	next, action, ok := s.NextTransition(time.Date(2025, 1, 6, 10, 0, 0, 0, la))
	require.True(t, ok)
	assert.Equal(t, types.ActionStop, action)
	assert.True(t, next.Equal(time.Date(2025, 1, 6, 17, 0, 0, 0, la)))

	// friday evening skips the weekend
	next, action, ok = s.NextTransition(time.Date(2025, 1, 10, 18, 0, 0, 0, la))
	require.True(t, ok)
	assert.Equal(t, types.ActionStart, action)
	assert.True(t, next.Equal(time.Date(2025, 1, 13, 9, 0, 0, 0, la)))

	// exactly at the boundary the next one is the following boundary
	next, action, ok = s.NextTransition(time.Date(2025, 1, 6, 9, 0, 0, 0, la))
	require.True(t, ok)
	assert.Equal(t, types.ActionStop, action)
	assert.True(t, next.Equal(time.Date(2025, 1, 6, 17, 0, 0, 0, la)))
}

func TestNew_Defaults(t *testing.T) {
	s, err := New(config.ScheduleConfig{WorkDays: []int{5, 6}, Start: "10:00", End: "12:00"})
	require.NoError(t, err)
	assert.Equal(t, "UTC", s.Location().String())
	assert.True(t, s.IsWorkTime(time.Date(2025, 1, 11, 11, 0, 0, 0, time.UTC)))
	assert.False(t, s.IsWorkTime(time.Date(2025, 1, 10, 11, 0, 0, 0, time.UTC)))
}

func TestNew_Invalid(t *testing.T) {
	tests := []config.ScheduleConfig{
		{Timezone: "Mars/Olympus", WorkDays: []int{0}, Start: "09:00", End: "17:00"},
		{WorkDays: []int{0}, Start: "9am", End: "17:00"},
		{WorkDays: []int{0}, Start: "18:00", End: "17:00"},
		{Start: "09:00", End: "17:00"},
	}
	for _, cfg := range tests {
		_, err := New(cfg)
		assert.Error(t, err, "%+v", cfg)
	}
}
