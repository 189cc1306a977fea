package cadence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aikyo-io/campaign-engine/models"
	"github.com/aikyo-io/campaign-engine/utils"
)

func TestValidateSchedule(t *testing.T) {
	tests := []struct {
		name         string
		schedule     models.Schedule
		expectError  bool
		expectedKind ScheduleErrorKind
	}{
		{
			name: "valid daily schedule",
			schedule: models.Schedule{
				Cadence:   models.CadenceDaily,
				Time:      "09:00",
				StartDate: "2026-01-01",
				Always:    true,
			},
		},
		{
			name: "valid weekly schedule with end date",
			schedule: models.Schedule{
				Cadence:   models.CadenceWeekly,
				Time:      "14:30",
				StartDate: "2026-01-01",
				EndDate:   utils.ToPtr("2026-06-30"),
				Weekdays:  []int{1, 3, 5},
			},
		},
		{
			name: "valid monthly schedule",
			schedule: models.Schedule{
				Cadence:    models.CadenceMonthly,
				Time:       "08:00",
				StartDate:  "2026-01-01",
				Always:     true,
				DayOfMonth: utils.ToPtr(15),
			},
		},
		{
			name: "unknown cadence",
			schedule: models.Schedule{
				Cadence:   "HOURLY",
				Time:      "09:00",
				StartDate: "2026-01-01",
				Always:    true,
			},
			expectError:  true,
			expectedKind: ScheduleErrorBadCadence,
		},
		{
			name: "malformed time",
			schedule: models.Schedule{
				Cadence:   models.CadenceDaily,
				Time:      "9 o'clock",
				StartDate: "2026-01-01",
				Always:    true,
			},
			expectError:  true,
			expectedKind: ScheduleErrorBadTime,
		},
		{
			name: "malformed start date",
			schedule: models.Schedule{
				Cadence:   models.CadenceDaily,
				Time:      "09:00",
				StartDate: "01/01/2026",
				Always:    true,
			},
			expectError:  true,
			expectedKind: ScheduleErrorBadDate,
		},
		{
			name: "once with end date",
			schedule: models.Schedule{
				Cadence:   models.CadenceOnce,
				Time:      "09:00",
				StartDate: "2026-01-01",
				Always:    true,
				EndDate:   utils.ToPtr("2026-01-02"),
			},
			expectError:  true,
			expectedKind: ScheduleErrorBadRange,
		},
		{
			name: "once without always",
			schedule: models.Schedule{
				Cadence:   models.CadenceOnce,
				Time:      "09:00",
				StartDate: "2026-01-01",
				EndDate:   utils.ToPtr("2026-01-02"),
			},
			expectError:  true,
			expectedKind: ScheduleErrorBadRange,
		},
		{
			name: "weekly without weekdays",
			schedule: models.Schedule{
				Cadence:   models.CadenceWeekly,
				Time:      "09:00",
				StartDate: "2026-01-01",
				Always:    true,
			},
			expectError:  true,
			expectedKind: ScheduleErrorBadWeekdays,
		},
		{
			name: "weekly with out-of-range weekday",
			schedule: models.Schedule{
				Cadence:   models.CadenceWeekly,
				Time:      "09:00",
				StartDate: "2026-01-01",
				Always:    true,
				Weekdays:  []int{1, 7},
			},
			expectError:  true,
			expectedKind: ScheduleErrorBadWeekdays,
		},
		{
			name: "monthly without day of month",
			schedule: models.Schedule{
				Cadence:   models.CadenceMonthly,
				Time:      "09:00",
				StartDate: "2026-01-01",
				Always:    true,
			},
			expectError:  true,
			expectedKind: ScheduleErrorBadDayOfMonth,
		},
		{
			name: "bounded without end date",
			schedule: models.Schedule{
				Cadence:   models.CadenceDaily,
				Time:      "09:00",
				StartDate: "2026-01-01",
			},
			expectError:  true,
			expectedKind: ScheduleErrorBadRange,
		},
		{
			name: "end date before start date",
			schedule: models.Schedule{
				Cadence:   models.CadenceDaily,
				Time:      "09:00",
				StartDate: "2026-06-01",
				EndDate:   utils.ToPtr("2026-01-01"),
			},
			expectError:  true,
			expectedKind: ScheduleErrorBadRange,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSchedule(tt.schedule)
			if tt.expectError {
				require.Error(t, err)
				var schedErr *ScheduleError
				require.ErrorAs(t, err, &schedErr)
				assert.Equal(t, tt.expectedKind, schedErr.Kind)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestShouldFireAt(t *testing.T) {
	weekly := models.Schedule{
		Cadence:   models.CadenceWeekly,
		Time:      "09:00",
		StartDate: "2026-01-01",
		Always:    true,
		Weekdays:  []int{1, 3, 5}, // Mon, Wed, Fri
	}

	// 2026-01-05 is a Monday
	assert.True(t, ShouldFireAt(weekly, time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)))
	// Tuesday does not fire
	assert.False(t, ShouldFireAt(weekly, time.Date(2026, 1, 6, 9, 0, 0, 0, time.UTC)))
	// Wrong minute does not fire
	assert.False(t, ShouldFireAt(weekly, time.Date(2026, 1, 5, 9, 1, 0, 0, time.UTC)))
	// Before the start date does not fire even on a Monday
	assert.False(t, ShouldFireAt(weekly, time.Date(2025, 12, 29, 9, 0, 0, 0, time.UTC)))
}

func TestShouldFireAtOnce(t *testing.T) {
	once := models.Schedule{
		Cadence:   models.CadenceOnce,
		Time:      "12:30",
		StartDate: "2026-03-15",
		Always:    true,
	}

	assert.True(t, ShouldFireAt(once, time.Date(2026, 3, 15, 12, 30, 0, 0, time.UTC)))
	assert.False(t, ShouldFireAt(once, time.Date(2026, 3, 16, 12, 30, 0, 0, time.UTC)))
}

func TestShouldFireAtBoundedWindow(t *testing.T) {
	daily := models.Schedule{
		Cadence:   models.CadenceDaily,
		Time:      "07:00",
		StartDate: "2026-01-01",
		EndDate:   utils.ToPtr("2026-01-03"),
	}

	assert.True(t, ShouldFireAt(daily, time.Date(2026, 1, 1, 7, 0, 0, 0, time.UTC)))
	assert.True(t, ShouldFireAt(daily, time.Date(2026, 1, 2, 7, 0, 0, 0, time.UTC)))
	assert.True(t, ShouldFireAt(daily, time.Date(2026, 1, 3, 7, 0, 0, 0, time.UTC)))
	// The day before the start and the day after the end are outside the window
	assert.False(t, ShouldFireAt(daily, time.Date(2025, 12, 31, 7, 0, 0, 0, time.UTC)))
	assert.False(t, ShouldFireAt(daily, time.Date(2026, 1, 4, 7, 0, 0, 0, time.UTC)))
}

func TestNextFireAfterDaily(t *testing.T) {
	daily := models.Schedule{
		Cadence:   models.CadenceDaily,
		Time:      "09:00",
		StartDate: "2026-01-01",
		Always:    true,
	}

	// Before today's fire time, the next fire is today
	next := NextFireAfter(daily, time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC))
	require.NotNil(t, next)
	assert.Equal(t, time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC), *next)

	// At the fire instant exactly, the next fire is tomorrow
	next = NextFireAfter(daily, time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC))
	require.NotNil(t, next)
	assert.Equal(t, time.Date(2026, 1, 11, 9, 0, 0, 0, time.UTC), *next)
}

func TestNextFireAfterWeekly(t *testing.T) {
	weekly := models.Schedule{
		Cadence:   models.CadenceWeekly,
		Time:      "09:00",
		StartDate: "2026-01-01",
		Always:    true,
		Weekdays:  []int{1, 5}, // Mon, Fri
	}

	// From a Tuesday the next fire is Friday 2026-01-09
	next := NextFireAfter(weekly, time.Date(2026, 1, 6, 10, 0, 0, 0, time.UTC))
	require.NotNil(t, next)
	assert.Equal(t, time.Date(2026, 1, 9, 9, 0, 0, 0, time.UTC), *next)
}

func TestNextFireAfterMonthlySkipsShortMonths(t *testing.T) {
	monthly := models.Schedule{
		Cadence:    models.CadenceMonthly,
		Time:       "09:00",
		StartDate:  "2026-01-01",
		Always:     true,
		DayOfMonth: utils.ToPtr(31),
	}

	// After January 31 the next month with a 31st is March; February is skipped
	next := NextFireAfter(monthly, time.Date(2026, 1, 31, 9, 0, 0, 0, time.UTC))
	require.NotNil(t, next)
	assert.Equal(t, time.Date(2026, 3, 31, 9, 0, 0, 0, time.UTC), *next)
}

func TestNextFireAfterExhausted(t *testing.T) {
	once := models.Schedule{
		Cadence:   models.CadenceOnce,
		Time:      "09:00",
		StartDate: "2026-01-01",
		Always:    true,
	}
	assert.Nil(t, NextFireAfter(once, time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)))

	bounded := models.Schedule{
		Cadence:   models.CadenceDaily,
		Time:      "09:00",
		StartDate: "2026-01-01",
		EndDate:   utils.ToPtr("2026-01-05"),
	}
	assert.Nil(t, NextFireAfter(bounded, time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)))
}

func TestNextFireAfterBeforeStart(t *testing.T) {
	daily := models.Schedule{
		Cadence:   models.CadenceDaily,
		Time:      "09:00",
		StartDate: "2026-02-01",
		Always:    true,
	}

	next := NextFireAfter(daily, time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC))
	require.NotNil(t, next)
	assert.Equal(t, time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC), *next)
}
