// Package cadence decides when a campaign schedule fires. All functions are
// pure; fire-once bookkeeping lives on the campaign row, not here.
package cadence

import (
	"fmt"
	"time"

	"github.com/aikyo-io/campaign-engine/models"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

// ScheduleErrorKind classifies an invalid cadence combination
type ScheduleErrorKind string

const (
	ScheduleErrorBadCadence    ScheduleErrorKind = "BAD_CADENCE"
	ScheduleErrorBadTime       ScheduleErrorKind = "BAD_TIME"
	ScheduleErrorBadDate       ScheduleErrorKind = "BAD_DATE"
	ScheduleErrorBadRange      ScheduleErrorKind = "BAD_RANGE"
	ScheduleErrorBadWeekdays   ScheduleErrorKind = "BAD_WEEKDAYS"
	ScheduleErrorBadDayOfMonth ScheduleErrorKind = "BAD_DAY_OF_MONTH"
)

// ScheduleError reports an invalid schedule at campaign save time
type ScheduleError struct {
	Kind    ScheduleErrorKind `json:"kind"`
	Message string            `json:"message"`
}

func (e *ScheduleError) Error() string {
	return fmt.Sprintf("schedule error %s: %s", e.Kind, e.Message)
}

// ValidateSchedule checks the cadence invariants of a schedule
func ValidateSchedule(s models.Schedule) error {
	if !s.Cadence.Valid() {
		return &ScheduleError{Kind: ScheduleErrorBadCadence, Message: fmt.Sprintf("unknown cadence %q", s.Cadence)}
	}
	if _, err := time.Parse(timeLayout, s.Time); err != nil {
		return &ScheduleError{Kind: ScheduleErrorBadTime, Message: fmt.Sprintf("time %q is not HH:MM", s.Time)}
	}
	start, err := time.Parse(dateLayout, s.StartDate)
	if err != nil {
		return &ScheduleError{Kind: ScheduleErrorBadDate, Message: fmt.Sprintf("startDate %q is not YYYY-MM-DD", s.StartDate)}
	}

	switch s.Cadence {
	case models.CadenceOnce:
		if !s.Always {
			return &ScheduleError{Kind: ScheduleErrorBadRange, Message: "ONCE requires always=true"}
		}
		if s.EndDate != nil {
			return &ScheduleError{Kind: ScheduleErrorBadRange, Message: "ONCE forbids endDate"}
		}
	case models.CadenceWeekly:
		if len(s.Weekdays) == 0 {
			return &ScheduleError{Kind: ScheduleErrorBadWeekdays, Message: "WEEKLY requires non-empty weekdays"}
		}
		for _, wd := range s.Weekdays {
			if wd < 0 || wd > 6 {
				return &ScheduleError{Kind: ScheduleErrorBadWeekdays, Message: fmt.Sprintf("weekday %d out of range 0-6", wd)}
			}
		}
	case models.CadenceMonthly:
		if s.DayOfMonth == nil || *s.DayOfMonth < 1 || *s.DayOfMonth > 31 {
			return &ScheduleError{Kind: ScheduleErrorBadDayOfMonth, Message: "MONTHLY requires dayOfMonth between 1 and 31"}
		}
	}

	if !s.Always {
		if s.EndDate == nil {
			return &ScheduleError{Kind: ScheduleErrorBadRange, Message: "endDate is required when always=false"}
		}
		end, err := time.Parse(dateLayout, *s.EndDate)
		if err != nil {
			return &ScheduleError{Kind: ScheduleErrorBadDate, Message: fmt.Sprintf("endDate %q is not YYYY-MM-DD", *s.EndDate)}
		}
		if end.Before(start) {
			return &ScheduleError{Kind: ScheduleErrorBadRange, Message: "endDate must not precede startDate"}
		}
	}

	return nil
}

// ShouldFireAt reports whether the schedule fires at the given instant,
// compared at minute granularity in the instant's location
func ShouldFireAt(s models.Schedule, instant time.Time) bool {
	fireTime, err := time.Parse(timeLayout, s.Time)
	if err != nil {
		return false
	}
	if instant.Hour() != fireTime.Hour() || instant.Minute() != fireTime.Minute() {
		return false
	}

	day := time.Date(instant.Year(), instant.Month(), instant.Day(), 0, 0, 0, 0, instant.Location())
	if !inRange(s, day, instant.Location()) {
		return false
	}

	switch s.Cadence {
	case models.CadenceOnce:
		start, err := time.ParseInLocation(dateLayout, s.StartDate, instant.Location())
		if err != nil {
			return false
		}
		return day.Equal(start)
	case models.CadenceDaily:
		return true
	case models.CadenceWeekly:
		wd := int(instant.Weekday())
		for _, allowed := range s.Weekdays {
			if wd == allowed {
				return true
			}
		}
		return false
	case models.CadenceMonthly:
		return s.DayOfMonth != nil && instant.Day() == *s.DayOfMonth
	default:
		return false
	}
}

// NextFireAfter computes the earliest fire instant strictly after the given
// time, or nil when the schedule will never fire again. MONTHLY skips months
// shorter than dayOfMonth.
func NextFireAfter(s models.Schedule, after time.Time) *time.Time {
	fireTime, err := time.Parse(timeLayout, s.Time)
	if err != nil {
		return nil
	}
	start, err := time.ParseInLocation(dateLayout, s.StartDate, after.Location())
	if err != nil {
		return nil
	}

	at := func(day time.Time) time.Time {
		return time.Date(day.Year(), day.Month(), day.Day(), fireTime.Hour(), fireTime.Minute(), 0, 0, day.Location())
	}

	if s.Cadence == models.CadenceOnce {
		instant := at(start)
		if instant.After(after) {
			return &instant
		}
		return nil
	}

	day := time.Date(after.Year(), after.Month(), after.Day(), 0, 0, 0, 0, after.Location())
	if day.Before(start) {
		day = start
	}

	// Bounded scan: 366 days covers every DAILY/WEEKLY gap, 31*48 days
	// covers the longest MONTHLY skip run (dayOfMonth=31 across short
	// months) with margin.
	for i := 0; i < 366*4; i++ {
		candidate := at(day)
		if !candidate.After(after) {
			day = day.AddDate(0, 0, 1)
			continue
		}
		if !inRange(s, day, after.Location()) {
			return nil
		}
		switch s.Cadence {
		case models.CadenceDaily:
			return &candidate
		case models.CadenceWeekly:
			wd := int(day.Weekday())
			for _, allowed := range s.Weekdays {
				if wd == allowed {
					return &candidate
				}
			}
		case models.CadenceMonthly:
			if s.DayOfMonth != nil && day.Day() == *s.DayOfMonth {
				return &candidate
			}
		}
		day = day.AddDate(0, 0, 1)
	}
	return nil
}

// inRange checks the schedule's calendar window for a given day
func inRange(s models.Schedule, day time.Time, loc *time.Location) bool {
	start, err := time.ParseInLocation(dateLayout, s.StartDate, loc)
	if err != nil {
		return false
	}
	if day.Before(start) {
		return false
	}
	if s.Always || s.EndDate == nil {
		return true
	}
	end, err := time.ParseInLocation(dateLayout, *s.EndDate, loc)
	if err != nil {
		return false
	}
	return !day.After(end)
}
