package availability

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"slotkeeper/backend/internal/domain"
)

var ErrMalformedConstraint = errors.New("malformed period constraint")

// IsOutOfBounds reports whether candidate falls outside the booking window
// described by c, as seen at now. Days are evaluated in c.TimeZone; an empty or
// unknown zone falls back to UTC.
//
// The only error is ErrMalformedConstraint, for a constraint missing the
// fields its type requires. Callers that fail open treat it as "not out of
// bounds".
func IsOutOfBounds(candidate time.Time, c domain.PeriodConstraint, now time.Time) (bool, error) {
	loc := zone(c.TimeZone)
	day := endOfDay(candidate.In(loc))

	switch c.Type {
	case "", domain.PeriodUnlimited:
		return false, nil

	case domain.PeriodRolling:
		if c.RollingDays == nil {
			return false, fmt.Errorf("%w: rolling period without days", ErrMalformedConstraint)
		}
		if *c.RollingDays < 0 {
			return false, fmt.Errorf("%w: negative rolling days %d", ErrMalformedConstraint, *c.RollingDays)
		}
		from := now.In(loc)
		var horizon time.Time
		if c.CountCalendarDays {
			horizon = from.AddDate(0, 0, *c.RollingDays)
		} else {
			horizon = addBusinessDays(from, *c.RollingDays)
		}
		return day.After(endOfDay(horizon)), nil

	case domain.PeriodRange:
		if c.RangeStart == nil || c.RangeEnd == nil {
			return false, fmt.Errorf("%w: range period without start and end dates", ErrMalformedConstraint)
		}
		first := endOfDate(*c.RangeStart, loc)
		last := endOfDate(*c.RangeEnd, loc)
		return day.Before(first) || day.After(last), nil

	default:
		return false, fmt.Errorf("%w: unknown period type %q", ErrMalformedConstraint, c.Type)
	}
}

func zone(name string) *time.Location {
	name = strings.TrimSpace(name)
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(time.Second-time.Nanosecond), t.Location())
}

// endOfDate treats the stored value as a calendar date and returns the end of
// that date in loc.
func endOfDate(date time.Time, loc *time.Location) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, 23, 59, 59, int(time.Second-time.Nanosecond), loc)
}

// addBusinessDays steps one day at a time and only counts weekdays.
func addBusinessDays(t time.Time, n int) time.Time {
	for n > 0 {
		t = t.AddDate(0, 0, 1)
		if wd := t.Weekday(); wd != time.Saturday && wd != time.Sunday {
			n--
		}
	}
	return t
}
