package domain

import "time"

type PeriodType string

const (
	PeriodUnlimited PeriodType = "unlimited"
	PeriodRolling   PeriodType = "rolling"
	PeriodRange     PeriodType = "range"
)

// PeriodConstraint limits how far ahead a slot may be booked. Only the fields
// belonging to Type are read; a nil required field makes the constraint
// malformed.
type PeriodConstraint struct {
	Type              PeriodType
	RollingDays       *int
	CountCalendarDays bool
	RangeStart        *time.Time
	RangeEnd          *time.Time
	TimeZone          string
}
