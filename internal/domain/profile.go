package domain

import (
	"time"

	"github.com/uptrace/bun"
)

type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID       int64  `bun:"id,pk,autoincrement"`
	Username string `bun:"username,notnull,unique"`
	Name     string `bun:"name"`
	Email    string `bun:"email,notnull"`
	TimeZone string `bun:"time_zone,notnull"`
}

func (u User) Person() Person {
	return Person{Name: u.Name, Email: u.Email, TimeZone: u.TimeZone}
}

type EventType struct {
	bun.BaseModel `bun:"table:event_types,alias:et"`

	ID                int64      `bun:"id,pk,autoincrement"`
	UserID            int64      `bun:"user_id,notnull"`
	Title             string     `bun:"title,notnull"`
	EventName         string     `bun:"event_name"`
	Length            int        `bun:"length,notnull"`
	PeriodType        PeriodType `bun:"period_type,notnull"`
	PeriodDays        *int       `bun:"period_days"`
	PeriodCountCalDay bool       `bun:"period_count_calendar_days,notnull"`
	PeriodStartDate   *time.Time `bun:"period_start_date"`
	PeriodEndDate     *time.Time `bun:"period_end_date"`
}

// Period builds the booking window policy for this event type, evaluated in
// the host's zone.
func (et EventType) Period(timeZone string) PeriodConstraint {
	return PeriodConstraint{
		Type:              et.PeriodType,
		RollingDays:       et.PeriodDays,
		CountCalendarDays: et.PeriodCountCalDay,
		RangeStart:        et.PeriodStartDate,
		RangeEnd:          et.PeriodEndDate,
		TimeZone:          timeZone,
	}
}
