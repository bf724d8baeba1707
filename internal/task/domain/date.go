package domain

import (
	"time"

	"tasksync-backend/pkg/apperr"
)

// DateLayout is the wire and storage format of a calendar date.
const DateLayout = "2006-01-02"

// Date is a calendar date without time of day, stored as YYYY-MM-DD.
// The zero value means "no date". Dates in this layout sort correctly as
// strings.
type Date string

// ParseDate validates s. An empty string yields the zero Date.
func ParseDate(s string) (Date, error) {
	if s == "" {
		return "", nil
	}
	if _, err := time.Parse(DateLayout, s); err != nil {
		return "", apperr.Invalid("date %q must be YYYY-MM-DD", s)
	}
	return Date(s), nil
}

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) Date {
	return Date(t.Format(DateLayout))
}

func (d Date) IsZero() bool { return d == "" }

func (d Date) String() string { return string(d) }

// Time returns midnight UTC of d. The zero Date yields the zero time.
func (d Date) Time() time.Time {
	t, _ := time.Parse(DateLayout, string(d))
	return t
}

func (d Date) Before(other Date) bool { return d < other }

func (d Date) After(other Date) bool { return d > other }

func (d Date) AddDays(n int) Date {
	return DateOf(d.Time().AddDate(0, 0, n))
}

// AddMonthsClamped adds n calendar months, clamping the day to the last day
// of the target month: Jan 31 + 1 month is Feb 28 (or 29).
func (d Date) AddMonthsClamped(n int) Date {
	t := d.Time()
	first := time.Date(t.Year(), t.Month()+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	day := t.Day()
	if last := daysInMonth(first.Year(), first.Month()); day > last {
		day = last
	}
	return DateOf(time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, time.UTC))
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
