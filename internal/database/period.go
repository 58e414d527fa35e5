package database

import (
	"time"
)

// DateLayout is the text form of publication_date in the notices table.
const DateLayout = "2006-01-02"

// GetToday returns today's date as YYYY-MM-DD.
func GetToday() string {
	return time.Now().Format(DateLayout)
}

// FormatDate renders a publication date the way it is stored.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDate parses a stored publication date. Unparseable text yields the
// zero time.
func ParseDate(s string) time.Time {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}
	}
	return d
}

// FormatDateDisplay formats a date for human-readable display, Italian
// day-first order.
func FormatDateDisplay(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("02/01/2006")
}

// TruncateDay drops the time-of-day part, keeping the calendar date in UTC.
func TruncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
