package dates

import (
	"math"
	"time"
)

const averageDaysPerMonth = 30.44

func MonthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}

func FormatISO(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02")
}

// FormatInstant keeps date-only values as YYYY-MM-DD and writes anything
// with a time of day as RFC 3339, so Parse returns the same instant.
func FormatInstant(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	t = t.UTC()
	if t.Equal(StartOfDay(t)) {
		return t.Format("2006-01-02")
	}
	return t.Format(time.RFC3339Nano)
}

// DaysBetween counts whole elapsed days from from to to, truncated toward
// zero. A reactivation one hour before midnight of the churn day is 0 days.
func DaysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}

// MonthsBetween is the customer-lifetime measure: whole months of 30.44 days,
// rounded down.
func MonthsBetween(from, to time.Time) int {
	days := to.Sub(from).Hours() / 24
	return int(math.Floor(days / averageDaysPerMonth))
}

func StartOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func EndOfDay(t time.Time) time.Time {
	return StartOfDay(t).Add(24*time.Hour - time.Nanosecond)
}
