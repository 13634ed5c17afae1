// Package dates normalizes the date strings found in churn and reactivation
// sheets into UTC instants.
//
// Slash dates are always read month-first (03/04/2024 is March 4). Sheets
// filled in day-first locales are mis-read when the day is 12 or less; the
// monthly aggregates downstream were built on that reading, so it stays.
package dates

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

var ErrEmpty = errors.New("empty date")

// ParseError is returned when a value matches none of the supported formats.
type ParseError struct {
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Err != nil && errors.Is(e.Err, ErrEmpty) {
		return "parse date: empty value"
	}
	return fmt.Sprintf("parse date: unsupported format %q", e.Value)
}

func (e *ParseError) Unwrap() error { return e.Err }

var isoLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02T15:04",
}

var lenientLayouts = []string{
	"2006-01-02 15:04:05",
	"2006/01/02",
	"Jan 2, 2006",
	"January 2, 2006",
	"Jan 2 2006",
	"2 Jan 2006",
	"2 January 2006",
	"Mon, 02 Jan 2006 15:04:05 MST",
	"Mon Jan 2 2006",
	time.RFC1123Z,
	time.RFC822,
	time.RFC850,
	time.ANSIC,
	time.UnixDate,
}

var leadingYear = regexp.MustCompile(`^\d{4}`)

// Parse tries ISO 8601, then M/D/YYYY, then D-M-YYYY and returns the first
// valid instant.
func Parse(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, &ParseError{Value: value, Err: ErrEmpty}
	}
	if t, ok := parseISO(value); ok {
		return t, nil
	}
	if t, ok := parseMonthFirstSlash(value); ok {
		return t, nil
	}
	if t, ok := parseDayFirstDash(value); ok {
		return t, nil
	}
	return time.Time{}, &ParseError{Value: value}
}

// ParseLenient runs Parse and falls back to a set of human-written layouts.
// Only the period filter uses it; aggregation sticks to Parse.
func ParseLenient(value string) (time.Time, error) {
	t, err := Parse(value)
	if err == nil || errors.Is(err, ErrEmpty) {
		return t, err
	}
	trimmed := strings.TrimSpace(value)
	for _, layout := range lenientLayouts {
		if parsed, perr := time.Parse(layout, trimmed); perr == nil {
			return parsed.UTC(), nil
		}
	}
	return time.Time{}, err
}

func parseISO(value string) (time.Time, bool) {
	for _, layout := range isoLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed.UTC(), true
		}
	}
	return time.Time{}, false
}

func parseMonthFirstSlash(value string) (time.Time, bool) {
	parts := strings.Split(value, "/")
	if len(parts) != 3 {
		return time.Time{}, false
	}
	month := padTwo(strings.TrimSpace(parts[0]))
	day := padTwo(strings.TrimSpace(parts[1]))
	year := strings.TrimSpace(parts[2])
	return parseISO(fmt.Sprintf("%s-%s-%s", year, month, day))
}

func parseDayFirstDash(value string) (time.Time, bool) {
	if leadingYear.MatchString(value) || !strings.Contains(value, "-") {
		return time.Time{}, false
	}
	parsed, err := time.Parse("2-1-2006", value)
	if err != nil {
		return time.Time{}, false
	}
	return parsed.UTC(), true
}

func padTwo(value string) string {
	if len(value) == 1 {
		return "0" + value
	}
	return value
}
