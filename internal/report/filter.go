package report

import (
	"fmt"
	"strings"
	"time"

	"churn-insights/internal/dates"
	"churn-insights/internal/records"
)

type Period string

const (
	PeriodAllTime     Period = "all-time"
	PeriodToday       Period = "today"
	PeriodYesterday   Period = "yesterday"
	PeriodThisWeek    Period = "this-week"
	PeriodLastWeek    Period = "last-week"
	PeriodThisMonth   Period = "this-month"
	PeriodLastMonth   Period = "last-month"
	PeriodLast30Days  Period = "last-30-days"
	PeriodLast90Days  Period = "last-90-days"
	PeriodLast180Days Period = "last-180-days"
	PeriodThisYear    Period = "this-year"
	PeriodCustom      Period = "custom-range"
)

const allTimeLabel = "All time"

// Filter selects records by date. A start/end pair takes precedence over
// Period.
type Filter struct {
	Period Period
	Start  string
	End    string
}

type Range struct {
	Start time.Time
	End   time.Time
}

func (r Range) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

type DateRange struct {
	Period string `json:"period"`
	Start  string `json:"start"`
	End    string `json:"end"`
}

// Resolve returns the window for f at now, or nil when nothing is filtered.
// Weeks start on Sunday; all arithmetic is in UTC.
func (f Filter) Resolve(now time.Time) (*Range, error) {
	now = now.UTC()
	if f.Start != "" || f.End != "" {
		return f.custom()
	}
	today := dates.StartOfDay(now)
	day := 24 * time.Hour

	switch Period(strings.ToLower(strings.TrimSpace(string(f.Period)))) {
	case "", PeriodAllTime:
		return nil, nil
	case PeriodToday:
		return &Range{Start: today, End: dates.EndOfDay(today)}, nil
	case PeriodYesterday:
		yesterday := today.AddDate(0, 0, -1)
		return &Range{Start: yesterday, End: dates.EndOfDay(yesterday)}, nil
	case PeriodThisWeek:
		return &Range{Start: today.AddDate(0, 0, -int(today.Weekday())), End: now}, nil
	case PeriodLastWeek:
		lastSaturday := today.AddDate(0, 0, -int(today.Weekday())-1)
		return &Range{Start: lastSaturday.AddDate(0, 0, -6), End: dates.EndOfDay(lastSaturday)}, nil
	case PeriodThisMonth:
		return &Range{Start: time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC), End: now}, nil
	case PeriodLastMonth:
		thisMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		return &Range{Start: thisMonth.AddDate(0, -1, 0), End: thisMonth.Add(-time.Nanosecond)}, nil
	case PeriodLast30Days:
		return &Range{Start: today.Add(-30 * day), End: now}, nil
	case PeriodLast90Days:
		return &Range{Start: today.Add(-90 * day), End: now}, nil
	case PeriodLast180Days:
		return &Range{Start: today.Add(-180 * day), End: now}, nil
	case PeriodThisYear:
		return &Range{Start: time.Date(now.Year(), 1, 1, 0, 0, 0, 0, time.UTC), End: now}, nil
	case PeriodCustom:
		return nil, fmt.Errorf("%w: custom-range needs startDate and endDate", ErrInvalidFilter)
	default:
		return nil, fmt.Errorf("%w: unknown period %q", ErrInvalidFilter, f.Period)
	}
}

func (f Filter) custom() (*Range, error) {
	if f.Start == "" || f.End == "" {
		return nil, fmt.Errorf("%w: startDate and endDate must be given together", ErrInvalidFilter)
	}
	start, err := dates.ParseLenient(f.Start)
	if err != nil {
		return nil, fmt.Errorf("%w: startDate: %v", ErrInvalidFilter, err)
	}
	end, err := dates.ParseLenient(f.End)
	if err != nil {
		return nil, fmt.Errorf("%w: endDate: %v", ErrInvalidFilter, err)
	}
	start, end = dates.StartOfDay(start), dates.EndOfDay(end)
	if end.Before(start) {
		return nil, fmt.Errorf("%w: endDate is before startDate", ErrInvalidFilter)
	}
	return &Range{Start: start, End: end}, nil
}

func describe(f Filter, r *Range) DateRange {
	if r == nil {
		return DateRange{Period: string(PeriodAllTime), Start: allTimeLabel, End: allTimeLabel}
	}
	period := string(f.Period)
	if f.Start != "" {
		period = string(PeriodCustom)
	}
	return DateRange{Period: period, Start: dates.FormatISO(r.Start), End: dates.FormatISO(r.End)}
}

// FilterChurns keeps records whose primary churn date falls in r. Undated
// or unparsable records are dropped whenever a window is set.
func FilterChurns(churns []records.ChurnRecord, r *Range) []records.ChurnRecord {
	if r == nil {
		return churns
	}
	out := make([]records.ChurnRecord, 0, len(churns))
	for _, churn := range churns {
		if inRange(churn.PrimaryChurnDate, r) {
			out = append(out, churn)
		}
	}
	return out
}

func FilterReactivations(reactivations []records.ReactivationRecord, r *Range) []records.ReactivationRecord {
	if r == nil {
		return reactivations
	}
	out := make([]records.ReactivationRecord, 0, len(reactivations))
	for _, reactivation := range reactivations {
		if inRange(reactivation.ReactivationDate, r) {
			out = append(out, reactivation)
		}
	}
	return out
}

func inRange(value string, r *Range) bool {
	if value == "" {
		return false
	}
	t, err := dates.ParseLenient(value)
	if err != nil {
		return false
	}
	return r.Contains(t)
}
