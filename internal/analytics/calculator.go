package analytics

import (
	"math"

	"churn-insights/internal/dates"
	"churn-insights/internal/observe"
	"churn-insights/internal/records"
)

const calculatorComponent = "reactivation_calculator"

// ReactivationMetrics is the one latency and rate figure every view reports.
// ParseErrorCount and DataQualitySkips never overlap: a reactivation dated on
// or before its churn parsed fine and is only a skip.
type ReactivationMetrics struct {
	TotalReactivations        int     `json:"totalReactivations"`
	AverageDaysToReactivation int     `json:"averageDaysToReactivation"`
	ReactivationRate          float64 `json:"reactivationRate"`
	ValidCount                int     `json:"validCount"`
	ParseErrorCount           int     `json:"parseErrorCount"`
	DataQualitySkips          int     `json:"dataQualitySkips"`
}

// CalculateReactivationMetrics measures latency from the churn date recorded
// on each reactivation row, not from the churn sheet.
func CalculateReactivationMetrics(reactivations []records.ReactivationRecord, totalChurns int, sink observe.Sink) ReactivationMetrics {
	if sink == nil {
		sink = observe.Discard
	}
	metrics := ReactivationMetrics{TotalReactivations: len(reactivations)}
	daysSum := 0

	for row, reactivation := range reactivations {
		if reactivation.ChurnDate == "" || reactivation.ReactivationDate == "" {
			continue
		}
		churnedAt, err := dates.Parse(reactivation.ChurnDate)
		if err != nil {
			metrics.ParseErrorCount++
			sink.Record(calculatorParseEvent(records.FieldChurnDate, reactivation.ChurnDate, row, err))
			continue
		}
		returnedAt, err := dates.Parse(reactivation.ReactivationDate)
		if err != nil {
			metrics.ParseErrorCount++
			sink.Record(calculatorParseEvent(records.FieldReactivationDate, reactivation.ReactivationDate, row, err))
			continue
		}
		days := dates.DaysBetween(churnedAt, returnedAt)
		if days <= 0 {
			metrics.DataQualitySkips++
			sink.Record(observe.Event{
				Kind:      observe.KindDataQualitySkip,
				Component: calculatorComponent,
				Field:     "daysToReactivate",
				Value:     reactivation.ID,
				Row:       row,
				Detail:    "reactivation not after churn",
			})
			continue
		}
		metrics.ValidCount++
		daysSum += days
	}

	metrics.AverageDaysToReactivation = int(math.Round(average(float64(daysSum), metrics.ValidCount)))
	if totalChurns > 0 {
		metrics.ReactivationRate = percentage(metrics.ValidCount, totalChurns)
	}
	return metrics
}

func calculatorParseEvent(field records.Field, value string, row int, err error) observe.Event {
	return observe.Event{
		Kind:      observe.KindDateParseError,
		Component: calculatorComponent,
		Field:     string(field),
		Value:     value,
		Row:       row,
		Detail:    err.Error(),
	}
}
