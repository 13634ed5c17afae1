package analytics

import (
	"churn-insights/internal/dates"
	"churn-insights/internal/observe"
	"churn-insights/internal/records"
)

type monthTotals struct {
	count int
	mrr   float64
}

func AnalyzeReactivations(reactivations []records.ReactivationRecord, sink observe.Sink) ReactivationAnalysis {
	if sink == nil {
		sink = observe.Discard
	}
	total := len(reactivations)
	reasons := newTally()
	paths := newTally()
	months := map[string]*monthTotals{}
	var totalMRR float64

	for row, reactivation := range reactivations {
		totalMRR += reactivation.MRR
		reason := reactivation.ReactivationReason
		if reason == "" {
			reason = records.Unknown
		}
		reasons.add(reason)
		path := reactivation.CustomerSuccessPath
		if path == "" {
			path = records.Unknown
		}
		paths.add(path)

		if reactivation.ReactivationDate == "" {
			continue
		}
		returnedAt, err := dates.Parse(reactivation.ReactivationDate)
		if err != nil {
			sink.Record(observe.Event{
				Kind:      observe.KindDateParseError,
				Component: component,
				Field:     string(records.FieldReactivationDate),
				Value:     reactivation.ReactivationDate,
				Row:       row,
				Detail:    err.Error(),
			})
			continue
		}
		key := dates.MonthKey(returnedAt)
		if months[key] == nil {
			months[key] = &monthTotals{}
		}
		months[key].count++
		months[key].mrr += reactivation.MRR
	}

	monthly := make([]MonthlyReactivations, 0, len(months))
	for _, key := range sortedMonths(months) {
		monthly = append(monthly, MonthlyReactivations{Month: key, Count: months[key].count, MRR: months[key].mrr})
	}
	return ReactivationAnalysis{
		TotalReactivations:     total,
		TotalMRRRecovered:      totalMRR,
		AverageMRR:             average(totalMRR, total),
		TopReactivationReasons: top(reasons.distribution(total), topCategoryLimit),
		ReactivationsByCSPath:  paths.distribution(total),
		MonthlyReactivations:   monthly,
	}
}

// MergeMonthlyTrend returns the churn trend with reactivation counts filled
// in. Months that only saw reactivations are added with zero churns.
func MergeMonthlyTrend(trend []MonthlyTrendData, monthly []MonthlyReactivations) []MonthlyTrendData {
	merged := make(map[string]MonthlyTrendData, len(trend)+len(monthly))
	for _, entry := range trend {
		merged[entry.Month] = MonthlyTrendData{Month: entry.Month, Churns: entry.Churns}
	}
	for _, entry := range monthly {
		current := merged[entry.Month]
		current.Month = entry.Month
		current.Reactivations += entry.Count
		merged[entry.Month] = current
	}
	out := make([]MonthlyTrendData, 0, len(merged))
	for _, key := range sortedMonths(merged) {
		out = append(out, merged[key])
	}
	return out
}
