package analytics

import (
	"sort"
	"time"

	"churn-insights/internal/dates"
	"churn-insights/internal/observe"
	"churn-insights/internal/records"
)

const component = "aggregator"

// Aggregate computes every churn-side metric over records. Records without a
// parseable primary churn date still count toward totals, categories and
// competitors but are left out of the monthly series.
func Aggregate(churns []records.ChurnRecord, sink observe.Sink) ChurnAnalysis {
	if sink == nil {
		sink = observe.Discard
	}
	total := len(churns)

	categories := newTally()
	services := newTally()
	feedback := newTally()
	competitors := newCompetitorTally()
	months := map[string]map[string]int{}

	var (
		totalMRR      float64
		lifetimeSum   int
		lifetimeCount int
		feedbackCount int
		undated       int
	)

	for row, churn := range churns {
		totalMRR += churn.MRRValue()
		category := churn.ChurnCategory
		if category == "" {
			category = records.DefaultCategory
		}
		categories.add(category)

		service := churn.ServiceCategory
		if service == "" {
			service = records.Unknown
		}
		services.add(service)

		if theme := ClassifyFeedback(churn.Feedback); theme != "" {
			feedback.add(theme)
			feedbackCount++
		}
		if churn.Competitor != "" {
			competitors.add(churn)
		}
		if churn.MonthsBeforeChurn != nil {
			lifetimeSum += *churn.MonthsBeforeChurn
			lifetimeCount++
		}

		churnedAt, ok := primaryChurnDate(churn, row, sink)
		if !ok {
			undated++
			continue
		}
		key := dates.MonthKey(churnedAt)
		if months[key] == nil {
			months[key] = map[string]int{}
		}
		months[key][category]++
	}

	churnCategories := categories.distribution(total)
	analysis := ChurnAnalysis{
		TotalChurns:              total,
		TotalMRRLost:             totalMRR,
		AverageMRRPerChurn:       average(totalMRR, total),
		AverageMonthsBeforeChurn: round1(average(float64(lifetimeSum), lifetimeCount)),
		TopChurnCategories:       top(churnCategories, topCategoryLimit),
		ChurnCategories:          churnCategories,
		TopServiceCategories:     top(services.distribution(total), topCategoryLimit),
		ClientFeedbackCategories: feedback.distribution(feedbackCount),
		FeedbackCount:            feedbackCount,
		CompetitorAnalysis:       competitors.result(),
		UndatedRecords:           undated,
	}
	analysis.ChartCategories = chartCategoryNames(churnCategories)
	analysis.MonthlyTrend = monthlyTrend(months)
	analysis.MonthlyChurnByCategory = monthlyByCategory(months, analysis.ChartCategories)
	return analysis
}

func primaryChurnDate(churn records.ChurnRecord, row int, sink observe.Sink) (time.Time, bool) {
	if churn.PrimaryChurnDate == "" {
		return time.Time{}, false
	}
	t, err := dates.Parse(churn.PrimaryChurnDate)
	if err != nil {
		sink.Record(observe.Event{
			Kind:      observe.KindDateParseError,
			Component: component,
			Field:     "primaryChurnDate",
			Value:     churn.PrimaryChurnDate,
			Row:       row,
			Detail:    err.Error(),
		})
		return time.Time{}, false
	}
	return t, true
}

func chartCategoryNames(distribution []CategoryCount) []string {
	names := make([]string, 0, chartCategories)
	for _, entry := range top(distribution, chartCategories) {
		names = append(names, entry.Category)
	}
	return names
}

func sortedMonths[V any](months map[string]V) []string {
	keys := make([]string, 0, len(months))
	for key := range months {
		keys = append(keys, key)
	}
	// YYYY-MM keys are zero padded, so string order is calendar order.
	sort.Strings(keys)
	return keys
}

func monthlyTrend(months map[string]map[string]int) []MonthlyTrendData {
	out := make([]MonthlyTrendData, 0, len(months))
	for _, key := range sortedMonths(months) {
		churns := 0
		for _, count := range months[key] {
			churns += count
		}
		out = append(out, MonthlyTrendData{Month: key, Churns: churns})
	}
	return out
}

func monthlyByCategory(months map[string]map[string]int, chart []string) []MonthlyCategoryRow {
	inChart := make(map[string]bool, len(chart))
	for _, name := range chart {
		inChart[name] = true
	}
	out := make([]MonthlyCategoryRow, 0, len(months))
	for _, key := range sortedMonths(months) {
		row := MonthlyCategoryRow{Month: key, Counts: make(map[string]int, len(chart))}
		for _, name := range chart {
			row.Counts[name] = months[key][name]
		}
		for category, count := range months[key] {
			if !inChart[category] {
				row.Other += count
			}
		}
		out = append(out, row)
	}
	return out
}

type competitorTally struct {
	order  []string
	totals map[string]*competitorTotals
}

type competitorTotals struct {
	count      int
	totalMRR   float64
	totalPrice float64
}

func newCompetitorTally() *competitorTally {
	return &competitorTally{totals: map[string]*competitorTotals{}}
}

func (c *competitorTally) add(churn records.ChurnRecord) {
	entry, ok := c.totals[churn.Competitor]
	if !ok {
		entry = &competitorTotals{}
		c.totals[churn.Competitor] = entry
		c.order = append(c.order, churn.Competitor)
	}
	entry.count++
	entry.totalMRR += churn.MRRValue()
	entry.totalPrice += churn.PriceValue()
}

func (c *competitorTally) result() []CompetitorData {
	out := make([]CompetitorData, 0, len(c.order))
	for _, name := range c.order {
		entry := c.totals[name]
		out = append(out, CompetitorData{
			Competitor:   name,
			Count:        entry.count,
			TotalMRR:     entry.totalMRR,
			AveragePrice: average(entry.totalPrice, entry.count),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Competitor < out[j].Competitor
	})
	return out
}
