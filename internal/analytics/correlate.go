package analytics

import (
	"fmt"
	"sort"

	"churn-insights/internal/matching"
	"churn-insights/internal/records"
)

type correlationTotals struct {
	total     int
	customers map[string]bool
	pairs     int
	days      int
}

// Correlate reports, per churn category, the share of churned customers that
// came back and how long it took them. Pairs whose category has no churn
// records (including Unknown) are left out because their rate has no base.
// The rate counts each churned customer once however many times they came
// back; the average covers every pair.
func Correlate(churns []records.ChurnRecord, pairs []matching.MatchedPair) []ReactivationCorrelation {
	order := []string{}
	totals := map[string]*correlationTotals{}
	for _, churn := range churns {
		category := churn.ChurnCategory
		if category == "" {
			category = records.DefaultCategory
		}
		if totals[category] == nil {
			totals[category] = &correlationTotals{customers: map[string]bool{}}
			order = append(order, category)
		}
		totals[category].total++
	}
	for idx, pair := range pairs {
		entry, ok := totals[pair.ChurnCategory]
		if !ok {
			continue
		}
		entry.customers[customerKey(pair, idx)] = true
		entry.pairs++
		entry.days += pair.DaysToReactivate
	}

	out := make([]ReactivationCorrelation, 0, len(order))
	for _, category := range order {
		entry := totals[category]
		out = append(out, ReactivationCorrelation{
			ChurnCategory:             category,
			ReactivationRate:          percentage(min(len(entry.customers), entry.total), entry.total),
			AverageDaysToReactivation: round1(average(float64(entry.days), entry.pairs)),
			TotalCount:                entry.total,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ReactivationRate != out[j].ReactivationRate {
			return out[i].ReactivationRate > out[j].ReactivationRate
		}
		return out[i].ChurnCategory < out[j].ChurnCategory
	})
	return out
}

// customerKey identifies the churned customer behind a pair: the churn id,
// then the normalized client name. Pairs with neither count on their own.
func customerKey(pair matching.MatchedPair, idx int) string {
	if pair.ChurnID != "" {
		return "id:" + pair.ChurnID
	}
	if name := records.NormalizeName(pair.ClientName); name != "" {
		return "name:" + name
	}
	return fmt.Sprintf("pair:%d", idx)
}
