package analytics

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"churn-insights/internal/matching"
	"churn-insights/internal/observe"
	"churn-insights/internal/records"
)

type countingSink map[observe.Kind]int

func (c countingSink) Record(event observe.Event) { c[event.Kind]++ }

func floatEqual(a, b float64) bool {
	return math.Abs(a-b) < 0.0001
}

func money(v float64) *float64 { return &v }

func lifetime(v int) *int { return &v }

func TestAggregateEmpty(t *testing.T) {
	analysis := Aggregate(nil, nil)
	if analysis.TotalChurns != 0 || analysis.TotalMRRLost != 0 || analysis.AverageMRRPerChurn != 0 {
		t.Fatalf("expected zero totals, got %+v", analysis)
	}
	if analysis.AverageMonthsBeforeChurn != 0 || analysis.FeedbackCount != 0 {
		t.Fatalf("expected zero averages, got %+v", analysis)
	}
	payload, err := json.Marshal(analysis)
	if err != nil {
		t.Fatalf("marshal empty analysis: %v", err)
	}
	text := string(payload)
	if strings.Contains(text, "NaN") || strings.Contains(text, "Inf") || strings.Contains(text, "null") {
		t.Fatalf("unexpected empty analysis payload: %s", text)
	}
}

func TestAggregateCategoryPercentages(t *testing.T) {
	churns := make([]records.ChurnRecord, 0, 12)
	for i := 0; i < 3; i++ {
		churns = append(churns, records.ChurnRecord{ChurnCategory: "Pricing"})
	}
	for i := 0; i < 5; i++ {
		churns = append(churns, records.ChurnRecord{ChurnCategory: "Support"})
	}
	for i := 0; i < 4; i++ {
		churns = append(churns, records.ChurnRecord{ChurnCategory: "Product"})
	}
	analysis := Aggregate(churns, nil)

	var pricing *CategoryCount
	sum := 0.0
	for i := range analysis.ChurnCategories {
		sum += analysis.ChurnCategories[i].Percentage
		if analysis.ChurnCategories[i].Category == "Pricing" {
			pricing = &analysis.ChurnCategories[i]
		}
	}
	if pricing == nil || pricing.Count != 3 || !floatEqual(pricing.Percentage, 25.0) {
		t.Fatalf("unexpected pricing count: %+v", pricing)
	}
	if !floatEqual(sum, 100) {
		t.Fatalf("expected percentages to sum to 100, got %.4f", sum)
	}
	if analysis.ChurnCategories[0].Category != "Support" || analysis.ChurnCategories[2].Category != "Pricing" {
		t.Fatalf("expected descending order, got %+v", analysis.ChurnCategories)
	}
}

func TestAggregateTopCategoriesCapped(t *testing.T) {
	var churns []records.ChurnRecord
	for i := 0; i < 12; i++ {
		churns = append(churns, records.ChurnRecord{ChurnCategory: string(rune('A' + i))})
	}
	analysis := Aggregate(churns, nil)
	if len(analysis.TopChurnCategories) != 10 || len(analysis.ChurnCategories) != 12 {
		t.Fatalf("expected top 10 of 12, got %d/%d", len(analysis.TopChurnCategories), len(analysis.ChurnCategories))
	}
	if len(analysis.ChartCategories) != 5 || analysis.ChartCategories[0] != "A" {
		t.Fatalf("unexpected chart categories: %v", analysis.ChartCategories)
	}
}

func TestAggregateFeedbackDenominator(t *testing.T) {
	churns := []records.ChurnRecord{
		{Feedback: "Billing was always wrong"},
		{Feedback: "Too expensive for us"},
		{Feedback: "We just closed the business"},
		{Feedback: "Invoice problems"},
		{},
		{Feedback: "   "},
	}
	analysis := Aggregate(churns, nil)
	if analysis.FeedbackCount != 4 {
		t.Fatalf("expected 4 feedback rows, got %d", analysis.FeedbackCount)
	}
	first := analysis.ClientFeedbackCategories[0]
	if first.Category != "Payment/Billing Issues" || first.Count != 2 || !floatEqual(first.Percentage, 50) {
		t.Fatalf("unexpected feedback bucket: %+v", first)
	}
	found := false
	for _, entry := range analysis.ClientFeedbackCategories {
		if entry.Category == OtherFeedback {
			found = entry.Count == 1
		}
	}
	if !found {
		t.Fatalf("expected one Other Feedback entry: %+v", analysis.ClientFeedbackCategories)
	}
}

func TestClassifyFeedbackFirstThemeWins(t *testing.T) {
	if got := ClassifyFeedback("Support never answered about the billing error"); got != "Payment/Billing Issues" {
		t.Fatalf("expected billing to win, got %q", got)
	}
	if got := ClassifyFeedback(""); got != "" {
		t.Fatalf("expected empty theme, got %q", got)
	}
	if got := ClassifyFeedback("Switched to a cheaper alternative"); got != "Competitor" {
		t.Fatalf("expected competitor theme, got %q", got)
	}
}

func TestAggregateCompetitors(t *testing.T) {
	churns := []records.ChurnRecord{
		{Competitor: "Rival", MRR: money(100), Price: money(50)},
		{Competitor: "Rival", MRR: money(200), Price: money(150)},
		{Competitor: "Other Co", MRR: money(10)},
		{MRR: money(999)},
	}
	analysis := Aggregate(churns, nil)
	if len(analysis.CompetitorAnalysis) != 2 {
		t.Fatalf("expected 2 competitors, got %+v", analysis.CompetitorAnalysis)
	}
	rival := analysis.CompetitorAnalysis[0]
	if rival.Competitor != "Rival" || rival.Count != 2 || !floatEqual(rival.TotalMRR, 300) || !floatEqual(rival.AveragePrice, 100) {
		t.Fatalf("unexpected competitor stats: %+v", rival)
	}
	if !floatEqual(analysis.TotalMRRLost, 1309) {
		t.Fatalf("expected total MRR 1309, got %.2f", analysis.TotalMRRLost)
	}
}

func TestAggregateMonthlySeries(t *testing.T) {
	sink := countingSink{}
	churns := []records.ChurnRecord{
		{ChurnCategory: "A", PrimaryChurnDate: "2024-02-03", MonthsBeforeChurn: lifetime(4)},
		{ChurnCategory: "A", PrimaryChurnDate: "2024-01-15", MonthsBeforeChurn: lifetime(7)},
		{ChurnCategory: "B", PrimaryChurnDate: "01/20/2024"},
		{ChurnCategory: "C", PrimaryChurnDate: "2024-01-21"},
		{ChurnCategory: "D", PrimaryChurnDate: "2024-01-22"},
		{ChurnCategory: "E", PrimaryChurnDate: "2024-01-23"},
		{ChurnCategory: "F", PrimaryChurnDate: "2024-01-24"},
		{ChurnCategory: "A", PrimaryChurnDate: "not a date"},
		{ChurnCategory: "B"},
	}
	analysis := Aggregate(churns, sink)
	if analysis.TotalChurns != 9 || analysis.UndatedRecords != 2 {
		t.Fatalf("unexpected totals: %d churns, %d undated", analysis.TotalChurns, analysis.UndatedRecords)
	}
	if sink[observe.KindDateParseError] != 1 {
		t.Fatalf("expected one parse event, got %v", sink)
	}
	if len(analysis.MonthlyTrend) != 2 || analysis.MonthlyTrend[0].Month != "2024-01" || analysis.MonthlyTrend[0].Churns != 6 {
		t.Fatalf("unexpected monthly trend: %+v", analysis.MonthlyTrend)
	}
	rows := analysis.MonthlyChurnByCategory
	if len(rows) != 2 {
		t.Fatalf("expected 2 category rows, got %+v", rows)
	}
	// Chart categories are A, B, C, D, E; F falls into Other.
	if rows[0].Counts["A"] != 1 || rows[0].Counts["B"] != 1 || rows[0].Other != 1 {
		t.Fatalf("unexpected january row: %+v", rows[0])
	}
	if rows[1].Other != 0 || rows[1].Counts["A"] != 1 {
		t.Fatalf("unexpected february row: %+v", rows[1])
	}
	if !floatEqual(analysis.AverageMonthsBeforeChurn, 5.5) {
		t.Fatalf("expected 5.5 month lifetime, got %.2f", analysis.AverageMonthsBeforeChurn)
	}
}

func TestCalculateReactivationMetricsEmpty(t *testing.T) {
	metrics := CalculateReactivationMetrics(nil, 40, nil)
	if metrics.AverageDaysToReactivation != 0 || metrics.ReactivationRate != 0 {
		t.Fatalf("expected zero metrics, got %+v", metrics)
	}
	reactivations := []records.ReactivationRecord{{ChurnDate: "2024-01-01", ReactivationDate: "2024-01-31"}}
	metrics = CalculateReactivationMetrics(reactivations, 0, nil)
	if metrics.ReactivationRate != 0 || metrics.ValidCount != 1 {
		t.Fatalf("expected zero rate with zero churns, got %+v", metrics)
	}
}

func TestCalculateReactivationMetricsSeparatesSkipsFromParseErrors(t *testing.T) {
	sink := countingSink{}
	reactivations := []records.ReactivationRecord{
		{ID: "1", ChurnDate: "2024-01-01", ReactivationDate: "2024-01-11"},
		{ID: "2", ChurnDate: "2024-01-01", ReactivationDate: "2024-01-22"},
		{ID: "3", ChurnDate: "2024-02-10", ReactivationDate: "2024-02-01"},
		{ID: "4", ChurnDate: "2024-02-10", ReactivationDate: "2024-02-10"},
		{ID: "5", ChurnDate: "yesterday-ish", ReactivationDate: "2024-02-10"},
		{ID: "6", ReactivationDate: "2024-02-10"},
	}
	metrics := CalculateReactivationMetrics(reactivations, 8, sink)
	if metrics.TotalReactivations != 6 || metrics.ValidCount != 2 {
		t.Fatalf("unexpected counts: %+v", metrics)
	}
	if metrics.ParseErrorCount != 1 || metrics.DataQualitySkips != 2 {
		t.Fatalf("parse errors and skips must stay distinct: %+v", metrics)
	}
	// (10 + 21) / 2 = 15.5, rounded half away from zero.
	if metrics.AverageDaysToReactivation != 16 {
		t.Fatalf("expected 16 average days, got %d", metrics.AverageDaysToReactivation)
	}
	if !floatEqual(metrics.ReactivationRate, 25) {
		t.Fatalf("expected 25%% rate, got %.2f", metrics.ReactivationRate)
	}
	if sink[observe.KindDateParseError] != 1 || sink[observe.KindDataQualitySkip] != 2 {
		t.Fatalf("unexpected events: %v", sink)
	}
}

func TestCalculatorAgreesWithMatcher(t *testing.T) {
	reactivations := []records.ReactivationRecord{
		{ID: "1", ChurnDate: "2024-01-01", ReactivationDate: "2024-01-11"},
		{ID: "2", ChurnDate: "2024-01-05", ReactivationDate: "2024-01-01"},
		{ID: "3", ChurnDate: "bad", ReactivationDate: "2024-01-01"},
		{ID: "4", ChurnDate: "3/1/2024", ReactivationDate: "2024-03-20"},
	}
	pairs := matching.Match(nil, reactivations, nil)
	metrics := CalculateReactivationMetrics(reactivations, 10, nil)
	if len(pairs) != metrics.ValidCount {
		t.Fatalf("matcher produced %d pairs, calculator counted %d", len(pairs), metrics.ValidCount)
	}
}

func TestAnalyzeReactivations(t *testing.T) {
	reactivations := []records.ReactivationRecord{
		{ReactivationDate: "2024-03-02", MRR: 100, ReactivationReason: "Discount", CustomerSuccessPath: "Outbound"},
		{ReactivationDate: "2024-03-20", MRR: 50, ReactivationReason: "Discount", CustomerSuccessPath: "Inbound"},
		{ReactivationDate: "2024-01-05", MRR: 30, ReactivationReason: "New feature"},
		{ReactivationDate: "garbage", MRR: 20, ReactivationReason: "Discount", CustomerSuccessPath: "Outbound"},
	}
	analysis := AnalyzeReactivations(reactivations, nil)
	if analysis.TotalReactivations != 4 || !floatEqual(analysis.TotalMRRRecovered, 200) || !floatEqual(analysis.AverageMRR, 50) {
		t.Fatalf("unexpected totals: %+v", analysis)
	}
	if analysis.TopReactivationReasons[0].Category != "Discount" || !floatEqual(analysis.TopReactivationReasons[0].Percentage, 75) {
		t.Fatalf("unexpected reasons: %+v", analysis.TopReactivationReasons)
	}
	if len(analysis.ReactivationsByCSPath) != 3 {
		t.Fatalf("expected Unknown path bucket, got %+v", analysis.ReactivationsByCSPath)
	}
	monthly := analysis.MonthlyReactivations
	if len(monthly) != 2 || monthly[0].Month != "2024-01" || monthly[1].Count != 2 || !floatEqual(monthly[1].MRR, 150) {
		t.Fatalf("unexpected monthly reactivations: %+v", monthly)
	}
}

func TestMergeMonthlyTrend(t *testing.T) {
	trend := []MonthlyTrendData{{Month: "2024-01", Churns: 4}, {Month: "2024-03", Churns: 1}}
	monthly := []MonthlyReactivations{{Month: "2024-02", Count: 2}, {Month: "2024-03", Count: 5}}
	merged := MergeMonthlyTrend(trend, monthly)
	if len(merged) != 3 {
		t.Fatalf("expected 3 months, got %+v", merged)
	}
	if merged[1].Month != "2024-02" || merged[1].Churns != 0 || merged[1].Reactivations != 2 {
		t.Fatalf("unexpected february: %+v", merged[1])
	}
	if merged[2].Churns != 1 || merged[2].Reactivations != 5 {
		t.Fatalf("unexpected march: %+v", merged[2])
	}
}

func TestCorrelate(t *testing.T) {
	churns := []records.ChurnRecord{
		{ChurnCategory: "Pricing"}, {ChurnCategory: "Pricing"}, {ChurnCategory: "Pricing"}, {ChurnCategory: "Pricing"},
		{ChurnCategory: "Support"}, {ChurnCategory: "Support"},
	}
	pairs := []matching.MatchedPair{
		{ChurnCategory: "Pricing", DaysToReactivate: 10},
		{ChurnCategory: "Support", DaysToReactivate: 30},
		{ChurnCategory: "Support", DaysToReactivate: 45},
		{ChurnCategory: records.Unknown, DaysToReactivate: 5},
	}
	correlations := Correlate(churns, pairs)
	if len(correlations) != 2 {
		t.Fatalf("expected 2 correlations, got %+v", correlations)
	}
	support := correlations[0]
	if support.ChurnCategory != "Support" || !floatEqual(support.ReactivationRate, 100) || !floatEqual(support.AverageDaysToReactivation, 37.5) {
		t.Fatalf("unexpected support correlation: %+v", support)
	}
	pricing := correlations[1]
	if !floatEqual(pricing.ReactivationRate, 25) || pricing.TotalCount != 4 {
		t.Fatalf("unexpected pricing correlation: %+v", pricing)
	}
}

func TestCorrelateCountsCustomersOnce(t *testing.T) {
	churns := []records.ChurnRecord{{ID: "C1", ChurnCategory: "Pricing"}, {ID: "C2", ChurnCategory: "Pricing"}}
	pairs := []matching.MatchedPair{
		{ChurnID: "C1", ClientName: "Acme", ChurnCategory: "Pricing", DaysToReactivate: 20},
		{ChurnID: "C1", ClientName: "Acme", ChurnCategory: "Pricing", DaysToReactivate: 40},
	}
	correlations := Correlate(churns, pairs)
	if len(correlations) != 1 {
		t.Fatalf("expected 1 correlation, got %+v", correlations)
	}
	pricing := correlations[0]
	if !floatEqual(pricing.ReactivationRate, 50) {
		t.Fatalf("expected one of two customers back (50%%), got %.2f", pricing.ReactivationRate)
	}
	if !floatEqual(pricing.AverageDaysToReactivation, 30) || pricing.TotalCount != 2 {
		t.Fatalf("unexpected pricing correlation: %+v", pricing)
	}

	single := Correlate(churns[:1], pairs)
	if !floatEqual(single[0].ReactivationRate, 100) {
		t.Fatalf("rate must not exceed 100, got %.2f", single[0].ReactivationRate)
	}
}

func TestTimeOfDaySurvivesNormalization(t *testing.T) {
	n := records.NewNormalizer(nil, nil, nil)
	row := make([]string, 10)
	row[0] = "C1"
	row[1] = "Acme"
	row[2] = "2024-01-11T08:00:00"
	row[9] = "2024-01-10T20:00:00"
	sameDay := n.Reactivation(row, 0)
	if sameDay.ChurnDate != "2024-01-10T20:00:00Z" || sameDay.ReactivationDate != "2024-01-11T08:00:00Z" {
		t.Fatalf("time of day lost: %+v", sameDay)
	}

	row[2] = "2024-01-13T08:00:00"
	later := n.Reactivation(row, 1)

	sink := countingSink{}
	metrics := CalculateReactivationMetrics([]records.ReactivationRecord{sameDay, later}, 2, sink)
	if metrics.ValidCount != 1 || metrics.DataQualitySkips != 1 || metrics.ParseErrorCount != 0 {
		t.Fatalf("12 hours apart must be a skip: %+v", metrics)
	}
	if metrics.AverageDaysToReactivation != 2 || !floatEqual(metrics.ReactivationRate, 50) {
		t.Fatalf("unexpected metrics: %+v", metrics)
	}
	if pairs := matching.Match(nil, []records.ReactivationRecord{sameDay, later}, observe.Discard); len(pairs) != 1 {
		t.Fatalf("matcher should keep only the later reactivation, got %+v", pairs)
	}
}

func TestCategoryShare(t *testing.T) {
	shares := CategoryShare([]string{"A", "B", "A", "A"})
	if shares[0].Category != "A" || !floatEqual(shares[0].Percentage, 75) {
		t.Fatalf("unexpected shares: %+v", shares)
	}
	if len(CategoryShare(nil)) != 0 {
		t.Fatalf("expected no shares for no labels")
	}
}
