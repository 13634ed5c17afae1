// Package report assembles the analytics views served over HTTP and printed
// by the CLI. Every view is computed from a fresh fetch of both sheets.
package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"churn-insights/internal/analytics"
	"churn-insights/internal/matching"
	"churn-insights/internal/narrative"
	"churn-insights/internal/observe"
	"churn-insights/internal/records"
	"churn-insights/internal/sheets"
)

var (
	// ErrUpstream marks a failed sheet fetch or narrative call. No partial
	// result is returned alongside it.
	ErrUpstream      = errors.New("failed to load analytics")
	ErrInvalidFilter = errors.New("invalid date filter")
	ErrNoData        = errors.New("no data found")
)

type Dependencies struct {
	ChurnSource         sheets.Source
	ReactivationSource  sheets.Source
	ChurnColumns        records.ColumnMap
	ReactivationColumns records.ColumnMap
	// Pinned columns come from explicit configuration and survive header
	// resolution.
	PinnedChurnColumns        records.ColumnMap
	PinnedReactivationColumns records.ColumnMap
	ResolveHeaders            bool
	Narrative                 narrative.Generator
	Logger                    *slog.Logger
	Now                       func() time.Time
}

type Service struct {
	deps Dependencies
}

func NewService(deps Dependencies) *Service {
	if deps.ChurnColumns == nil {
		deps.ChurnColumns = records.DefaultChurnColumns()
	}
	if deps.ReactivationColumns == nil {
		deps.ReactivationColumns = records.DefaultReactivationColumns()
	}
	if deps.Narrative == nil {
		deps.Narrative = narrative.Disabled
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Service{deps: deps}
}

// dataset is one request's worth of normalized records plus the recorder
// that saw every data-quality event raised while building it.
type dataset struct {
	churns        []records.ChurnRecord
	reactivations []records.ReactivationRecord
	quality       *observe.Recorder
}

func (s *Service) load(ctx context.Context) (dataset, error) {
	var churnTable, reactivationTable sheets.Table
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		table, err := s.deps.ChurnSource.Fetch(gctx)
		if err != nil {
			return fmt.Errorf("%w: churn sheet %s: %w", ErrUpstream, s.deps.ChurnSource.Name(), err)
		}
		churnTable = table
		return nil
	})
	g.Go(func() error {
		table, err := s.deps.ReactivationSource.Fetch(gctx)
		if err != nil {
			return fmt.Errorf("%w: reactivation sheet %s: %w", ErrUpstream, s.deps.ReactivationSource.Name(), err)
		}
		reactivationTable = table
		return nil
	})
	if err := g.Wait(); err != nil {
		return dataset{}, err
	}

	churnCols, reactCols := s.deps.ChurnColumns, s.deps.ReactivationColumns
	if s.deps.ResolveHeaders {
		churnCols = records.ResolveHeaders(churnTable.Header, records.DefaultChurnAliases(), churnCols).
			Merge(s.deps.PinnedChurnColumns)
		reactCols = records.ResolveHeaders(reactivationTable.Header, records.DefaultReactivationAliases(), reactCols).
			Merge(s.deps.PinnedReactivationColumns)
	}
	quality := observe.NewRecorder(s.deps.Logger.With("component", "data_quality"))
	normalizer := records.NewNormalizer(churnCols, reactCols, quality)
	data := dataset{
		churns:        normalizer.ChurnRows(churnTable.Rows),
		reactivations: normalizer.ReactivationRows(reactivationTable.Rows),
		quality:       quality,
	}
	s.deps.Logger.DebugContext(ctx, "sheets loaded",
		"churn_rows", len(churnTable.Rows),
		"churn_records", len(data.churns),
		"reactivation_rows", len(reactivationTable.Rows),
		"reactivation_records", len(data.reactivations),
	)
	return data, nil
}

func (s *Service) generate(ctx context.Context, prompt string) (string, error) {
	text, err := s.deps.Narrative.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("%w: narrative: %w", ErrUpstream, err)
	}
	return text, nil
}

func (s *Service) logMetrics(ctx context.Context, view string, metrics analytics.ReactivationMetrics, quality *observe.Recorder) {
	summary := quality.Summary()
	s.deps.Logger.InfoContext(ctx, "reactivation metrics calculated",
		"view", view,
		"total_reactivations", metrics.TotalReactivations,
		"valid", metrics.ValidCount,
		"average_days", metrics.AverageDaysToReactivation,
		"rate", fmt.Sprintf("%.1f%%", metrics.ReactivationRate),
		"parse_errors", metrics.ParseErrorCount,
		"data_quality_skips", metrics.DataQualitySkips,
		"unmatched", summary.Unmatched,
	)
}

// ChurnData is the churn dashboard payload; the monthly trend carries
// reactivation counts from the reactivation sheet.
func (s *Service) ChurnData(ctx context.Context) (analytics.ChurnAnalysis, error) {
	data, err := s.load(ctx)
	if err != nil {
		return analytics.ChurnAnalysis{}, err
	}
	if len(data.churns) == 0 {
		return analytics.ChurnAnalysis{}, fmt.Errorf("%w: churn sheet is empty", ErrNoData)
	}
	analysis := analytics.Aggregate(data.churns, data.quality)
	reactivations := analytics.AnalyzeReactivations(data.reactivations, data.quality)
	analysis.MonthlyTrend = analytics.MergeMonthlyTrend(analysis.MonthlyTrend, reactivations.MonthlyReactivations)
	return analysis, nil
}

func (s *Service) ChurnRecords(ctx context.Context) ([]records.ChurnRecord, error) {
	data, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return data.churns, nil
}

func (s *Service) Reactivations(ctx context.Context) (analytics.ReactivationAnalysis, error) {
	data, err := s.load(ctx)
	if err != nil {
		return analytics.ReactivationAnalysis{}, err
	}
	if len(data.reactivations) == 0 {
		return analytics.ReactivationAnalysis{}, fmt.Errorf("%w: reactivation sheet is empty", ErrNoData)
	}
	return analytics.AnalyzeReactivations(data.reactivations, data.quality), nil
}

const notAvailable = "N/A"

type Summary struct {
	TotalChurns             int     `json:"totalChurns"`
	AverageReactivationDays int     `json:"averageReactivationDays"`
	ReactivationRate        float64 `json:"reactivationRate"`
	TopChurnCategory        string  `json:"topChurnCategory"`
	TopChurnCategoryCount   int     `json:"topChurnCategoryCount"`
	TopCompetitor           string  `json:"topCompetitor"`
	TopCompetitorMRR        float64 `json:"topCompetitorMRR"`
}

func (s *Service) Summary(ctx context.Context) (Summary, error) {
	data, err := s.load(ctx)
	if err != nil {
		return Summary{}, err
	}
	analysis := analytics.Aggregate(data.churns, data.quality)
	metrics := analytics.CalculateReactivationMetrics(data.reactivations, len(data.churns), data.quality)
	s.logMetrics(ctx, "summary", metrics, data.quality)

	summary := Summary{
		TotalChurns:             analysis.TotalChurns,
		AverageReactivationDays: metrics.AverageDaysToReactivation,
		ReactivationRate:        metrics.ReactivationRate,
		TopChurnCategory:        notAvailable,
		TopCompetitor:           notAvailable,
	}
	if len(analysis.TopChurnCategories) > 0 {
		summary.TopChurnCategory = analysis.TopChurnCategories[0].Category
		summary.TopChurnCategoryCount = analysis.TopChurnCategories[0].Count
	}
	if len(analysis.CompetitorAnalysis) > 0 {
		summary.TopCompetitor = analysis.CompetitorAnalysis[0].Competitor
		summary.TopCompetitorMRR = analysis.CompetitorAnalysis[0].TotalMRR
	}
	return summary, nil
}

type CrossAnalysis struct {
	TotalChurns                  int                                 `json:"totalChurns"`
	TotalReactivations           int                                 `json:"totalReactivations"`
	ReactivatedFromChurns        int                                 `json:"reactivatedFromChurns"`
	ReactivationRate             float64                             `json:"reactivationRate"`
	AverageDaysToReactivation    int                                 `json:"averageDaysToReactivation"`
	Metrics                      analytics.ReactivationMetrics       `json:"metrics"`
	MatchedClients               []matching.MatchedPair              `json:"matchedClients"`
	ChurnsByCategory             []analytics.CategoryCount           `json:"churnsByCategory"`
	ReactivationsByChurnCategory []analytics.CategoryCount           `json:"reactivationsByChurnCategory"`
	Correlations                 []analytics.ReactivationCorrelation `json:"reactivationCorrelations"`
}

type Report struct {
	GeneratedAt          time.Time                      `json:"generatedAt"`
	DateRange            DateRange                      `json:"dateRange"`
	ChurnAnalysis        analytics.ChurnAnalysis        `json:"churnAnalysis"`
	ReactivationAnalysis analytics.ReactivationAnalysis `json:"reactivationAnalysis"`
	CrossAnalysis        CrossAnalysis                  `json:"crossAnalysis"`
	AIInsights           string                         `json:"aiInsights"`
	DataQuality          observe.Summary                `json:"dataQuality"`
}

type Options struct {
	Filter        Filter
	SkipNarrative bool
}

// Build produces the monthly report: both analyses over the filtered
// records, the cross analysis and, unless skipped, the narrative.
func (s *Service) Build(ctx context.Context, opts Options) (Report, error) {
	now := s.deps.Now()
	window, err := opts.Filter.Resolve(now)
	if err != nil {
		return Report{}, err
	}
	data, err := s.load(ctx)
	if err != nil {
		return Report{}, err
	}

	churns := FilterChurns(data.churns, window)
	reactivations := FilterReactivations(data.reactivations, window)

	churnAnalysis := analytics.Aggregate(churns, data.quality)
	reactivationAnalysis := analytics.AnalyzeReactivations(reactivations, data.quality)
	churnAnalysis.MonthlyTrend = analytics.MergeMonthlyTrend(churnAnalysis.MonthlyTrend, reactivationAnalysis.MonthlyReactivations)

	metrics := analytics.CalculateReactivationMetrics(reactivations, len(churns), data.quality)
	pairs := matching.Match(churns, reactivations, data.quality)
	categories := make([]string, 0, len(pairs))
	for _, pair := range pairs {
		categories = append(categories, pair.ChurnCategory)
	}
	correlations := analytics.Correlate(churns, pairs)

	report := Report{
		GeneratedAt:          now.UTC(),
		DateRange:            describe(opts.Filter, window),
		ChurnAnalysis:        churnAnalysis,
		ReactivationAnalysis: reactivationAnalysis,
		CrossAnalysis: CrossAnalysis{
			TotalChurns:                  len(churns),
			TotalReactivations:           len(reactivations),
			ReactivatedFromChurns:        metrics.ValidCount,
			ReactivationRate:             metrics.ReactivationRate,
			AverageDaysToReactivation:    metrics.AverageDaysToReactivation,
			Metrics:                      metrics,
			MatchedClients:               matching.SortByElapsed(pairs),
			ChurnsByCategory:             churnAnalysis.TopChurnCategories,
			ReactivationsByChurnCategory: analytics.CategoryShare(categories),
			Correlations:                 correlations,
		},
	}
	s.logMetrics(ctx, "report", metrics, data.quality)

	if !opts.SkipNarrative {
		prompt, err := narrative.ChurnPrompt(narrativeInput(churnAnalysis, metrics, correlations))
		if err != nil {
			return Report{}, err
		}
		report.AIInsights, err = s.generate(ctx, prompt)
		if err != nil {
			return Report{}, err
		}
	}
	report.DataQuality = data.quality.Summary()
	return report, nil
}

func narrativeInput(analysis analytics.ChurnAnalysis, metrics analytics.ReactivationMetrics, correlations []analytics.ReactivationCorrelation) narrative.Input {
	return narrative.Input{
		TotalChurns:               analysis.TotalChurns,
		AverageDaysToReactivation: metrics.AverageDaysToReactivation,
		ReactivationRate:          metrics.ReactivationRate,
		TopChurnCategories:        analysis.TopChurnCategories,
		TopServiceCategories:      analysis.TopServiceCategories,
		CompetitorAnalysis:        analysis.CompetitorAnalysis,
		ReactivationCorrelations:  correlations,
	}
}

// Insights is the churn narrative over the unfiltered data set.
func (s *Service) Insights(ctx context.Context) (string, error) {
	report, err := s.Build(ctx, Options{})
	if err != nil {
		return "", err
	}
	return report.AIInsights, nil
}

type FeedbackInsights struct {
	Insights      string `json:"insights"`
	FeedbackCount int    `json:"feedbackCount"`
}

func (s *Service) ProductFeedback(ctx context.Context) (FeedbackInsights, error) {
	data, err := s.load(ctx)
	if err != nil {
		return FeedbackInsights{}, err
	}
	var lines []narrative.FeedbackLine
	for _, churn := range data.churns {
		text := strings.TrimSpace(churn.Feedback)
		if text == "" {
			continue
		}
		lines = append(lines, narrative.FeedbackLine{Category: churn.ChurnCategory, Text: text})
	}
	if len(lines) == 0 {
		return FeedbackInsights{Insights: narrative.NoFeedbackMessage}, nil
	}
	prompt, err := narrative.FeedbackPrompt(lines)
	if err != nil {
		return FeedbackInsights{}, err
	}
	text, err := s.generate(ctx, prompt)
	if err != nil {
		return FeedbackInsights{}, err
	}
	return FeedbackInsights{Insights: text, FeedbackCount: len(lines)}, nil
}
