package cli

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"churn-insights/internal/report"
	"churn-insights/internal/store"
)

const defaultTopN = 10

type reportOptions struct {
	period     string
	start      string
	end        string
	jsonOut    string
	matchesOut string
	topN       int
	noAI       bool
	db         bool
	dbSchema   string
	dbTag      string
}

func newReportCommand(root *rootOptions) *cobra.Command {
	opts := &reportOptions{}
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Build the churn and reactivation report",
		Example: `  churn-insights report --period last-month
  churn-insights report --start 2024-01-01 --end 2024-03-31 --json report.json
  churn-insights report --no-ai --db --db-tag weekly`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runReport(cmd, root, opts)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&opts.period, "period", string(report.PeriodAllTime), "Preset window (today, last-week, last-month, last-90-days, this-year, ...)")
	flags.StringVar(&opts.start, "start", "", "Custom window start date; requires --end")
	flags.StringVar(&opts.end, "end", "", "Custom window end date; requires --start")
	flags.StringVar(&opts.jsonOut, "json", "", "Optional JSON output path")
	flags.StringVar(&opts.matchesOut, "matches-csv", "", "Optional CSV output of matched churn/reactivation pairs")
	flags.IntVar(&opts.topN, "top", defaultTopN, "Matched clients to show")
	flags.BoolVar(&opts.noAI, "no-ai", false, "Skip the narrative summary")
	flags.BoolVar(&opts.db, "db", false, "Store the run (requires CHURN_INSIGHTS_DB_URL or DATABASE_URL)")
	flags.StringVar(&opts.dbSchema, "db-schema", "", "Schema for run tables (default from config)")
	flags.StringVar(&opts.dbTag, "db-tag", "", "Optional label for this run")
	return cmd
}

func runReport(cmd *cobra.Command, root *rootOptions, opts *reportOptions) error {
	if opts.topN < 0 {
		return fmt.Errorf("--top must not be negative")
	}
	a, err := loadApp(root.configPath, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	ctx := cmdContext(cmd)

	rep, err := a.service.Build(ctx, report.Options{
		Filter:        report.Filter{Period: report.Period(opts.period), Start: opts.start, End: opts.end},
		SkipNarrative: opts.noAI,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	printReport(out, rep, opts.topN)

	if opts.jsonOut != "" {
		if err := writeJSON(rep, opts.jsonOut); err != nil {
			return err
		}
		fmt.Fprintf(out, "\nJSON report saved to %s\n", opts.jsonOut)
	}
	if opts.matchesOut != "" {
		if err := writeMatchesCSV(rep, opts.matchesOut); err != nil {
			return err
		}
		fmt.Fprintf(out, "Matched pairs CSV saved to %s\n", opts.matchesOut)
	}

	if opts.db {
		tag := opts.dbTag
		if tag == "" {
			tag = a.cfg.RunTag
		}
		runID, err := storeRun(ctx, a, rep, opts.dbSchema, tag, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "\nStored churn run (run_id=%s)\n", runID)
	}
	return nil
}

func storeRun(ctx context.Context, a *app, rep report.Report, schema, tag string, progressOut io.Writer) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	db, err := a.openStore(ctx, schema)
	if err != nil {
		return "", err
	}
	defer db.Close()

	bar := progressbar.NewOptions(store.RowCount(rep),
		progressbar.OptionSetWriter(progressOut),
		progressbar.OptionSetDescription("storing run"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
	runID, err := db.Save(ctx, rep, tag, bar)
	if err != nil {
		return "", err
	}
	_ = bar.Finish()
	a.logger.InfoContext(ctx, "run stored", "run_id", runID, "dialect", string(db.Dialect()))
	return runID, nil
}

func printReport(w io.Writer, rep report.Report, topN int) {
	churn := rep.ChurnAnalysis
	cross := rep.CrossAnalysis
	reactivation := rep.ReactivationAnalysis

	fmt.Fprintln(w, "Churn Insights Report")
	fmt.Fprintln(w, strings.Repeat("=", 38))
	fmt.Fprintf(w, "Period: %s (%s to %s)\n", rep.DateRange.Period, rep.DateRange.Start, rep.DateRange.End)
	fmt.Fprintf(w, "Generated: %s\n", rep.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "Churns: %d | MRR lost: %.2f | Avg MRR/churn: %.2f\n", churn.TotalChurns, churn.TotalMRRLost, churn.AverageMRRPerChurn)
	fmt.Fprintf(w, "Reactivations: %d | MRR recovered: %.2f\n", reactivation.TotalReactivations, reactivation.TotalMRRRecovered)
	fmt.Fprintf(w, "Reactivated from churns: %d | Rate: %.1f%% | Avg days to reactivate: %d\n",
		cross.ReactivatedFromChurns, cross.ReactivationRate, cross.AverageDaysToReactivation)
	if churn.AverageMonthsBeforeChurn > 0 {
		fmt.Fprintf(w, "Avg months before churn: %.1f\n", churn.AverageMonthsBeforeChurn)
	}

	fmt.Fprintln(w, "\nTop churn categories")
	fmt.Fprintln(w, strings.Repeat("-", 38))
	if len(churn.TopChurnCategories) == 0 {
		fmt.Fprintln(w, "No churns found.")
	}
	for _, entry := range churn.TopChurnCategories {
		fmt.Fprintf(w, "%s: %d (%.1f%%)\n", entry.Category, entry.Count, entry.Percentage)
	}

	if len(churn.CompetitorAnalysis) > 0 {
		fmt.Fprintln(w, "\nCompetitors")
		fmt.Fprintln(w, strings.Repeat("-", 38))
		for _, entry := range churn.CompetitorAnalysis {
			fmt.Fprintf(w, "%s | churns %d | MRR %.2f | avg price %.2f\n",
				entry.Competitor, entry.Count, entry.TotalMRR, entry.AveragePrice)
		}
	}

	fmt.Fprintln(w, "\nMatched clients")
	fmt.Fprintln(w, strings.Repeat("-", 38))
	if len(cross.MatchedClients) == 0 {
		fmt.Fprintln(w, "No reactivations matched.")
	}
	for i, pair := range cross.MatchedClients {
		if i >= topN {
			fmt.Fprintf(w, "... %d more\n", len(cross.MatchedClients)-topN)
			break
		}
		fmt.Fprintf(w, "%s | %d days | %s -> %s | %s | via %s\n",
			pair.ClientName,
			pair.DaysToReactivate,
			pair.ChurnDate,
			pair.ReactivationDate,
			pair.ChurnCategory,
			pair.MatchedBy,
		)
	}

	if len(cross.Correlations) > 0 {
		fmt.Fprintln(w, "\nReactivation by churn category")
		fmt.Fprintln(w, strings.Repeat("-", 38))
		for _, corr := range cross.Correlations {
			fmt.Fprintf(w, "%s | rate %.1f%% | avg %.1f days | churns %d\n",
				corr.ChurnCategory, corr.ReactivationRate, corr.AverageDaysToReactivation, corr.TotalCount)
		}
	}

	quality := rep.DataQuality
	if quality.DateParseErrors+quality.DataQualitySkips+quality.Unmatched > 0 {
		fmt.Fprintln(w, "\nData quality")
		fmt.Fprintln(w, strings.Repeat("-", 38))
		fmt.Fprintf(w, "Date parse errors: %d | Skipped rows: %d | Unmatched reactivations: %d\n",
			quality.DateParseErrors, quality.DataQualitySkips, quality.Unmatched)
	}

	if rep.AIInsights != "" {
		fmt.Fprintln(w, "\nInsights")
		fmt.Fprintln(w, strings.Repeat("-", 38))
		fmt.Fprintln(w, strings.TrimSpace(rep.AIInsights))
	}
}

func writeJSON(rep report.Report, path string) error {
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func writeMatchesCSV(rep report.Report, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{
		"client_name",
		"churn_id",
		"churn_date",
		"reactivation_date",
		"days_to_reactivate",
		"churn_category",
		"reactivation_reason",
		"mrr_recovered",
		"matched_by",
	}); err != nil {
		return err
	}
	for _, pair := range rep.CrossAnalysis.MatchedClients {
		if err := writer.Write([]string{
			pair.ClientName,
			pair.ChurnID,
			pair.ChurnDate,
			pair.ReactivationDate,
			strconv.Itoa(pair.DaysToReactivate),
			pair.ChurnCategory,
			pair.ReactivationReason,
			strconv.FormatFloat(pair.MRRRecovered, 'f', 2, 64),
			pair.MatchedBy,
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
