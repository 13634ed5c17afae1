package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"churn-insights/internal/dates"
	"churn-insights/internal/report"
)

// Progress is advanced once per child row written. progressbar.ProgressBar
// satisfies it. Progress is display only: an Add error never fails or rolls
// back a save.
type Progress interface {
	Add(n int) error
}

type noProgress struct{}

func (noProgress) Add(int) error { return nil }

func advance(progress Progress) {
	_ = progress.Add(1)
}

// RowCount is the number of child rows Save writes for rep.
func RowCount(rep report.Report) int {
	return len(rep.ChurnAnalysis.ChurnCategories) +
		len(rep.CrossAnalysis.MatchedClients) +
		len(rep.CrossAnalysis.Correlations)
}

// Save writes rep and its child rows in one transaction and returns the new
// run id.
func (s *Store) Save(ctx context.Context, rep report.Report, tag string, progress Progress) (runID string, err error) {
	if progress == nil {
		progress = noProgress{}
	}
	id := uuid.New()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	rangeStart, rangeEnd := rangeBounds(rep.DateRange)
	quality := rep.DataQuality
	_, err = tx.ExecContext(ctx, s.query(`
		INSERT INTO %s (
			id, generated_at, period, range_start, range_end,
			total_churns, total_reactivations, reactivated_from_churns,
			reactivation_rate, avg_days_to_reactivation,
			total_mrr_lost, total_mrr_recovered,
			date_parse_errors, data_quality_skips, unmatched_reactivations, run_tag
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`, "churn_runs"),
		id.String(),
		rep.GeneratedAt.UTC(),
		rep.DateRange.Period,
		rangeStart,
		rangeEnd,
		rep.CrossAnalysis.TotalChurns,
		rep.CrossAnalysis.TotalReactivations,
		rep.CrossAnalysis.ReactivatedFromChurns,
		rep.CrossAnalysis.ReactivationRate,
		rep.CrossAnalysis.AverageDaysToReactivation,
		rep.ChurnAnalysis.TotalMRRLost,
		rep.ReactivationAnalysis.TotalMRRRecovered,
		quality.DateParseErrors,
		quality.DataQualitySkips,
		quality.Unmatched,
		nullString(tag),
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	insertCategory := s.query(`
		INSERT INTO %s (id, run_id, category, churn_count, percentage)
		VALUES (?,?,?,?,?)`, "churn_run_categories")
	for _, entry := range rep.ChurnAnalysis.ChurnCategories {
		if _, err = tx.ExecContext(ctx, insertCategory,
			uuid.NewString(), id.String(), entry.Category, entry.Count, entry.Percentage,
		); err != nil {
			return "", fmt.Errorf("insert category %q: %w", entry.Category, err)
		}
		advance(progress)
	}

	insertMatch := s.query(`
		INSERT INTO %s (
			id, run_id, client_name, churn_id, churn_date, reactivation_date,
			days_to_reactivate, churn_category, reactivation_reason, mrr_recovered, matched_by
		) VALUES (?,?,?,?,?,?,?,?,?,?,?)`, "churn_run_matches")
	for _, pair := range rep.CrossAnalysis.MatchedClients {
		if _, err = tx.ExecContext(ctx, insertMatch,
			uuid.NewString(),
			id.String(),
			pair.ClientName,
			nullString(pair.ChurnID),
			parsedDate(pair.ChurnDate),
			parsedDate(pair.ReactivationDate),
			pair.DaysToReactivate,
			pair.ChurnCategory,
			pair.ReactivationReason,
			pair.MRRRecovered,
			pair.MatchedBy,
		); err != nil {
			return "", fmt.Errorf("insert match %q: %w", pair.ClientName, err)
		}
		advance(progress)
	}

	insertCorrelation := s.query(`
		INSERT INTO %s (
			id, run_id, churn_category, reactivation_rate, avg_days_to_reactivation, total_count
		) VALUES (?,?,?,?,?,?)`, "churn_run_correlations")
	for _, corr := range rep.CrossAnalysis.Correlations {
		if _, err = tx.ExecContext(ctx, insertCorrelation,
			uuid.NewString(),
			id.String(),
			corr.ChurnCategory,
			corr.ReactivationRate,
			corr.AverageDaysToReactivation,
			corr.TotalCount,
		); err != nil {
			return "", fmt.Errorf("insert correlation %q: %w", corr.ChurnCategory, err)
		}
		advance(progress)
	}

	if err = tx.Commit(); err != nil {
		return "", err
	}
	return id.String(), nil
}

// SeedIfEmpty stores rep only when no run has been recorded yet. The bool
// reports whether a run was written.
func (s *Store) SeedIfEmpty(ctx context.Context, rep report.Report, tag string) (string, bool, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, s.query(`SELECT COUNT(*) FROM %s`, "churn_runs")).Scan(&count); err != nil {
		return "", false, err
	}
	if count > 0 {
		return "", false, nil
	}
	id, err := s.Save(ctx, rep, tag, nil)
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}

type Run struct {
	ID                        string    `json:"id"`
	GeneratedAt               time.Time `json:"generatedAt"`
	Period                    string    `json:"period"`
	TotalChurns               int       `json:"totalChurns"`
	TotalReactivations        int       `json:"totalReactivations"`
	ReactivationRate          float64   `json:"reactivationRate"`
	AverageDaysToReactivation int       `json:"averageDaysToReactivation"`
	Tag                       string    `json:"tag,omitempty"`
}

// LatestRuns lists the most recent runs, newest first.
func (s *Store) LatestRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 10
	}
	idColumn := "id"
	if s.dialect == Postgres {
		idColumn = "id::text"
	}
	rows, err := s.db.QueryContext(ctx, s.query(`
		SELECT `+idColumn+`, generated_at, period, total_churns, total_reactivations,
			reactivation_rate, avg_days_to_reactivation, run_tag
		FROM %s
		ORDER BY created_at DESC
		LIMIT ?`, "churn_runs"), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run Run
			tag sql.NullString
		)
		if err := rows.Scan(&run.ID, &run.GeneratedAt, &run.Period, &run.TotalChurns,
			&run.TotalReactivations, &run.ReactivationRate, &run.AverageDaysToReactivation, &tag); err != nil {
			return nil, err
		}
		run.Tag = tag.String
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *Store) query(format, table string) string {
	return rebind(s.dialect, fmt.Sprintf(format, s.table(table)))
}

func rangeBounds(r report.DateRange) (sql.NullTime, sql.NullTime) {
	return parsedDate(r.Start), parsedDate(r.End)
}

// parsedDate is NULL for empty, unparsable and "All time" values.
func parsedDate(value string) sql.NullTime {
	t, err := dates.ParseLenient(value)
	if err != nil {
		return sql.NullTime{}
	}
	return nullDate(t)
}
