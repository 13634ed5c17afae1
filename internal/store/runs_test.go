package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"churn-insights/internal/analytics"
	"churn-insights/internal/matching"
	"churn-insights/internal/report"
)

type execCall struct {
	query string
	args  []driver.Value
}

// recorder is a database/sql driver that keeps every statement it is asked
// to run and answers queries from canned rows.
type recorder struct {
	mu        sync.Mutex
	execs     []execCall
	queries   []execCall
	commits   int
	rollbacks int
	failOn    string
	runCount  int64
	runRows   [][]driver.Value
}

func (r *recorder) Connect(context.Context) (driver.Conn, error) { return &recordConn{r: r}, nil }

func (r *recorder) Driver() driver.Driver { return nil }

type recordConn struct{ r *recorder }

func (c *recordConn) Prepare(query string) (driver.Stmt, error) {
	return &recordStmt{r: c.r, query: query}, nil
}

func (c *recordConn) Close() error { return nil }

func (c *recordConn) Begin() (driver.Tx, error) { return &recordTx{r: c.r}, nil }

type recordTx struct{ r *recorder }

func (tx *recordTx) Commit() error {
	tx.r.mu.Lock()
	defer tx.r.mu.Unlock()
	tx.r.commits++
	return nil
}

func (tx *recordTx) Rollback() error {
	tx.r.mu.Lock()
	defer tx.r.mu.Unlock()
	tx.r.rollbacks++
	return nil
}

type recordStmt struct {
	r     *recorder
	query string
}

func (s *recordStmt) Close() error { return nil }

func (s *recordStmt) NumInput() int { return -1 }

func (s *recordStmt) Exec(args []driver.Value) (driver.Result, error) {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	if s.r.failOn != "" && strings.Contains(s.query, s.r.failOn) {
		return nil, errors.New("exec failed")
	}
	s.r.execs = append(s.r.execs, execCall{query: s.query, args: args})
	return driver.RowsAffected(1), nil
}

func (s *recordStmt) Query(args []driver.Value) (driver.Rows, error) {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	s.r.queries = append(s.r.queries, execCall{query: s.query, args: args})
	if strings.Contains(s.query, "COUNT(*)") {
		return &recordRows{columns: []string{"count"}, values: [][]driver.Value{{s.r.runCount}}}, nil
	}
	return &recordRows{
		columns: []string{"id", "generated_at", "period", "total_churns", "total_reactivations",
			"reactivation_rate", "avg_days_to_reactivation", "run_tag"},
		values: s.r.runRows,
	}, nil
}

type recordRows struct {
	columns []string
	values  [][]driver.Value
	next    int
}

func (r *recordRows) Columns() []string { return r.columns }

func (r *recordRows) Close() error { return nil }

func (r *recordRows) Next(dest []driver.Value) error {
	if r.next >= len(r.values) {
		return io.EOF
	}
	copy(dest, r.values[r.next])
	r.next++
	return nil
}

func newRecordedStore(t *testing.T, dialect Dialect) (*Store, *recorder) {
	t.Helper()
	rec := &recorder{}
	db := sql.OpenDB(rec)
	t.Cleanup(func() { db.Close() })
	return &Store{db: db, dialect: dialect, schema: "churn_insights"}, rec
}

var dollarPlaceholder = regexp.MustCompile(`\$(\d+)`)

func placeholderCount(dialect Dialect, query string) int {
	if dialect == MySQL {
		return strings.Count(query, "?")
	}
	if strings.Contains(query, "?") {
		return -1
	}
	return len(dollarPlaceholder.FindAllString(query, -1))
}

func sampleReport() report.Report {
	rep := report.Report{
		GeneratedAt: time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC),
		DateRange:   report.DateRange{Period: "last-month", Start: "2024-04-01", End: "2024-04-30"},
	}
	rep.ChurnAnalysis.TotalMRRLost = 1200
	rep.ChurnAnalysis.ChurnCategories = []analytics.CategoryCount{
		{Category: "Pricing", Count: 3, Percentage: 60},
		{Category: "Product", Count: 2, Percentage: 40},
	}
	rep.CrossAnalysis.TotalChurns = 5
	rep.CrossAnalysis.TotalReactivations = 1
	rep.CrossAnalysis.MatchedClients = []matching.MatchedPair{{
		ClientName:       "Acme",
		ChurnDate:        "2024-04-02",
		ReactivationDate: "2024-04-20T08:00:00Z",
		DaysToReactivate: 18,
		ChurnCategory:    "Pricing",
		MRRRecovered:     300,
		MatchedBy:        "name",
	}}
	rep.CrossAnalysis.Correlations = []analytics.ReactivationCorrelation{{ChurnCategory: "Pricing"}}
	return rep
}

type countingProgress struct {
	calls int
	err   error
}

func (p *countingProgress) Add(n int) error {
	p.calls += n
	return p.err
}

func TestSaveBindsEveryPlaceholder(t *testing.T) {
	for _, dialect := range []Dialect{Postgres, MySQL} {
		s, rec := newRecordedStore(t, dialect)
		rep := sampleReport()
		progress := &countingProgress{}

		id, err := s.Save(context.Background(), rep, "nightly", progress)
		if err != nil {
			t.Fatalf("%s: save: %v", dialect, err)
		}
		if id == "" {
			t.Fatalf("%s: expected a run id", dialect)
		}
		if len(rec.execs) != 1+RowCount(rep) {
			t.Fatalf("%s: expected %d inserts, got %d", dialect, 1+RowCount(rep), len(rec.execs))
		}
		for _, call := range rec.execs {
			if got := placeholderCount(dialect, call.query); got != len(call.args) {
				t.Fatalf("%s: %d placeholders for %d args in %s", dialect, got, len(call.args), call.query)
			}
			if !strings.Contains(call.query, "churn_insights.churn_run") {
				t.Fatalf("%s: table not schema qualified: %s", dialect, call.query)
			}
		}
		if rec.execs[0].args[0] != id {
			t.Fatalf("%s: run row id %v does not match %s", dialect, rec.execs[0].args[0], id)
		}
		if tag := rec.execs[0].args[15]; tag != "nightly" {
			t.Fatalf("%s: expected run tag, got %v", dialect, tag)
		}
		for _, call := range rec.execs[1:] {
			if call.args[1] != id {
				t.Fatalf("%s: child row not linked to run: %v", dialect, call.args[1])
			}
		}
		if rec.commits != 1 || rec.rollbacks != 0 {
			t.Fatalf("%s: expected one commit, got %d commits %d rollbacks", dialect, rec.commits, rec.rollbacks)
		}
		if progress.calls != RowCount(rep) {
			t.Fatalf("%s: expected %d progress steps, got %d", dialect, RowCount(rep), progress.calls)
		}
	}
}

func TestSaveStoresTimestampsAndNulls(t *testing.T) {
	s, rec := newRecordedStore(t, Postgres)
	if _, err := s.Save(context.Background(), sampleReport(), "", nil); err != nil {
		t.Fatalf("save: %v", err)
	}
	if tag := rec.execs[0].args[15]; tag != nil {
		t.Fatalf("blank tag should be NULL, got %v", tag)
	}
	match := rec.execs[3]
	if !strings.Contains(match.query, "churn_run_matches") {
		t.Fatalf("expected match insert, got %s", match.query)
	}
	if match.args[3] != nil {
		t.Fatalf("missing churn id should be NULL, got %v", match.args[3])
	}
	reactivated, ok := match.args[5].(time.Time)
	if !ok || !reactivated.Equal(time.Date(2024, 4, 20, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected reactivation date %v", match.args[5])
	}
}

func TestSaveRollsBackOnFailedInsert(t *testing.T) {
	s, rec := newRecordedStore(t, MySQL)
	rec.failOn = "churn_run_matches"
	if _, err := s.Save(context.Background(), sampleReport(), "", nil); err == nil || !strings.Contains(err.Error(), "insert match") {
		t.Fatalf("expected insert match error, got %v", err)
	}
	if rec.commits != 0 || rec.rollbacks != 1 {
		t.Fatalf("expected a rollback only, got %d commits %d rollbacks", rec.commits, rec.rollbacks)
	}
}

func TestSaveIgnoresProgressErrors(t *testing.T) {
	s, rec := newRecordedStore(t, Postgres)
	progress := &countingProgress{err: errors.New("terminal closed")}
	if _, err := s.Save(context.Background(), sampleReport(), "", progress); err != nil {
		t.Fatalf("progress errors must not fail the save: %v", err)
	}
	if rec.commits != 1 || progress.calls != RowCount(sampleReport()) {
		t.Fatalf("expected commit and %d steps, got %d commits %d steps", RowCount(sampleReport()), rec.commits, progress.calls)
	}
}

func TestSeedIfEmpty(t *testing.T) {
	s, rec := newRecordedStore(t, Postgres)
	rec.runCount = 3
	if _, seeded, err := s.SeedIfEmpty(context.Background(), sampleReport(), ""); err != nil || seeded {
		t.Fatalf("expected no seed over existing runs, got seeded=%v err=%v", seeded, err)
	}
	if len(rec.execs) != 0 {
		t.Fatalf("expected no writes, got %d", len(rec.execs))
	}

	rec.runCount = 0
	id, seeded, err := s.SeedIfEmpty(context.Background(), sampleReport(), "seed")
	if err != nil || !seeded || id == "" {
		t.Fatalf("expected a seeded run, got id=%q seeded=%v err=%v", id, seeded, err)
	}
	if rec.commits != 1 {
		t.Fatalf("expected the seed to commit, got %d", rec.commits)
	}
}

func TestLatestRuns(t *testing.T) {
	generated := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	for _, dialect := range []Dialect{Postgres, MySQL} {
		s, rec := newRecordedStore(t, dialect)
		rec.runRows = [][]driver.Value{
			{"run-1", generated, "last-month", int64(5), int64(1), 20.0, int64(18), "nightly"},
			{"run-0", generated.Add(-time.Hour), "all-time", int64(9), int64(0), 0.0, int64(0), nil},
		}

		runs, err := s.LatestRuns(context.Background(), 0)
		if err != nil {
			t.Fatalf("%s: latest runs: %v", dialect, err)
		}
		if len(runs) != 2 || runs[0].ID != "run-1" || runs[0].Tag != "nightly" || runs[1].Tag != "" {
			t.Fatalf("%s: unexpected runs %+v", dialect, runs)
		}
		if !runs[0].GeneratedAt.Equal(generated) || runs[0].ReactivationRate != 20 || runs[0].AverageDaysToReactivation != 18 {
			t.Fatalf("%s: unexpected first run %+v", dialect, runs[0])
		}

		call := rec.queries[len(rec.queries)-1]
		if len(call.args) != 1 || call.args[0] != int64(10) {
			t.Fatalf("%s: expected default limit 10, got %v", dialect, call.args)
		}
		if got := placeholderCount(dialect, call.query); got != 1 {
			t.Fatalf("%s: expected one placeholder, got %d in %s", dialect, got, call.query)
		}
		if hasCast := strings.Contains(call.query, "id::text"); hasCast != (dialect == Postgres) {
			t.Fatalf("%s: unexpected id column in %s", dialect, call.query)
		}
	}
}
