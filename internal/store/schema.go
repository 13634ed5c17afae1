package store

import (
	"context"
	"fmt"
)

// EnsureSchema creates the schema, the run tables and their indexes. Every
// statement is idempotent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range s.ddl() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema %s: %w", s.schema, err)
		}
	}
	return nil
}

func (s *Store) ddl() []string {
	if s.dialect == MySQL {
		return mysqlDDL(s.schema)
	}
	return postgresDDL(s.schema)
}

func postgresDDL(schema string) []string {
	return []string{
		fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s`, schema),
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.churn_runs (
			id uuid PRIMARY KEY,
			generated_at timestamptz NOT NULL,
			period text NOT NULL,
			range_start date,
			range_end date,
			total_churns integer NOT NULL,
			total_reactivations integer NOT NULL,
			reactivated_from_churns integer NOT NULL,
			reactivation_rate numeric(8,2) NOT NULL,
			avg_days_to_reactivation integer NOT NULL,
			total_mrr_lost numeric(14,2) NOT NULL,
			total_mrr_recovered numeric(14,2) NOT NULL,
			date_parse_errors integer NOT NULL,
			data_quality_skips integer NOT NULL,
			unmatched_reactivations integer NOT NULL,
			run_tag text,
			created_at timestamptz NOT NULL DEFAULT now()
		)`, schema),
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.churn_run_categories (
			id uuid PRIMARY KEY,
			run_id uuid NOT NULL REFERENCES %s.churn_runs(id) ON DELETE CASCADE,
			category text NOT NULL,
			churn_count integer NOT NULL,
			percentage numeric(8,2) NOT NULL
		)`, schema, schema),
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.churn_run_matches (
			id uuid PRIMARY KEY,
			run_id uuid NOT NULL REFERENCES %s.churn_runs(id) ON DELETE CASCADE,
			client_name text NOT NULL,
			churn_id text,
			churn_date date,
			reactivation_date date,
			days_to_reactivate integer NOT NULL,
			churn_category text NOT NULL,
			reactivation_reason text NOT NULL,
			mrr_recovered numeric(14,2) NOT NULL,
			matched_by text NOT NULL
		)`, schema, schema),
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.churn_run_correlations (
			id uuid PRIMARY KEY,
			run_id uuid NOT NULL REFERENCES %s.churn_runs(id) ON DELETE CASCADE,
			churn_category text NOT NULL,
			reactivation_rate numeric(8,2) NOT NULL,
			avg_days_to_reactivation numeric(8,2) NOT NULL,
			total_count integer NOT NULL
		)`, schema, schema),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS churn_run_categories_run_idx ON %s.churn_run_categories(run_id)`, schema),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS churn_run_matches_run_idx ON %s.churn_run_matches(run_id)`, schema),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS churn_run_correlations_run_idx ON %s.churn_run_correlations(run_id)`, schema),
	}
}

// MySQL has no CREATE INDEX IF NOT EXISTS, so indexes are declared inline.
func mysqlDDL(schema string) []string {
	return []string{
		fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s`, schema),
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.churn_runs (
			id CHAR(36) PRIMARY KEY,
			generated_at DATETIME NOT NULL,
			period VARCHAR(32) NOT NULL,
			range_start DATE NULL,
			range_end DATE NULL,
			total_churns INT NOT NULL,
			total_reactivations INT NOT NULL,
			reactivated_from_churns INT NOT NULL,
			reactivation_rate DECIMAL(8,2) NOT NULL,
			avg_days_to_reactivation INT NOT NULL,
			total_mrr_lost DECIMAL(14,2) NOT NULL,
			total_mrr_recovered DECIMAL(14,2) NOT NULL,
			date_parse_errors INT NOT NULL,
			data_quality_skips INT NOT NULL,
			unmatched_reactivations INT NOT NULL,
			run_tag VARCHAR(255) NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			INDEX churn_runs_created_idx (created_at)
		) ENGINE=InnoDB`, schema),
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.churn_run_categories (
			id CHAR(36) PRIMARY KEY,
			run_id CHAR(36) NOT NULL,
			category VARCHAR(255) NOT NULL,
			churn_count INT NOT NULL,
			percentage DECIMAL(8,2) NOT NULL,
			INDEX churn_run_categories_run_idx (run_id),
			FOREIGN KEY (run_id) REFERENCES %s.churn_runs(id) ON DELETE CASCADE
		) ENGINE=InnoDB`, schema, schema),
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.churn_run_matches (
			id CHAR(36) PRIMARY KEY,
			run_id CHAR(36) NOT NULL,
			client_name VARCHAR(255) NOT NULL,
			churn_id VARCHAR(255) NULL,
			churn_date DATE NULL,
			reactivation_date DATE NULL,
			days_to_reactivate INT NOT NULL,
			churn_category VARCHAR(255) NOT NULL,
			reactivation_reason VARCHAR(255) NOT NULL,
			mrr_recovered DECIMAL(14,2) NOT NULL,
			matched_by VARCHAR(16) NOT NULL,
			INDEX churn_run_matches_run_idx (run_id),
			FOREIGN KEY (run_id) REFERENCES %s.churn_runs(id) ON DELETE CASCADE
		) ENGINE=InnoDB`, schema, schema),
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.churn_run_correlations (
			id CHAR(36) PRIMARY KEY,
			run_id CHAR(36) NOT NULL,
			churn_category VARCHAR(255) NOT NULL,
			reactivation_rate DECIMAL(8,2) NOT NULL,
			avg_days_to_reactivation DECIMAL(8,2) NOT NULL,
			total_count INT NOT NULL,
			INDEX churn_run_correlations_run_idx (run_id),
			FOREIGN KEY (run_id) REFERENCES %s.churn_runs(id) ON DELETE CASCADE
		) ENGINE=InnoDB`, schema, schema),
	}
}
