package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"churn-insights/internal/report"
)

func newInitDBCommand(root *rootOptions) *cobra.Command {
	var schema, tag string
	cmd := &cobra.Command{
		Use:   "init-db",
		Short: "Create the run tables and seed them with the current report if empty",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(root.configPath, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmdContext(cmd), 30*time.Second)
			defer cancel()

			db, err := a.openStore(ctx, schema)
			if err != nil {
				return err
			}
			defer db.Close()

			rep, err := a.service.Build(ctx, report.Options{SkipNarrative: true})
			if err != nil {
				return err
			}
			if tag == "" {
				tag = a.cfg.RunTag
			}
			runID, seeded, err := db.SeedIfEmpty(ctx, rep, tag)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !seeded {
				fmt.Fprintln(out, "Run data already present; skipping seed.")
				return nil
			}
			fmt.Fprintf(out, "Seeded %s with initial churn run (run_id=%s)\n", db.Dialect(), runID)
			return nil
		},
	}
	cmd.Flags().StringVar(&schema, "db-schema", "", "Schema for run tables (default from config)")
	cmd.Flags().StringVar(&tag, "db-tag", "", "Optional label for the seed run")
	return cmd
}

func newRunsCommand(root *rootOptions) *cobra.Command {
	var (
		schema string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List stored runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(root.configPath, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmdContext(cmd), 15*time.Second)
			defer cancel()

			db, err := a.openStore(ctx, schema)
			if err != nil {
				return err
			}
			defer db.Close()

			runs, err := db.LatestRuns(ctx, limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs stored.")
				return nil
			}
			for _, run := range runs {
				tag := run.Tag
				if tag == "" {
					tag = "-"
				}
				fmt.Fprintf(out, "%s | %s | %s | churns %d | reactivations %d | rate %.1f%% | avg %d days | %s\n",
					run.ID,
					run.GeneratedAt.Format(time.RFC3339),
					run.Period,
					run.TotalChurns,
					run.TotalReactivations,
					run.ReactivationRate,
					run.AverageDaysToReactivation,
					tag,
				)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&schema, "db-schema", "", "Schema for run tables (default from config)")
	cmd.Flags().IntVar(&limit, "limit", 10, "Number of runs to list")
	return cmd
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
