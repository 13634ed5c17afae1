// Package cli wires configuration, sheet sources, the narrative client and
// persistence into the churn-insights commands.
package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
}

func NewRootCommand(version string) *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "churn-insights",
		Short: "Churn and reactivation analytics over the customer sheets",
		Long: `churn-insights reads the churn and reactivation sheets, computes churn
categories, competitor losses, reactivation timing and category correlations,
and optionally asks a language model for a written summary.

Run "report" for a one-off text/JSON report or "serve" for the dashboard API.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "configs/churn-insights.yaml", "Path to the YAML config file (optional)")

	root.AddCommand(
		newReportCommand(opts),
		newServeCommand(opts),
		newInitDBCommand(opts),
		newRunsCommand(opts),
	)
	return root
}

// Execute runs the root command with args and reports errors on stderr.
func Execute(version string, args []string, stdout, stderr io.Writer) error {
	root := NewRootCommand(version)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return err
	}
	return nil
}
