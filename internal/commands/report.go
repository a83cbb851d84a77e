package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/cashflow/internal/cashflow"
	"github.com/cleared-dev/cashflow/internal/clock"
)

const reportsDir = "reports"

func newReportCommand(a *app) *cobra.Command {
	var wf windowFlags
	var toStdout bool

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Write a full cash-flow report to reports/",
		Long: `Write the dashboard, tax summary, forecast, risk analysis and insights
for a window to reports/<date>-dashboard.json and commit it when git
auto-commit is enabled.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context, ws *workspace) error {
				w, err := wf.window(ws.ledger)
				if err != nil {
					return err
				}
				rep, err := ws.ledger.Report(ctx, w)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if toStdout {
					return printJSON(out, rep)
				}

				name := clock.Today(a.clock).Format(cashflow.DateLayout) + "-dashboard.json"
				path := filepath.Join(ws.root, reportsDir, name)
				if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
					return fmt.Errorf("creating reports dir: %w", err)
				}
				f, err := os.Create(path)
				if err != nil {
					return fmt.Errorf("writing report: %w", err)
				}
				if err := printJSON(f, rep); err != nil {
					f.Close()
					return fmt.Errorf("writing report: %w", err)
				}
				if err := f.Close(); err != nil {
					return fmt.Errorf("writing report: %w", err)
				}

				fmt.Fprintf(out, "Report written to %s\n", filepath.Join(reportsDir, name))
				ws.commit(out, "report: "+name, reportsDir)
				return nil
			})
		},
	}

	wf.bind(cmd)
	cmd.Flags().BoolVar(&toStdout, "stdout", false, "print the report instead of writing it")

	return cmd
}
