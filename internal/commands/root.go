// Package commands implements the cashflow CLI.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/cleared-dev/cashflow/internal/buildinfo"
	"github.com/cleared-dev/cashflow/internal/clock"
)

// app carries what every command shares.
type app struct {
	dir   string
	clock clock.Clock
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&app{clock: clock.Real{}})
}

func newRootCommand(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "cashflow",
		Short:   "Bank statement classification and cash-flow reporting",
		Version: buildinfo.String(),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&a.dir, "dir", "C", ".", "workspace directory")

	rootCmd.AddCommand(
		newInitCommand(),
		newImportCommand(a),
		newObligationsCommand(a),
		newClassifyCommand(a),
		newValidateCommand(a),
		newReviewCommand(a),
		newReceiptCommand(a),
		newDashboardCommand(a),
		newAccountCommand(a),
		newTaxCommand(a),
		newCardsCommand(a),
		newReconcileCommand(a),
		newStatusCommand(a),
		newForecastCommand(a),
		newRiskCommand(a),
		newInsightsCommand(a),
		newReportCommand(a),
		newJournalCommand(a),
		newServeCommand(a),
	)

	return rootCmd
}
