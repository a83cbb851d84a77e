package commands

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/cashflow/internal/journal"
)

func newJournalCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "journal",
		Short: "Export classified records as monthly double-entry journals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context, ws *workspace) error {
				files, err := ws.ledger.ExportJournal(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(files) == 0 {
					fmt.Fprintln(out, "No records to export.")
					return nil
				}
				for _, f := range files {
					rel, err := filepath.Rel(ws.root, f.Path)
					if err != nil {
						rel = f.Path
					}
					fmt.Fprintf(out, "%s: %d entries, %d skipped -> %s", f.Month, f.Entries, f.Skipped, rel)
					if !f.ClearingBalance.IsZero() {
						fmt.Fprintf(out, " (transfer clearing off by %s)", f.ClearingBalance.StringFixed(2))
					}
					fmt.Fprintln(out)
				}
				ws.commit(out, "journal: export", journal.Dir)
				return nil
			})
		},
	}
}
