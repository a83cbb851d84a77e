package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/cashflow/internal/importer"
	"github.com/cleared-dev/cashflow/internal/model"
	"github.com/cleared-dev/cashflow/internal/store"
)

func newImportCommand(a *app) *cobra.Command {
	var format, account string

	cmd := &cobra.Command{
		Use:   "import [file...]",
		Short: "Import bank statement CSVs",
		Long: `Import bank statement CSVs into the ledger.

With no arguments every CSV in import/ is imported and moved to
import/processed/. The account defaults to the file name without its
extension, so "Revenue 4717.csv" lands in the "Revenue 4717" account.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context, ws *workspace) error {
				return runImport(ctx, ws, cmd.OutOrStdout(), a, args, format, account)
			})
		},
	}

	cmd.Flags().StringVar(&format, "format", importer.DefaultFormat, "statement format (generic, chase)")
	cmd.Flags().StringVar(&account, "account", "", "account name (default: file name)")

	return cmd
}

func runImport(ctx context.Context, ws *workspace, out io.Writer, a *app, files []string, format, account string) error {
	im := importer.New(nil, ws.ledger.Accounts(), a.clock, ws.logger)

	fromInbox := len(files) == 0
	if fromInbox {
		scanned, err := importer.Scan(ws.root)
		if err != nil {
			return err
		}
		for _, f := range scanned {
			files = append(files, f.Path)
		}
	}
	if len(files) == 0 {
		fmt.Fprintln(out, "No statements to import.")
		return nil
	}

	imported := 0
	for _, path := range files {
		b, err := im.ReadFile(path, format, account)
		if err != nil {
			return err
		}
		n, err := ws.ledger.ImportBatch(ctx, b)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s -> %s: %d new, %d duplicate, %d rejected\n",
			b.File, b.Account.Name, n, len(b.Records)-n, len(b.Errors))
		for _, re := range b.Errors {
			fmt.Fprintf(out, "  %v\n", re)
		}
		if b.Account.Role == model.RoleUnknown {
			fmt.Fprintf(out, "  warning: account %q is not configured; its records will need review\n", b.Account.Name)
		}
		if fromInbox {
			if err := importer.MarkProcessed(ws.root, filepath.Base(path)); err != nil {
				return err
			}
		}
		imported++
	}

	ws.commit(out, fmt.Sprintf("import: %d statement(s)", imported), "import")
	return nil
}

func newObligationsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "obligations",
		Short: "Manage receivables and payables",
	}
	cmd.AddCommand(
		newObligationsImportCommand(a),
		newObligationsListCommand(a),
		newObligationsSetCommand(a),
	)
	return cmd
}

func newObligationsImportCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import obligations from a CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context, ws *workspace) error {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("opening obligations: %w", err)
				}
				defer f.Close()

				obs, rowErrs, err := importer.ParseObligations(f)
				if err != nil {
					return err
				}
				n, err := ws.ledger.ImportObligations(ctx, obs)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%d obligations imported, %d rejected\n", n, len(rowErrs))
				for _, re := range rowErrs {
					fmt.Fprintf(out, "  %v\n", re)
				}
				return nil
			})
		},
	}
}

func newObligationsListCommand(a *app) *cobra.Command {
	var kind, status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List obligations by due date",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context, ws *workspace) error {
				obs, err := ws.ledger.Obligations(ctx, store.ObligationFilter{
					Kind:   model.ObligationKind(kind),
					Status: model.ObligationStatus(status),
				})
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tTYPE\tCOUNTERPARTY\tAMOUNT\tDUE\tSTATUS")
				for _, o := range obs {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
						o.ID, o.Kind, o.Counterparty, o.Amount.StringFixed(2), o.DueDate.Format("2006-01-02"), o.Status)
				}
				return tw.Flush()
			})
		},
	}

	cmd.Flags().StringVar(&kind, "type", "", "receivable or payable")
	cmd.Flags().StringVar(&status, "status", "", "pending, paid or cancelled")

	return cmd
}

func newObligationsSetCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set <id> <pending|paid|cancelled>",
		Short: "Change an obligation's status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			status := model.ObligationStatus(args[1])
			switch status {
			case model.StatusPending, model.StatusPaid, model.StatusCancelled:
			default:
				return fmt.Errorf("unknown status %q", args[1])
			}
			return a.run(cmd, func(ctx context.Context, ws *workspace) error {
				if err := ws.ledger.SetObligationStatus(ctx, args[0], status); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Obligation %s is now %s\n", args[0], status)
				return nil
			})
		},
	}
}
