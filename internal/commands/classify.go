package commands

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/cashflow/internal/classify"
	"github.com/cleared-dev/cashflow/internal/model"
)

func newClassifyCommand(a *app) *cobra.Command {
	var opts classify.Options
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify imported records",
		Long: `Classify every unclassified record in one batch. With --force every
record is reclassified. The batch is stored atomically; a failed commit
leaves the ledger unchanged and is still recorded in logs/run-log.csv.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context, ws *workspace) error {
				stats, runErr := ws.ledger.Classify(ctx, opts)
				if runErr != nil && !errors.Is(runErr, classify.ErrCommitFailed) {
					return runErr
				}

				out := cmd.OutOrStdout()
				if asJSON {
					if err := printJSON(out, stats); err != nil {
						return err
					}
				} else {
					printRunStats(cmd, stats)
				}
				if runErr != nil {
					return runErr
				}
				if stats.TotalProcessed > 0 {
					ws.commit(out, fmt.Sprintf("classify: %s", stats.RunID), "logs")
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&opts.Force, "force", false, "reclassify records that already have a category")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "classify at most this many records")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print run statistics as JSON")

	return cmd
}

func printRunStats(cmd *cobra.Command, s classify.RunStats) {
	out := cmd.OutOrStdout()
	if s.TotalProcessed == 0 {
		fmt.Fprintln(out, "Nothing to classify.")
		return
	}
	fmt.Fprintf(out, "Run %s: %d processed, %d classified, %d failed, %d need review (%s%%)\n",
		s.RunID, s.TotalProcessed, s.Successful, s.Failed, s.NeedsReview, s.SuccessRate.String())
	fmt.Fprintf(out, "Confidence: %d high, %d medium, %d low\n",
		s.ByConfidence.High, s.ByConfidence.Medium, s.ByConfidence.Low)

	cats := make([]string, 0, len(s.ByCategory))
	for c := range s.ByCategory {
		cats = append(cats, string(c))
	}
	sort.Strings(cats)
	for _, c := range cats {
		fmt.Fprintf(out, "  %-22s %d\n", c, s.ByCategory[model.Category(c)])
	}
	for _, e := range s.Errors {
		fmt.Fprintf(out, "  error %s: %s\n", e.RecordID, e.Message)
	}
}

func newValidateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check stored classifications for consistency",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context, ws *workspace) error {
				errs, err := ws.ledger.Validate(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(errs) == 0 {
					fmt.Fprintln(out, "All records valid.")
					return nil
				}
				for _, e := range errs {
					fmt.Fprintln(out, e.Error())
				}
				return fmt.Errorf("%d validation error(s)", len(errs))
			})
		},
	}
}

func newReviewCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "review",
		Short: "List records flagged for manual review",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context, ws *workspace) error {
				recs, err := ws.ledger.ReviewQueue(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(recs) == 0 {
					fmt.Fprintln(out, "Review queue is empty.")
					return nil
				}
				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tDATE\tACCOUNT\tAMOUNT\tDESCRIPTION\tNOTE")
				for _, r := range recs {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
						r.ID, r.Date.Format("2006-01-02"), r.AccountName, r.Amount.StringFixed(2), r.Description, r.ReviewNote)
				}
				return tw.Flush()
			})
		},
	}
}

func newReceiptCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "receipt <record-id>",
		Short: "Mark a deductible purchase's receipt as received",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context, ws *workspace) error {
				if err := ws.ledger.MarkReceipt(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Receipt recorded for %s\n", args[0])
				return nil
			})
		},
	}
}
