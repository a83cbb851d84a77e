package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/cashflow/internal/reconcile"
)

// The read commands print the same JSON documents the HTTP API serves.

func newDashboardCommand(a *app) *cobra.Command {
	var wf windowFlags
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Show KPIs, account summaries and reconciliation for a window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context, ws *workspace) error {
				w, err := wf.window(ws.ledger)
				if err != nil {
					return err
				}
				d, err := ws.ledger.Dashboard(ctx, w)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), d)
			})
		},
	}
	wf.bind(cmd)
	return cmd
}

func newAccountCommand(a *app) *cobra.Command {
	var wf windowFlags
	cmd := &cobra.Command{
		Use:   "account <name>",
		Short: "Summarise one configured account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context, ws *workspace) error {
				w, err := wf.window(ws.ledger)
				if err != nil {
					return err
				}
				s, err := ws.ledger.Account(ctx, args[0], w)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), s)
			})
		},
	}
	wf.bind(cmd)
	return cmd
}

func newTaxCommand(a *app) *cobra.Command {
	var wf windowFlags
	cmd := &cobra.Command{
		Use:   "tax",
		Short: "Show deductible spending and receipt compliance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context, ws *workspace) error {
				w, err := wf.window(ws.ledger)
				if err != nil {
					return err
				}
				s, err := ws.ledger.Tax(ctx, w)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), s)
			})
		},
	}
	wf.bind(cmd)
	return cmd
}

func newCardsCommand(a *app) *cobra.Command {
	var asOf string
	cmd := &cobra.Command{
		Use:   "cards",
		Short: "Show the current credit card cycle and receipt status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := parseFlagDate("as-of", asOf)
			if err != nil {
				return err
			}
			return a.run(cmd, func(ctx context.Context, ws *workspace) error {
				s, err := ws.ledger.CreditCard(ctx, t)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), s)
			})
		},
	}
	cmd.Flags().StringVar(&asOf, "as-of", "", "reference date, YYYY-MM-DD (default today)")
	return cmd
}

type transferPair struct {
	Token      string `json:"token"`
	OutgoingID string `json:"outgoing_id"`
	IncomingID string `json:"incoming_id"`
	Amount     string `json:"amount"`
}

func newReconcileCommand(a *app) *cobra.Command {
	var asOf string
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Reconcile internal transfers between accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := parseFlagDate("as-of", asOf)
			if err != nil {
				return err
			}
			return a.run(cmd, func(ctx context.Context, ws *workspace) error {
				st, pairs, err := ws.ledger.Reconciliation(ctx, t)
				if err != nil {
					return err
				}
				out := struct {
					reconcile.Status
					Pairs []transferPair `json:"pairs"`
				}{Status: st, Pairs: []transferPair{}}
				for _, p := range pairs {
					out.Pairs = append(out.Pairs, transferPair{
						Token:      p.Token,
						OutgoingID: p.Outgoing.ID,
						IncomingID: p.Incoming.ID,
						Amount:     p.Incoming.Amount.StringFixed(2),
					})
				}
				return printJSON(cmd.OutOrStdout(), out)
			})
		},
	}
	cmd.Flags().StringVar(&asOf, "as-of", "", "only consider transfers on or before this date, YYYY-MM-DD")
	return cmd
}

func newStatusCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show classification progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context, ws *workspace) error {
				s, err := ws.ledger.ClassificationStatus(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), s)
			})
		},
	}
}

func newForecastCommand(a *app) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "forecast",
		Short: "Project daily cash flow from pending obligations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if days < 0 {
				return fmt.Errorf("--days must not be negative")
			}
			return a.run(cmd, func(ctx context.Context, ws *workspace) error {
				points, err := ws.ledger.Forecast(ctx, days)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), points)
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "horizon in days (default from cashflow.yaml)")
	return cmd
}

func newRiskCommand(a *app) *cobra.Command {
	var asOf string
	cmd := &cobra.Command{
		Use:   "risk",
		Short: "Score liquidity risk from pending obligations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := parseFlagDate("as-of", asOf)
			if err != nil {
				return err
			}
			return a.run(cmd, func(ctx context.Context, ws *workspace) error {
				r, err := ws.ledger.Risk(ctx, t)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), r)
			})
		},
	}
	cmd.Flags().StringVar(&asOf, "as-of", "", "reference date, YYYY-MM-DD (default today)")
	return cmd
}

func newInsightsCommand(a *app) *cobra.Command {
	var top int
	cmd := &cobra.Command{
		Use:   "insights",
		Short: "Rank top customers and vendors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context, ws *workspace) error {
				ins, err := ws.ledger.Insights(ctx, top)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), ins)
			})
		},
	}
	cmd.Flags().IntVar(&top, "top", 0, "entries per list (default 5)")
	return cmd
}
