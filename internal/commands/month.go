package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"ledgerly/internal/core"
	"ledgerly/internal/overview"
	"ledgerly/internal/services"
)

func newMonthCommand(opts *globalOptions) *cobra.Command {
	var category, kind, search, sort string

	cmd := &cobra.Command{
		Use:   "month <YYYY-MM>",
		Short: "List one month's transactions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := core.ParseMonthKey(args[0])
			if err != nil {
				return err
			}
			f := overview.Filter{
				Category: category,
				Type:     kind,
				Search:   search,
				Order:    overview.ParseSortOrder(sort),
			}
			return withLedger(cmd.Context(), opts, func(svc *services.LedgerService) error {
				view, err := svc.Month(cmd.Context(), key, f)
				if err != nil {
					return err
				}
				if opts.json {
					return writeJSON(cmd.OutOrStdout(), view)
				}
				return printMonth(cmd, view)
			})
		},
	}

	cmd.Flags().StringVar(&category, "category", overview.All, "only this category")
	cmd.Flags().StringVar(&kind, "type", overview.All, "Expense, Revenue or All")
	cmd.Flags().StringVar(&search, "search", "", "case-insensitive title substring")
	cmd.Flags().StringVar(&sort, "sort", overview.NewestFirst.String(), `"Newest first" or "Oldest first"`)

	return cmd
}

func printMonth(cmd *cobra.Command, view services.MonthView) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s\n\n", view.Label)

	t := newTable(out, "DATE", "TYPE", "TITLE", "CATEGORY", "AMOUNT")
	for _, tx := range view.Transactions {
		amount := tx.Amount.Display()
		if tx.Kind == core.Expense {
			amount = "-" + amount
		}
		t.row(tx.Timestamp.Format("2006-01-02 15:04"), tx.Kind.Label(), tx.Title, tx.Category, amount)
	}
	if err := t.flush(); err != nil {
		return err
	}

	s := view.Summary
	fmt.Fprintf(out, "\n%d of %d transactions shown. Revenue %s, expenses %s, balance %s\n",
		len(view.Transactions), s.Count, s.TotalRevenue.Display(), s.TotalExpense.Display(), s.Balance.Display())
	return nil
}
