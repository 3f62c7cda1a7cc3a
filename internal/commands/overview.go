package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"ledgerly/internal/core"
	"ledgerly/internal/overview"
	"ledgerly/internal/services"
)

func newOverviewCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "overview",
		Short: "List every month with its totals, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLedger(cmd.Context(), opts, func(svc *services.LedgerService) error {
				ov, err := svc.Overview(cmd.Context())
				if err != nil {
					return err
				}
				sums := overview.SummarizeAll(ov)
				if opts.json {
					if sums == nil {
						sums = []core.MonthSummary{}
					}
					return writeJSON(cmd.OutOrStdout(), sums)
				}

				t := newTable(cmd.OutOrStdout(), "MONTH", "TRANSACTIONS", "REVENUE", "EXPENSES", "BALANCE")
				for _, s := range sums {
					t.row(s.Month.String(), strconv.Itoa(s.Count), s.TotalRevenue.Display(), s.TotalExpense.Display(), s.Balance.Display())
				}
				if err := t.flush(); err != nil {
					return err
				}
				if n := len(ov.Quarantined); n > 0 {
					fmt.Fprintf(cmd.ErrOrStderr(), "%d record(s) skipped: unreadable createdAt\n", n)
				}
				return nil
			})
		},
	}
}
