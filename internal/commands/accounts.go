package commands

import (
	"strconv"

	"github.com/spf13/cobra"

	"ledgerly/internal/services"
)

func newAccountsCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "accounts",
		Short: "List accounts with the net activity of their transactions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLedger(cmd.Context(), opts, func(svc *services.LedgerService) error {
				accounts, err := svc.Accounts(cmd.Context())
				if err != nil {
					return err
				}
				if opts.json {
					return writeJSON(cmd.OutOrStdout(), accounts)
				}

				t := newTable(cmd.OutOrStdout(), "ID", "NAME", "TYPE", "BALANCE", "CURRENCY", "TRANSACTIONS", "NET")
				for _, a := range accounts {
					t.row(a.Account.ID, a.Account.Name, string(a.Account.Type), a.Account.Balance.Display(),
						a.Account.Currency, strconv.Itoa(a.Activity.Count), a.Activity.Net.Display())
				}
				return t.flush()
			})
		},
	}
}
