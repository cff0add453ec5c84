package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"ledger/internal/backend"
	"ledger/internal/config"
	"ledger/internal/core"
	"ledger/internal/services"
)

func newAddCmd(a *app) *cobra.Command {
	var in core.TransactionInput

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record an income or expense transaction",
		Example: `  ledgerctl add --amount 12.50 --kind expense --category food --note lunch
  ledgerctl add --amount 2500 --kind income --category salary --date 2024-01-27`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withBackend(cmd.Context(), func(_ *config.Config, res *backend.BackendResult) error {
				svc := services.NewTransactionService(res.Store, res.Publisher, a.clock)
				t, err := svc.Record(cmd.Context(), in)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(a.out, "recorded #%d %s %s %s on %s\n",
					t.ID, t.Kind, t.Category, formatAmount(t.Amount), t.Date)
				return err
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&in.Amount, "amount", "", "positive amount")
	f.StringVar(&in.Kind, "kind", "expense", "income or expense")
	f.StringVar(&in.Category, "category", "", "category name")
	f.StringVar(&in.Date, "date", "", "YYYY-MM-DD, default today")
	f.StringVar(&in.Note, "note", "", "free text note")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("category")

	return cmd
}
