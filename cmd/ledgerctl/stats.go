package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"ledger/internal/backend"
	"ledger/internal/config"
	"ledger/internal/core"
	"ledger/internal/services"
)

func newStatsCmd(a *app) *cobra.Command {
	var (
		in      core.FilterInput
		budget  string
		asJSON  bool
		records bool
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show totals, category breakdown and budget for a date range",
		Long: `Without dates the current month is used. Malformed amount bounds and
budget are ignored with a warning instead of failing.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withBackend(cmd.Context(), func(cfg *config.Config, res *backend.BackendResult) error {
				svc := services.NewStatsService(res.Store, a.clock, cfg.DefaultBudget)
				report, err := svc.Report(cmd.Context(), in, budget)
				if err != nil {
					return err
				}
				if asJSON {
					enc := json.NewEncoder(a.out)
					enc.SetIndent("", "  ")
					return enc.Encode(report)
				}
				return printReport(a.out, report, records)
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&in.StartDate, "start", "", "first day, YYYY-MM-DD")
	f.StringVar(&in.EndDate, "end", "", "last day, YYYY-MM-DD")
	f.StringVar(&in.Category, "category", "", "only this category")
	f.StringVar(&in.MinAmount, "min", "", "minimum amount")
	f.StringVar(&in.MaxAmount, "max", "", "maximum amount")
	f.StringVar(&budget, "budget", "", "budget to compare expenses against")
	f.BoolVar(&asJSON, "json", false, "print the full report as JSON")
	f.BoolVar(&records, "records", false, "list matching transactions")

	return cmd
}

func printReport(w io.Writer, r core.Report, withRecords bool) error {
	for _, adv := range r.Advisories {
		fmt.Fprintf(w, "warning: %s\n", adv.Message)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(w, "%s .. %s\n", r.Filter.StartDate, r.Filter.EndDate)
	fmt.Fprintf(tw, "income\t%s\t\n", formatAmount(r.TotalIncome))
	fmt.Fprintf(tw, "expense\t%s\t\n", formatAmount(r.TotalExpense))
	fmt.Fprintf(tw, "balance\t%s\t\n", formatAmount(r.Balance))
	fmt.Fprintf(tw, "budget\t%s\t\n", formatAmount(r.Budget))
	fmt.Fprintf(tw, "remaining\t%s\t\n", formatAmount(r.BudgetDiff))
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(r.Categories) > 0 {
		fmt.Fprintln(w, "\nexpenses by category")
		for _, c := range r.Categories {
			fmt.Fprintf(tw, "%s\t%s\t\n", c.Name, formatAmount(c.Amount))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	if withRecords && len(r.Records) > 0 {
		fmt.Fprintln(w, "\ntransactions")
		for _, t := range r.Records {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t\n", t.ID, t.Date, t.Kind, t.Category, formatAmount(t.Amount), t.Note)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	return nil
}

func formatAmount(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}
