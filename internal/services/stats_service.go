package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"ledger/internal/core"
	"ledger/internal/ledger"
)

// StatsService computes dashboard aggregates from a record store.
type StatsService struct {
	reader        ledger.StatsReader
	clock         core.Clock
	defaultBudget float64
}

func NewStatsService(reader ledger.StatsReader, clock core.Clock, defaultBudget float64) *StatsService {
	if clock == nil {
		clock = core.SystemClock{}
	}
	return &StatsService{
		reader:        reader,
		clock:         clock,
		defaultBudget: defaultBudget,
	}
}

// DefaultBudget returns the configured fallback budget.
func (s *StatsService) DefaultBudget() float64 {
	return s.defaultBudget
}

// Today is the date the service treats as the current day.
func (s *StatsService) Today() core.Date {
	return s.clock.Today()
}

// Compute returns income total, expense total, the expense breakdown by
// category and the matching records, all read inside one store scope with
// the same filter. It returns either a complete Stats or an error.
//
// The breakdown is ordered by amount descending; equal amounts are ordered
// by category name ascending.
func (s *StatsService) Compute(ctx context.Context, f core.Filter) (core.Stats, error) {
	var stats core.Stats

	err := s.reader.View(ctx, func(snap ledger.Snapshot) error {
		income, err := snap.SumAmount(ctx, f, core.Income)
		if err != nil {
			return fmt.Errorf("total income: %w", err)
		}
		expense, err := snap.SumAmount(ctx, f, core.Expense)
		if err != nil {
			return fmt.Errorf("total expense: %w", err)
		}
		cats, err := snap.CategoryTotals(ctx, f, core.Expense)
		if err != nil {
			return fmt.Errorf("category breakdown: %w", err)
		}
		records, err := snap.List(ctx, f)
		if err != nil {
			return fmt.Errorf("list records: %w", err)
		}

		stats = core.Stats{
			TotalIncome:  income,
			TotalExpense: expense,
			Categories:   cats,
			Records:      records,
		}
		return nil
	})
	if err != nil {
		return core.Stats{}, core.WrapStorage("compute stats", err)
	}

	sortBreakdown(stats.Categories)
	if stats.Categories == nil {
		stats.Categories = []core.CategoryAmount{}
	}
	if stats.Records == nil {
		stats.Records = []core.Transaction{}
	}

	slog.DebugContext(ctx, "Stats computed",
		"start_date", f.StartDate.String(),
		"end_date", f.EndDate.String(),
		"category", f.Category,
		"records", len(stats.Records),
		"categories", len(stats.Categories))

	return stats, nil
}

// Report builds the full presentation payload from raw request fields.
// Malformed amount bounds and budget degrade to advisories.
func (s *StatsService) Report(ctx context.Context, in core.FilterInput, budgetRaw string) (core.Report, error) {
	f, advisories := core.BuildFilter(in, s.clock)
	budget, adv := core.ParseBudget(budgetRaw, s.defaultBudget)
	if adv != nil {
		advisories = append(advisories, *adv)
	}
	for _, a := range advisories {
		slog.WarnContext(ctx, "Filter input ignored", "field", a.Field, "raw", a.Raw)
	}

	stats, err := s.Compute(ctx, f)
	if err != nil {
		return core.Report{}, err
	}

	return core.Report{
		Filter:        f,
		Budget:        budget,
		DefaultBudget: s.defaultBudget,
		BudgetDiff:    core.EvaluateBudget(stats.TotalExpense, budget),
		Balance:       stats.Balance(),
		Advisories:    advisories,
		Stats:         stats,
	}, nil
}

func sortBreakdown(cats []core.CategoryAmount) {
	sort.SliceStable(cats, func(i, j int) bool {
		if cats[i].Amount != cats[j].Amount {
			return cats[i].Amount > cats[j].Amount
		}
		return cats[i].Name < cats[j].Name
	})
}
