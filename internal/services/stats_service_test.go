package services

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger/internal/core"
	"ledger/internal/ledger"
	"ledger/internal/storage"
	"ledger/internal/storage/memory"
)

var clock = core.FixedClock{Day: core.NewDate(2024, 1, 20)}

// stores runs fn once per record store implementation.
func stores(t *testing.T, fn func(t *testing.T, store ledger.Store)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, memory.New())
	})
	t.Run("sqlite", func(t *testing.T) {
		repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "ledger.db"))
		require.NoError(t, err)
		t.Cleanup(func() { repo.Close() })
		fn(t, repo)
	})
}

func record(t *testing.T, store ledger.Store, amount, kind, category, date string) {
	t.Helper()
	_, err := NewTransactionService(store, nil, clock).Record(context.Background(), core.TransactionInput{
		Amount: amount, Kind: kind, Category: category, Date: date,
	})
	require.NoError(t, err)
}

func seed(t *testing.T, store ledger.Store) {
	record(t, store, "10", "expense", "food", "2024-01-03")
	record(t, store, "50", "expense", "rent", "2024-01-01")
	record(t, store, "2000", "income", "salary", "2024-01-01")
	record(t, store, "7.25", "expense", "food", "2024-01-15")
	record(t, store, "120", "expense", "travel", "2024-01-31")
	record(t, store, "300", "income", "gift", "2024-01-10")
	record(t, store, "999", "expense", "rent", "2023-12-31")
	record(t, store, "15", "expense", "fun", "2024-02-01")
}

func january() core.Filter {
	return core.Filter{StartDate: core.NewDate(2024, 1, 1), EndDate: core.NewDate(2024, 1, 31)}
}

func sumKind(records []core.Transaction, kind core.Kind) float64 {
	var total float64
	for _, r := range records {
		if r.Kind == kind {
			total += r.Amount
		}
	}
	return total
}

func sumBreakdown(cats []core.CategoryAmount) float64 {
	var total float64
	for _, c := range cats {
		total += c.Amount
	}
	return total
}

func TestComputeEmptyStore(t *testing.T) {
	stores(t, func(t *testing.T, store ledger.Store) {
		stats, err := NewStatsService(store, clock, 30000).Compute(context.Background(), january())
		require.NoError(t, err)
		assert.Zero(t, stats.TotalIncome)
		assert.Zero(t, stats.TotalExpense)
		assert.NotNil(t, stats.Categories)
		assert.Empty(t, stats.Categories)
		assert.NotNil(t, stats.Records)
		assert.Empty(t, stats.Records)
	})
}

func TestComputeConsistency(t *testing.T) {
	lo, hi, none := 8.0, 100.0, 0.0
	filters := map[string]core.Filter{
		"january":       january(),
		"category food": {StartDate: january().StartDate, EndDate: january().EndDate, Category: "food"},
		"bounded":       {StartDate: january().StartDate, EndDate: january().EndDate, MinAmount: &lo, MaxAmount: &hi},
		"min only":      {StartDate: core.NewDate(2023, 1, 1), EndDate: core.NewDate(2025, 1, 1), MinAmount: &lo},
		"max zero":      {StartDate: january().StartDate, EndDate: january().EndDate, MaxAmount: &none},
		"wide":          {StartDate: core.NewDate(2000, 1, 1), EndDate: core.NewDate(2100, 1, 1)},
	}

	stores(t, func(t *testing.T, store ledger.Store) {
		seed(t, store)
		svc := NewStatsService(store, clock, 30000)
		for name, f := range filters {
			stats, err := svc.Compute(context.Background(), f)
			require.NoError(t, err, name)

			assert.InDelta(t, stats.TotalExpense, sumBreakdown(stats.Categories), 1e-9, name)
			assert.InDelta(t, stats.TotalExpense, sumKind(stats.Records, core.Expense), 1e-9, name)
			assert.InDelta(t, stats.TotalIncome, sumKind(stats.Records, core.Income), 1e-9, name)
			for _, r := range stats.Records {
				assert.True(t, f.Matches(r), "%s: record %d outside filter", name, r.ID)
			}
		}
	})
}

func TestComputeJanuaryTotals(t *testing.T) {
	stores(t, func(t *testing.T, store ledger.Store) {
		seed(t, store)
		stats, err := NewStatsService(store, clock, 30000).Compute(context.Background(), january())
		require.NoError(t, err)

		assert.InDelta(t, 2300, stats.TotalIncome, 1e-9)
		assert.InDelta(t, 187.25, stats.TotalExpense, 1e-9)
		assert.Equal(t, []string{"travel", "rent", "food"}, stats.Labels())
		assert.InDeltaSlice(t, []float64{120, 50, 17.25}, stats.Amounts(), 1e-9)
		assert.Len(t, stats.Records, 6)
		assert.InDelta(t, 2112.75, stats.Balance(), 1e-9)
	})
}

func TestComputeOrdering(t *testing.T) {
	stores(t, func(t *testing.T, store ledger.Store) {
		record(t, store, "1", "expense", "a", "2024-01-01")
		record(t, store, "1", "income", "b", "2024-01-03")
		record(t, store, "1", "expense", "c", "2024-01-03")

		stats, err := NewStatsService(store, clock, 0).Compute(context.Background(), january())
		require.NoError(t, err)
		var ids []int64
		for _, r := range stats.Records {
			ids = append(ids, r.ID)
		}
		assert.Equal(t, []int64{3, 2, 1}, ids)
	})
}

func TestComputeCategorySort(t *testing.T) {
	stores(t, func(t *testing.T, store ledger.Store) {
		record(t, store, "10", "expense", "food", "2024-01-05")
		record(t, store, "50", "expense", "rent", "2024-01-06")

		stats, err := NewStatsService(store, clock, 0).Compute(context.Background(), january())
		require.NoError(t, err)
		assert.Equal(t, []core.CategoryAmount{{Name: "rent", Amount: 50}, {Name: "food", Amount: 10}}, stats.Categories)
	})
}

func TestComputeCategoryTiesAreLexicographic(t *testing.T) {
	stores(t, func(t *testing.T, store ledger.Store) {
		record(t, store, "20", "expense", "zoo", "2024-01-05")
		record(t, store, "20", "expense", "art", "2024-01-06")
		record(t, store, "20", "expense", "Mall", "2024-01-07")

		stats, err := NewStatsService(store, clock, 0).Compute(context.Background(), january())
		require.NoError(t, err)
		assert.Equal(t, []string{"Mall", "art", "zoo"}, stats.Labels())
	})
}

func TestComputeInvertedBoundsIsEmpty(t *testing.T) {
	lo, hi := 100.0, 50.0
	stores(t, func(t *testing.T, store ledger.Store) {
		seed(t, store)
		f := january()
		f.MinAmount, f.MaxAmount = &lo, &hi

		stats, err := NewStatsService(store, clock, 0).Compute(context.Background(), f)
		require.NoError(t, err)
		assert.Empty(t, stats.Records)
		assert.Empty(t, stats.Categories)
		assert.Zero(t, stats.TotalIncome)
		assert.Zero(t, stats.TotalExpense)
	})
}

func TestReportDegradesMalformedInput(t *testing.T) {
	stores(t, func(t *testing.T, store ledger.Store) {
		seed(t, store)
		svc := NewStatsService(store, clock, 30000)

		bad, err := svc.Report(context.Background(), core.FilterInput{MinAmount: "abc"}, "")
		require.NoError(t, err)
		good, err := svc.Report(context.Background(), core.FilterInput{}, "")
		require.NoError(t, err)

		assert.Equal(t, good.Stats, bad.Stats)
		require.Len(t, bad.Advisories, 1)
		assert.Equal(t, "min_amount", bad.Advisories[0].Field)
		assert.Empty(t, good.Advisories)
	})
}

func TestReportBudget(t *testing.T) {
	store := memory.New()
	record(t, store, "500", "expense", "rent", "2024-01-02")
	record(t, store, "800", "income", "salary", "2024-01-02")
	svc := NewStatsService(store, clock, 30000)

	r, err := svc.Report(context.Background(), core.FilterInput{}, "300")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01", r.Filter.StartDate.String())
	assert.Equal(t, "2024-01-31", r.Filter.EndDate.String())
	assert.Equal(t, 300.0, r.Budget)
	assert.Equal(t, -200.0, r.BudgetDiff)
	assert.Equal(t, 300.0, r.Balance)
	assert.Equal(t, 30000.0, r.DefaultBudget)

	r, err = svc.Report(context.Background(), core.FilterInput{}, "many")
	require.NoError(t, err)
	assert.Equal(t, 30000.0, r.Budget)
	assert.Equal(t, 29500.0, r.BudgetDiff)
	require.Len(t, r.Advisories, 1)
	assert.Equal(t, "budget", r.Advisories[0].Field)
}

func TestReportOverflowingInputIsMalformed(t *testing.T) {
	store := memory.New()
	record(t, store, "500", "expense", "rent", "2024-01-02")
	svc := NewStatsService(store, clock, 30000)

	r, err := svc.Report(context.Background(), core.FilterInput{MinAmount: "1e400"}, "1e400")
	require.NoError(t, err)
	assert.Nil(t, r.Filter.MinAmount)
	assert.Equal(t, 30000.0, r.Budget)
	assert.Equal(t, 29500.0, r.BudgetDiff)
	require.Len(t, r.Advisories, 2)

	_, err = json.Marshal(r)
	assert.NoError(t, err)
}

type failingReader struct{ err error }

func (f failingReader) View(ctx context.Context, fn func(ledger.Snapshot) error) error {
	return fn(failingSnapshot(f))
}

type failingSnapshot struct{ err error }

func (f failingSnapshot) SumAmount(context.Context, core.Filter, core.Kind) (float64, error) {
	return 1, nil
}

func (f failingSnapshot) CategoryTotals(context.Context, core.Filter, core.Kind) ([]core.CategoryAmount, error) {
	return nil, f.err
}

func (f failingSnapshot) List(context.Context, core.Filter) ([]core.Transaction, error) {
	return nil, nil
}

func TestComputeNoPartialResultOnFailure(t *testing.T) {
	ioErr := errors.New("disk I/O error")
	stats, err := NewStatsService(failingReader{err: ioErr}, clock, 0).Compute(context.Background(), january())
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrStorage)
	assert.ErrorIs(t, err, ioErr)
	assert.Equal(t, core.Stats{}, stats)
}
