package memory

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger/internal/core"
	"ledger/internal/ledger"
)

func TestMemoryStoreAppendAndGet(t *testing.T) {
	s := New()
	ctx := context.Background()

	id, err := s.Append(ctx, core.Transaction{Amount: 1.23, Kind: core.Expense, Category: "A", Date: core.NewDate(2024, 1, 1)})
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "A", got.Category)
	assert.False(t, got.CreatedAt.IsZero())

	_, err = s.Get(ctx, 2)
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestMemorySnapshotSumsExactly(t *testing.T) {
	s := New()
	ctx := context.Background()
	for _, amt := range []float64{0.1, 0.2, 0.3} {
		_, err := s.Append(ctx, core.Transaction{Amount: amt, Kind: core.Expense, Category: "x", Date: core.NewDate(2024, 1, 1)})
		require.NoError(t, err)
	}
	f := core.Filter{StartDate: core.NewDate(2024, 1, 1), EndDate: core.NewDate(2024, 1, 31)}

	err := s.View(ctx, func(snap ledger.Snapshot) error {
		total, err := snap.SumAmount(ctx, f, core.Expense)
		require.NoError(t, err)
		assert.Equal(t, 0.6, total)
		return nil
	})
	require.NoError(t, err)
}

func TestNewFromFilesSeeds(t *testing.T) {
	dir := t.TempDir()
	// No file -> empty store
	n, _ := NewFromFiles(dir).Count(context.Background())
	assert.Zero(t, n)

	content := "# date,kind,category,amount,note\n" +
		"2024-01-02,expense,food,12.50,lunch\n" +
		"2024-01-03,transfer,food,1\n" +
		"\n" +
		"2024-01-04,income,salary,1000\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "seed_transactions.txt"), []byte(content), 0o644))

	s := NewFromFiles(dir)
	n, _ = s.Count(context.Background())
	assert.Equal(t, int64(2), n)

	first, err := s.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "lunch", first.Note)
}
