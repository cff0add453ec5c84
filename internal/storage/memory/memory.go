// Package memory is an in-process record store. It evaluates filters with
// core.Filter.Matches and sums with decimal arithmetic.
package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"ledger/internal/core"
	"ledger/internal/ledger"
)

type Store struct {
	mu    sync.RWMutex
	items []core.Transaction
	now   func() time.Time
}

var _ ledger.Store = (*Store)(nil)

func New() *Store {
	return &Store{now: time.Now}
}

// NewFromFiles seeds the store from base/seed_transactions.txt when present.
// Each line is "date,kind,category,amount[,note]"; blank lines and lines
// starting with # are skipped, and invalid lines are ignored.
func NewFromFiles(base string) *Store {
	s := New()
	for _, line := range readLines(filepath.Join(base, "seed_transactions.txt")) {
		parts := strings.SplitN(line, ",", 5)
		if len(parts) < 4 {
			continue
		}
		in := core.TransactionInput{Date: parts[0], Kind: parts[1], Category: parts[2], Amount: parts[3]}
		if len(parts) == 5 {
			in.Note = parts[4]
		}
		t, err := core.NewTransaction(in, core.SystemClock{})
		if err != nil {
			continue
		}
		_, _ = s.Append(context.Background(), t)
	}
	return s
}

// Append stores the transaction and assigns the next identifier.
func (s *Store) Append(_ context.Context, t core.Transaction) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.ID = int64(len(s.items)) + 1
	t.CreatedAt = s.now().UTC()
	s.items = append(s.items, t)
	return t.ID, nil
}

func (s *Store) Get(_ context.Context, id int64) (core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id < 1 || id > int64(len(s.items)) {
		return core.Transaction{}, fmt.Errorf("get transaction %d: %w", id, ledger.ErrNotFound)
	}
	return s.items[id-1], nil
}

func (s *Store) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.items)), nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

// View holds the read lock for the duration of fn.
func (s *Store) View(_ context.Context, fn func(ledger.Snapshot) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(snapshot{items: s.items})
}

type snapshot struct {
	items []core.Transaction
}

func (s snapshot) SumAmount(_ context.Context, f core.Filter, kind core.Kind) (float64, error) {
	total := decimal.Zero
	for _, t := range s.items {
		if t.Kind == kind && f.Matches(t) {
			total = total.Add(decimal.NewFromFloat(t.Amount))
		}
	}
	return total.InexactFloat64(), nil
}

func (s snapshot) CategoryTotals(_ context.Context, f core.Filter, kind core.Kind) ([]core.CategoryAmount, error) {
	sums := map[string]decimal.Decimal{}
	var order []string
	for _, t := range s.items {
		if t.Kind != kind || !f.Matches(t) {
			continue
		}
		if _, ok := sums[t.Category]; !ok {
			order = append(order, t.Category)
		}
		sums[t.Category] = sums[t.Category].Add(decimal.NewFromFloat(t.Amount))
	}

	out := make([]core.CategoryAmount, 0, len(order))
	for _, name := range order {
		out = append(out, core.CategoryAmount{Name: name, Amount: sums[name].InexactFloat64()})
	}
	return out, nil
}

func (s snapshot) List(_ context.Context, f core.Filter) ([]core.Transaction, error) {
	var out []core.Transaction
	for _, t := range s.items {
		if f.Matches(t) {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		di, dj := out[i].Date.String(), out[j].Date.String()
		if di != dj {
			return di > dj
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}
