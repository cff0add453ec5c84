// Package ledger declares the ports between the ledger services and the
// record stores that back them.
package ledger

import (
	"context"
	"errors"

	"ledger/internal/core"
)

var ErrNotFound = errors.New("transaction not found")

// Ports for outbound adapters.
type (
	TransactionWriter interface {
		// Append stores t and returns the store-assigned identifier.
		Append(ctx context.Context, t core.Transaction) (id int64, err error)
	}

	TransactionGetter interface {
		Get(ctx context.Context, id int64) (core.Transaction, error)
	}

	// StatsReader runs fn against one consistent read scope. The scope is
	// released when fn returns, whatever the outcome.
	StatsReader interface {
		View(ctx context.Context, fn func(Snapshot) error) error
	}

	// Snapshot evaluates filtered reads. Every method applies the same
	// conjunctive predicate derived from f.
	Snapshot interface {
		SumAmount(ctx context.Context, f core.Filter, kind core.Kind) (float64, error)
		CategoryTotals(ctx context.Context, f core.Filter, kind core.Kind) ([]core.CategoryAmount, error)
		// List returns matching rows of both kinds, newest date first, then highest id first.
		List(ctx context.Context, f core.Filter) ([]core.Transaction, error)
	}

	// Store is the full record store used by the backend factory.
	Store interface {
		TransactionWriter
		TransactionGetter
		StatsReader
		Count(ctx context.Context) (int64, error)
		Ping(ctx context.Context) error
		Close() error
	}
)
