package sheets

import (
	"context"

	"ledger/internal/core"
)

// Ports for outbound adapters.
type (
	// TransactionExporter appends stored transactions to an external sheet.
	TransactionExporter interface {
		Export(ctx context.Context, t core.Transaction) (rowRef string, err error)
	}

	// ExportIndex reports whether a transaction id already has a row.
	// AMQP delivery is at-least-once, so the worker checks before appending.
	ExportIndex interface {
		Exported(ctx context.Context, id int64) (bool, error)
	}
)
