package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"ledger/internal/amqp"
	"ledger/internal/core"
	"ledger/internal/ledger"
	"ledger/internal/sheets"
)

// Source is the part of the record store the worker reads from.
type Source interface {
	ledger.TransactionGetter
	ledger.StatsReader
}

// ExportWorker copies stored transactions to Google Sheets
type ExportWorker struct {
	source   Source
	exporter sheets.TransactionExporter
	index    sheets.ExportIndex
}

// NewExportWorker wires the worker. index may be nil, in which case every
// message is exported without a duplicate check.
func NewExportWorker(source Source, exporter sheets.TransactionExporter, index sheets.ExportIndex) *ExportWorker {
	return &ExportWorker{
		source:   source,
		exporter: exporter,
		index:    index,
	}
}

// HandleTransactionRecorded processes a single transaction message from AMQP
func (w *ExportWorker) HandleTransactionRecorded(ctx context.Context, msg *amqp.TransactionRecordedMessage) error {
	slog.InfoContext(ctx, "Processing transaction message",
		"id", msg.ID,
		"kind", msg.Kind)

	t, err := w.source.Get(ctx, msg.ID)
	if errors.Is(err, ledger.ErrNotFound) {
		// Nothing to export; requeueing would loop forever
		slog.WarnContext(ctx, "Transaction not found, dropping message", "id", msg.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get transaction from storage: %w", err)
	}

	_, err = w.export(ctx, t)
	return err
}

// Backfill exports every transaction matching f that has no row yet.
// It recovers from messages lost while the worker was down.
func (w *ExportWorker) Backfill(ctx context.Context, f core.Filter) (int, error) {
	var pending []core.Transaction
	err := w.source.View(ctx, func(s ledger.Snapshot) error {
		var err error
		pending, err = s.List(ctx, f)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("list transactions: %w", err)
	}

	if len(pending) == 0 {
		slog.InfoContext(ctx, "No transactions to backfill",
			"start_date", f.StartDate.String(),
			"end_date", f.EndDate.String())
		return 0, nil
	}

	exported, skipped, failed := 0, 0, 0
	// List is newest first; export oldest first so the sheet reads chronologically
	for i := len(pending) - 1; i >= 0; i-- {
		ok, err := w.export(ctx, pending[i])
		switch {
		case err != nil:
			slog.ErrorContext(ctx, "Failed to export transaction during backfill",
				"id", pending[i].ID, "error", err)
			failed++
		case ok:
			exported++
		default:
			skipped++
		}
	}

	slog.InfoContext(ctx, "Backfill completed",
		"total", len(pending),
		"exported", exported,
		"skipped", skipped,
		"errors", failed)

	return exported, nil
}

// export appends t unless the index already has it. The bool reports
// whether a row was written.
func (w *ExportWorker) export(ctx context.Context, t core.Transaction) (bool, error) {
	if w.index != nil {
		done, err := w.index.Exported(ctx, t.ID)
		if err != nil {
			return false, fmt.Errorf("check export index: %w", err)
		}
		if done {
			slog.DebugContext(ctx, "Transaction already exported", "id", t.ID)
			return false, nil
		}
	}

	ref, err := w.exporter.Export(ctx, t)
	if err != nil {
		return false, fmt.Errorf("export to sheets: %w", err)
	}

	slog.InfoContext(ctx, "Successfully exported transaction",
		"id", t.ID,
		"sheets_ref", ref,
		"kind", t.Kind,
		"category", t.Category,
		"amount", t.Amount)

	return true, nil
}
