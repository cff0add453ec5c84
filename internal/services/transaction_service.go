package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"ledger/internal/core"
	"ledger/internal/ledger"
)

// EventPublisher announces stored transactions to downstream consumers.
type EventPublisher interface {
	PublishTransactionRecorded(ctx context.Context, id int64, kind core.Kind) error
}

// TransactionService validates and stores new transactions, then publishes
// an event for the export worker.
type TransactionService struct {
	writer    ledger.TransactionWriter
	publisher EventPublisher
	clock     core.Clock
}

func NewTransactionService(writer ledger.TransactionWriter, publisher EventPublisher, clock core.Clock) *TransactionService {
	if clock == nil {
		clock = core.SystemClock{}
	}
	return &TransactionService{
		writer:    writer,
		publisher: publisher,
		clock:     clock,
	}
}

// Record parses in, stores it and returns the stored transaction.
// Invalid input yields a *core.ValidationError and nothing is written;
// store failures yield a *core.StorageError.
func (s *TransactionService) Record(ctx context.Context, in core.TransactionInput) (core.Transaction, error) {
	t, err := core.NewTransaction(in, s.clock)
	if err != nil {
		return core.Transaction{}, err
	}

	id, err := s.writer.Append(ctx, t)
	if err != nil {
		return core.Transaction{}, core.WrapStorage("insert transaction", err)
	}
	t.ID = id

	if err := s.publishRecorded(ctx, t); err != nil {
		slog.ErrorContext(ctx, "Failed to publish transaction event",
			"id", id, "error", err)
		// Don't fail the request - transaction is saved locally
	}

	return t, nil
}

func (s *TransactionService) publishRecorded(ctx context.Context, t core.Transaction) error {
	if s.publisher == nil {
		slog.DebugContext(ctx, "No event publisher configured, skipping transaction event", "id", t.ID)
		return nil
	}
	return s.publisher.PublishTransactionRecorded(ctx, t.ID, t.Kind)
}

// Close releases the publisher connection when it holds one.
func (s *TransactionService) Close() error {
	if c, ok := s.publisher.(io.Closer); ok {
		if err := c.Close(); err != nil {
			return fmt.Errorf("close publisher: %w", err)
		}
	}
	return nil
}
