package main

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"ledger/internal/amqp"
	"ledger/internal/cli"
	"ledger/internal/config"
	"ledger/internal/core"
	"ledger/internal/log"
	gsheet "ledger/internal/sheets/google"
	"ledger/internal/storage"
	"ledger/internal/worker"
)

// backfillInterval is how often the current month is re-checked for
// transactions whose event was lost.
const backfillInterval = time.Hour

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker)
	logger.Info("Starting ledger-worker")

	cfg := cli.LoadAndValidateConfig(logger, func(c *config.Config) error {
		return errors.Join(c.Validate(), c.ValidateWorker())
	})

	if err := run(logger, cfg); err != nil && !errors.Is(err, context.Canceled) {
		cli.Fatal(logger, "Worker stopped with error", err)
	}
	logger.Info("Worker shutdown complete")
}

func run(logger *log.Logger, cfg *config.Config) error {
	ctx, stop := cli.ShutdownContext(logger)
	defer stop()

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		return err
	}
	defer repo.Close()

	sheetsClient, err := gsheet.New(ctx, cfg.GoogleSpreadsheetID, cfg.GoogleSheetName)
	if err != nil {
		return err
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		return err
	}
	defer amqpClient.Close()

	exporter := worker.NewExportWorker(repo, sheetsClient, sheetsClient)
	clock := core.SystemClock{}

	backfill := func(ctx context.Context) {
		start, end := core.MonthRange(clock.Today())
		if _, err := exporter.Backfill(ctx, core.Filter{StartDate: start, EndDate: end}); err != nil {
			logger.Error("Backfill failed", "error", err)
		}
	}

	// Catch up on anything recorded while the worker was down
	logger.Info("Performing startup backfill...")
	backfill(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return amqpClient.ConsumeTransactionRecorded(gctx, exporter.HandleTransactionRecorded)
	})
	g.Go(func() error {
		ticker := time.NewTicker(backfillInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				backfill(gctx)
			}
		}
	})

	return g.Wait()
}
