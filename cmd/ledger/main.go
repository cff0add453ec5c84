package main

import (
	"errors"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"ledger/internal/cli"
	"ledger/internal/config"
	"ledger/internal/core"
	apphttp "ledger/internal/http"
	"ledger/internal/log"
	"ledger/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger, (*config.Config).Validate)

	if err := run(logger, cfg); err != nil {
		cli.Fatal(logger, "Server error", err, "port", cfg.Port)
	}
	logger.Info("Server stopped gracefully")
}

func run(logger *log.Logger, cfg *config.Config) error {
	ctx, stop := cli.ShutdownContext(logger)
	defer stop()

	res, err := cli.OpenBackend(ctx, logger, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", "error", err)
		}
	}()

	clock := core.SystemClock{}
	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Stats:              services.NewStatsService(res.Store, clock, cfg.DefaultBudget),
		Transactions:       services.NewTransactionService(res.Store, res.Publisher, clock),
		Store:              res.Store,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Logger:             logger.WithComponent(log.ComponentHTTP),
	})
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting ledger server",
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			"amqp_enabled", cfg.AMQPEnabled(),
			"default_budget", cfg.DefaultBudget)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return cli.Shutdown(logger, 30*time.Second, srv.Shutdown)
	})

	return g.Wait()
}
