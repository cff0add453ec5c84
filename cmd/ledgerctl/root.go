package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"ledger/internal/backend"
	"ledger/internal/config"
	"ledger/internal/core"
	"ledger/internal/log"
)

// Viper keys. Each one is also read from the upper-cased environment variable.
const (
	keyConfig        = "config"
	keyBackend       = "data_backend"
	keyDBPath        = "sqlite_db_path"
	keyDataDir       = "data_dir"
	keyDefaultBudget = "default_budget"
	keyLogLevel      = "log_level"
	keyAMQPURL       = "amqp_url"
)

type app struct {
	v      *viper.Viper
	out    io.Writer
	clock  core.Clock
	logger *log.Logger
}

func newApp(out io.Writer, clock core.Clock) *app {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	defaults := config.Load()
	v.SetDefault(keyBackend, defaults.DataBackend)
	v.SetDefault(keyDBPath, defaults.SQLiteDBPath)
	v.SetDefault(keyDataDir, "data")
	v.SetDefault(keyDefaultBudget, defaults.DefaultBudget)
	v.SetDefault(keyLogLevel, "warn")
	v.SetDefault(keyAMQPURL, defaults.AMQPURL)

	return &app{v: v, out: out, clock: clock}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "ledgerctl",
		Short: "Record transactions and query ledger statistics",
		Long: `ledgerctl works directly against the ledger record store.
Settings come from flags, then environment variables, then an optional TOML config file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}

	flags := root.PersistentFlags()
	flags.String(keyConfig, "", "path to a TOML config file")
	flags.String("backend", "", "record store: "+strings.Join(backend.GetBackendTypeStrings(), " or "))
	flags.String("db", "", "SQLite database path")
	flags.String("data-dir", "", "seed directory for the memory backend")
	flags.String("log-level", "", "log level: debug, info, warn, error")

	_ = a.v.BindPFlag(keyConfig, flags.Lookup(keyConfig))
	_ = a.v.BindPFlag(keyBackend, flags.Lookup("backend"))
	_ = a.v.BindPFlag(keyDBPath, flags.Lookup("db"))
	_ = a.v.BindPFlag(keyDataDir, flags.Lookup("data-dir"))
	_ = a.v.BindPFlag(keyLogLevel, flags.Lookup("log-level"))

	root.AddCommand(newAddCmd(a), newStatsCmd(a))
	return root
}

// init reads the optional config file and sets up logging.
func (a *app) init() error {
	if path := a.v.GetString(keyConfig); path != "" {
		a.v.SetConfigFile(path)
		a.v.SetConfigType("toml")
		if err := a.v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}
	a.logger = log.NewWithLevel(log.ComponentCLI, a.v.GetString(keyLogLevel))
	log.SetDefault(a.logger)
	return nil
}

// config assembles the application config from viper.
func (a *app) config() (*config.Config, error) {
	cfg := config.Load()
	cfg.DataBackend = a.v.GetString(keyBackend)
	cfg.SQLiteDBPath = a.v.GetString(keyDBPath)
	cfg.AMQPURL = a.v.GetString(keyAMQPURL)

	budget := core.ParseNumber(a.v.GetString(keyDefaultBudget))
	if budget.Ok() {
		cfg.DefaultBudget = budget.Value
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// withBackend opens the configured store for the duration of fn.
func (a *app) withBackend(ctx context.Context, fn func(*config.Config, *backend.BackendResult) error) error {
	cfg, err := a.config()
	if err != nil {
		return err
	}

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	bcfg.DataDirectory = a.v.GetString(keyDataDir)

	res, err := backend.NewFactory(a.logger.Logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return fmt.Errorf("create %s backend: %w", bcfg.Type, err)
	}
	defer func() {
		if err := res.Cleanup(); err != nil {
			a.logger.Warn("Backend cleanup failed", "error", err)
		}
	}()

	return fn(cfg, res)
}
