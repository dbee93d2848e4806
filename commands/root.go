// Package commands implements the olx-car-scraper CLI.
package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"olx-car-scraper/config"
	"olx-car-scraper/fetcher"
	"olx-car-scraper/storage"
	"olx-car-scraper/utils"
)

var rootCmd = &cobra.Command{
	Use:   "olx-car-scraper",
	Short: "Scrape OLX car listings into a local database",
	Long: `olx-car-scraper collects car listings from OLX Portugal for a given
model, keeps them in a database keyed by listing ID and reports on them.

Configuration comes from the environment (or a .env file): DATABASE_DRIVER,
DATABASE_URL, FETCH_MODE, MAX_PAGES, DELAY_BETWEEN_REQUESTS and friends.

Examples:
  # Create the tables
  olx-car-scraper init-db

  # Scrape up to 5 result pages for a model
  olx-car-scraper scrape -c "lancia delta hf" -p 5

  # Export what is stored as JSON
  olx-car-scraper export -c "lancia delta" --format json -o delta.json`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		current = a
		return nil
	},
}

// current is the app built for the command being run.
var current *app

func init() {
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error (overrides LOG_LEVEL)")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// app carries what every command needs. Tests build one directly with a
// fake fetcher factory and an in-memory store.
type app struct {
	cfg       *config.Config
	logger    *utils.Logger
	out       io.Writer
	factory   fetcher.Factory
	openStore func(ctx context.Context) (storage.Store, error)
}

func newApp(cfg *config.Config, logger *utils.Logger, out io.Writer) *app {
	return &app{
		cfg:     cfg,
		logger:  logger,
		out:     out,
		factory: newFetcherFactory(cfg, logger),
		openStore: func(ctx context.Context) (storage.Store, error) {
			return openSQLStore(ctx, cfg, logger)
		},
	}
}

func loadApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	flags := cmd.Flags()
	if lvl, _ := flags.GetString("log-level"); lvl != "" {
		cfg.LogLevel = lvl
	}
	if debug, _ := flags.GetBool("debug"); debug {
		cfg.LogLevel = "debug"
	}

	logger := utils.NewLogger()
	logger.SetLevel(utils.ParseLevel(cfg.LogLevel))
	return newApp(cfg, logger, os.Stdout), nil
}

// newFetcherFactory picks the transport named by FETCH_MODE. Pacing and
// retries are layered on by the scraper.
func newFetcherFactory(cfg *config.Config, logger *utils.Logger) fetcher.Factory {
	return func(ctx context.Context) (fetcher.Fetcher, error) {
		if cfg.FetchMode == config.FetchModeStatic {
			return fetcher.NewStatic(fetcher.StaticConfig{
				UserAgent: cfg.UserAgent,
				Timeout:   cfg.RequestTimeout,
			}, logger), nil
		}
		b, err := fetcher.NewBrowser(ctx, fetcher.BrowserConfig{
			ChromeBin:   cfg.ChromeBin,
			UserAgent:   cfg.UserAgent,
			PageTimeout: cfg.RequestTimeout,
		}, logger)
		if err != nil {
			return nil, err
		}
		return b, nil
	}
}

// openSQLStore connects to the configured database and makes sure the
// schema exists.
func openSQLStore(ctx context.Context, cfg *config.Config, logger *utils.Logger) (storage.Store, error) {
	s, err := storage.NewSQLStore(ctx, cfg.DatabaseDriver, cfg.DSN())
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	logger.Debug("[db] Connected to %s store", cfg.DatabaseDriver)
	return s, nil
}

// stdout hides the Close method of the app's output so record writers never
// close the process's stdout.
func (a *app) stdout() io.Writer {
	return struct{ io.Writer }{a.out}
}

func closeStore(s storage.Store, logger *utils.Logger) {
	if err := s.Close(); err != nil {
		logger.Warn("[db] Closing store: %v", err)
	}
}
