// Package commands implements the ledgerctl command line.
package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"ledgerly/internal/backend"
	"ledgerly/internal/config"
	"ledgerly/internal/services"
)

// Version is set at build time with -ldflags.
var Version = "dev"

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	backend string
	url     string
	data    string
	db      string
	timeout time.Duration
	json    bool
}

// NewRootCommand creates the root CLI command with all subcommands
// registered. Flag defaults come from the environment, the same keys the
// server reads.
func NewRootCommand() *cobra.Command {
	env := config.Load()
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:     "ledgerly",
		Short:   "Inspect the monthly overview of a ledger",
		Version: Version,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.backend, "backend", env.DataBackend, "data backend: rest, memory or sqlite")
	flags.StringVar(&opts.url, "url", env.LedgerAPIURL, "ledger REST API base URL (rest backend)")
	flags.StringVar(&opts.data, "data", env.LedgerDataFile, "db.json file (memory backend)")
	flags.StringVar(&opts.db, "db", env.SQLiteDBPath, "SQLite database path (sqlite backend)")
	flags.DurationVar(&opts.timeout, "timeout", env.BackendTimeout, "backend request timeout")
	flags.BoolVar(&opts.json, "json", false, "print JSON instead of a table")

	rootCmd.AddCommand(
		newOverviewCommand(opts),
		newMonthCommand(opts),
		newAccountsCommand(opts),
	)

	return rootCmd
}

// withLedger opens the selected backend, runs fn against a ledger service
// over it and closes the backend. The CLI never writes, so a memory
// backend is not persisted.
func withLedger(ctx context.Context, opts *globalOptions, fn func(*services.LedgerService) error) error {
	cfg := backend.Config{
		Type:         backend.BackendType(opts.backend),
		APIURL:       opts.url,
		Timeout:      opts.timeout,
		DataFile:     opts.data,
		SQLiteDBPath: opts.db,
	}
	if !cfg.Type.IsValid() {
		return fmt.Errorf("unknown backend %q: must be one of %v", opts.backend, backend.GetBackendTypes())
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	res, err := backend.NewFactory(logger).CreateBackend(ctx, cfg)
	if err != nil {
		return fmt.Errorf("opening %s backend: %w", cfg.Type, err)
	}
	defer res.Close()

	svc := services.NewLedgerService(res.Store, nil, nil, services.LedgerServiceConfig{
		BackendTimeout: opts.timeout,
	})
	return fn(svc)
}
