// Package main provides ledgerctl, the operator CLI for the registrations
// ledger. It runs the confirmation mail batches and inspects ticket status
// against the same store the server uses, so store.driver should be sqlite
// or postgres. The document lock then lives in that store too, and a batch
// started here waits for the server's writers and blocks them while it runs.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/registration-ledger/internal/app"
	"github.com/Shivanand-hulikatti/registration-ledger/internal/config"
	"github.com/Shivanand-hulikatti/registration-ledger/internal/logger"
)

var (
	// configDir is set by the --config flag.
	configDir string

	cfg    config.Config
	log    *zap.Logger
	ledger *app.App
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ledgerctl",
	Short: "Operate the registrations ledger",
	Long: `ledgerctl sends the registration and payment confirmation batches,
reports ticket status and prepares the PostgreSQL schema.`,
	SilenceUsage:       true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: teardown,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config", ".", "directory holding config.yaml and .env")

	rootCmd.AddCommand(sendInitialCmd)
	rootCmd.AddCommand(sendFinalCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(migrateCmd)
}

// setup loads config and, except for migrate, wires the services.
func setup(cmd *cobra.Command, args []string) error {
	var err error
	if cfg, err = config.Load(configDir); err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if log, err = logger.New(cfg.LogLevel, "console"); err != nil {
		return err
	}
	if cmd.Name() == migrateCmd.Name() {
		return nil
	}
	if ledger, err = app.New(cmd.Context(), cfg, log); err != nil {
		return fmt.Errorf("wire services: %w", err)
	}
	return nil
}

func teardown(cmd *cobra.Command, args []string) error {
	if ledger != nil {
		ledger.Close()
	}
	if log != nil {
		_ = log.Sync()
	}
	return nil
}
