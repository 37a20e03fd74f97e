package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/eshaffer321/ledger-reconcile/internal/infrastructure/config"
)

var (
	cfgFile   string
	logLevel  string
	logFormat string
	version   = "dev"

	cfg *config.Config

	rootCmd = &cobra.Command{
		Use:   "reconcile",
		Short: "Match ledger entries against bank transactions",
		Long: `reconcile pairs internal ledger transactions with bank statement lines.

Candidates are scored on amount, date, vendor and reference. An optional
decision service picks between close candidates, and every proposed match
goes through human review before it is confirmed.`,
		SilenceUsage:      true,
		PersistentPreRunE: initConfig,
	}
)

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml, then environment)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (text, json)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(matchCmd())
	rootCmd.AddCommand(versionCmd())
}

func main() {
	// Set up signal handling
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		slog.Info("Received interrupt signal, shutting down gracefully...")
		cancel()
	}()

	err := rootCmd.ExecuteContext(ctx)
	cancel()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initConfig(_ *cobra.Command, _ []string) error {
	if cfgFile != "" {
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	} else {
		// Missing config.yaml is OK, environment and defaults fill in
		cfg = config.LoadOrEnv()
	}

	if logLevel != "" {
		cfg.Observability.Logging.Level = logLevel
	}
	if logFormat != "" {
		cfg.Observability.Logging.Format = logFormat
	}
	return nil
}
