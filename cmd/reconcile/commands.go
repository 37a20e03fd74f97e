package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eshaffer321/ledger-reconcile/internal/cli"
)

func serveCmd() *cobra.Command {
	var flags cli.ServeFlags
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the reconciliation API server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cli.RunServe(cmd.Context(), cfg, flags)
		},
	}
	flags.Bind(cmd.Flags())
	return cmd
}

func matchCmd() *cobra.Command {
	var flags cli.MatchFlags
	cmd := &cobra.Command{
		Use:   "match",
		Short: "Run one matching pass over two transaction files",
		Example: `  reconcile match --ledger ledger.json --bank bank.json
  reconcile match --ledger ledger.json --bank bank.json --date-window 5 -o results.json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cli.RunMatch(cmd.Context(), cfg, flags, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	flags.Bind(cmd.Flags())
	_ = cmd.MarkFlagRequired("ledger")
	_ = cmd.MarkFlagRequired("bank")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "reconcile %s\n", version)
		},
	}
}
