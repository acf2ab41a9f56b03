package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"dreamsaver/internal/cli"
	"dreamsaver/internal/config"
	"dreamsaver/internal/log"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type rootOptions struct {
	envFiles []string
	jsonOut  bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "dreamsaver",
		Short: "Track savings goals and the deposits toward them",
		Long: `DreamSaver keeps a list of savings goals, each with a target amount,
a target date, an optional picture and a ledger of deposits and withdrawals.
It runs as a JSON API (serve) or straight from the command line.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return cli.LoadEnvFile(opts.envFiles...)
		},
	}
	root.PersistentFlags().StringSliceVar(&opts.envFiles, "env-file", []string{".env"}, "dotenv files to load before reading the environment")
	root.PersistentFlags().BoolVar(&opts.jsonOut, "json", false, "print results as JSON")

	root.AddCommand(
		newServeCmd(),
		newGoalsCmd(opts),
		newMovementCmd(opts, "save", "Record a deposit on a goal"),
		newMovementCmd(opts, "withdraw", "Record a withdrawal from a goal"),
		newAdviceCmd(opts),
		newSummaryCmd(opts),
	)
	return root
}

// openApp wires the goal service for a one-shot command. Logs go to stderr
// so they never mix with command output.
func openApp(ctx context.Context, stderr io.Writer) (*cli.App, error) {
	cfg := config.Load()
	level := log.ParseLevel(cfg.LogLevel)
	if cfg.LogLevel == "info" {
		level = slog.LevelWarn
	}
	logger := log.New(log.Config{
		Component: log.ComponentApp,
		Handler:   slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}),
	})
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cli.NewApp(ctx, cfg, logger, cli.AppOptions{})
}
