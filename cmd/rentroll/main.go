package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/adverant/nexus/rentroll-worker/internal/logging"
)

var version = "dev"

func newRootCmd() *cobra.Command {
	var logLevel, logFormat string

	root := &cobra.Command{
		Use:   "rentroll",
		Short: "Reconstruct rent-roll tables from PDFs, scans and text",
		Long: `rentroll reads rent-roll reports (text-layer PDFs, scanned pages or plain
text), rebuilds one record per unit and writes them as a table, JSON or HTML.

Settings come from the environment (and .env.rentroll when present);
flags override them.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			_ = godotenv.Load(".env.rentroll")
			if !cmd.Flags().Changed("log-level") {
				if env := os.Getenv("LOG_LEVEL"); env != "" {
					logLevel = env
				}
			}
			// Logs go to stderr so stdout stays clean for --json
			return logging.SetupWriter(cmd.ErrOrStderr(), logLevel, logFormat)
		},
	}

	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")

	root.AddCommand(extractCmd())
	root.AddCommand(enqueueCmd())
	root.AddCommand(jobCmd())
	root.AddCommand(versionCmd())
	return root
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		slog.Info("Received interrupt signal, shutting down")
		cancel()
	}()

	err := newRootCmd().ExecuteContext(ctx)
	cancel()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "rentroll %s\n", version)
		},
	}
}
