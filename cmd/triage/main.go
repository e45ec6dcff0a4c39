// Package main implements the triage CLI: digest passes, the River worker and fix administration.
package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/udupa-navya/cf-feedback-agent/internal/observability"
)

var version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("triage failed", "error", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "triage",
	Short: "Cluster, prioritize and digest user feedback",
	Long: `triage folds unprocessed feedback into issue clusters, tracks deployed fixes,
and produces a ranked digest that is stored and posted to the configured chat webhook.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(enqueueCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(deployFixCmd)
}

// setupLogging configures slog with the specified log level, writing to stderr.
func setupLogging(level string) {
	var logLevel slog.Level

	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	handler := slog.NewTextHandler(os.Stderr, opts)
	slog.SetDefault(slog.New(observability.NewTraceContextHandler(handler)))
}
