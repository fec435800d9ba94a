// cmd/repoetl/main.go
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github-repo-etl/internal/config"
	apperrors "github-repo-etl/internal/errors"
)

func main() {
	rootCmd := newRootCommand()
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, apperrors.ErrCancelled) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(exitCode(err))
	}
}

func newRootCommand() *cobra.Command {
	runCmd := newRunCommand()
	rootCmd := &cobra.Command{
		Use:   "repoetl",
		Short: "Load your GitHub repositories into Postgres and Redis",
		Long: `repoetl authenticates against GitHub with the device flow, fetches the
repositories of the signed-in user, normalizes them into repos and owners
relations, stores them in Postgres, mirrors them in Redis and writes a joined
CSV report.

Running repoetl without a subcommand is the same as "repoetl run".`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runCmd.RunE,
	}
	rootCmd.Flags().AddFlagSet(runCmd.Flags())
	rootCmd.AddCommand(runCmd, newServeCommand())
	return rootCmd
}

// exitCode maps a command error to the process exit status. An operator who
// declines to retry authentication ends the program normally.
func exitCode(err error) int {
	if err == nil || errors.Is(err, apperrors.ErrCancelled) {
		return 0
	}
	return 1
}

// setup loads configuration and builds the process logger. The returned
// closer releases the log file, if any.
func setup() (*config.Config, *slog.Logger, func(), error) {
	// 1. Initialize structured logger
	logLevel := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	// 2. Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	setLogLevel(cfg.LogLevel, logLevel)

	closer := func() {}
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		logger = newLogger(f, logLevel)
		slog.SetDefault(logger)
		closer = func() { _ = f.Close() }
	}
	logger.Info("Configuration loaded successfully")
	return cfg, logger, closer, nil
}

func newLogger(w io.Writer, level slog.Leveler) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

func setLogLevel(level string, v *slog.LevelVar) {
	switch level {
	case "debug":
		v.Set(slog.LevelDebug)
	case "warn":
		v.Set(slog.LevelWarn)
	case "error":
		v.Set(slog.LevelError)
	default:
		v.Set(slog.LevelInfo)
	}
}
