// cmd/repoetl/run.go
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"github-repo-etl/internal/auth"
	"github-repo-etl/internal/cache"
	"github-repo-etl/internal/config"
	"github-repo-etl/internal/github"
	"github-repo-etl/internal/normalize"
	"github-repo-etl/internal/pipeline"
	"github-repo-etl/internal/prompt"
	"github-repo-etl/internal/store"
)

// runOptions are the command-line overrides of a pipeline run.
type runOptions struct {
	csvPath string
	yes     bool
	noView  bool
}

func newRunCommand() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the GitHub to Postgres/Redis pipeline once",
		Long: `Run authenticates with GitHub, fetches the signed-in user's repositories,
replaces the repos and owners tables, mirrors both relations and the joined
report in Redis and exports the report as CSV.

Authentication uses GITHUB_TOKEN when it is set and the OAuth device flow for
GITHUB_CLIENT_ID otherwise.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, closeLog, err := setup()
			if err != nil {
				return err
			}
			defer closeLog()

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			return runPipeline(ctx, cfg, logger, os.Stdin, os.Stdout, opts)
		},
	}

	cmd.Flags().StringVar(&opts.csvPath, "csv", "", "CSV report path (overrides CSV_PATH)")
	cmd.Flags().BoolVar(&opts.yes, "yes", false, "Show the cached data without asking")
	cmd.Flags().BoolVar(&opts.noView, "no-view", false, "Skip the cached data views without asking")
	cmd.MarkFlagsMutuallyExclusive("yes", "no-view")

	return cmd
}

// runPipeline wires the pipeline components from cfg and executes one run.
func runPipeline(ctx context.Context, cfg *config.Config, logger *slog.Logger, in io.Reader, out io.Writer, opts runOptions) error {
	if opts.csvPath != "" {
		cfg.CSVPath = opts.csvPath
	}

	db, err := store.New(ctx, cfg.DBURL, logger)
	if err != nil {
		fmt.Fprintf(out, "Error while connecting to postgres DB. %v\nExiting the program.\n", err)
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}
	logger.Info("Database migrations applied successfully")

	console := prompt.NewConsole(in, out, logger)
	deps := pipeline.Deps{
		Auth: newAuthenticator(cfg, logger),
		NewLister: func(tok *oauth2.Token) pipeline.RepoLister {
			fetcher := github.NewFetcher(github.NewHTTPClient(ctx, tok.AccessToken), cfg.FetchMaxRetries, cfg.FetchBackoffFactor, logger)
			return github.NewClient(fetcher, cfg.GithubAPIURL, logger)
		},
		Normalizer: normalize.New(logger),
		Sink:       db,
		OpenCache: func(ctx context.Context) (pipeline.Cache, error) {
			return cache.New(ctx, cacheOptions(cfg), logger)
		},
		Prompter: console,
		Out:      out,
		Logger:   logger,
		CSVPath:  cfg.CSVPath,
	}
	switch {
	case opts.yes:
		deps.ViewPrompter = prompt.Fixed(true)
	case opts.noView:
		deps.ViewPrompter = prompt.Fixed(false)
	}

	_, err = pipeline.New(deps).Run(ctx)
	return err
}

func newAuthenticator(cfg *config.Config, logger *slog.Logger) pipeline.Authenticator {
	if cfg.GithubToken != "" {
		logger.Info("Using GITHUB_TOKEN, skipping the device flow")
		return auth.StaticToken(cfg.GithubToken)
	}
	flow := auth.NewDeviceFlow(cfg.GithubClientID, cfg.GithubOAuthURL, &http.Client{Timeout: 30 * time.Second}, logger)
	flow.MaxAttempts = cfg.AuthMaxAttempts
	flow.Timeout = cfg.AuthTimeout
	return flow
}

func cacheOptions(cfg *config.Config) cache.Options {
	return cache.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		TTL:      cfg.CacheTTL,
	}
}
