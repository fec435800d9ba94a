// internal/pipeline/pipeline.go
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"

	"github.com/google/go-github/v62/github"
	"golang.org/x/oauth2"

	apperrors "github-repo-etl/internal/errors"
	"github-repo-etl/internal/model"
)

// State is a stage of a pipeline run.
type State int

const (
	Authenticating State = iota
	Fetching
	Normalizing
	Persisting
	Caching
	Reporting
	Done
	Aborted
)

func (s State) String() string {
	switch s {
	case Authenticating:
		return "authenticating"
	case Fetching:
		return "fetching"
	case Normalizing:
		return "normalizing"
	case Persisting:
		return "persisting"
	case Caching:
		return "caching"
	case Reporting:
		return "reporting"
	case Done:
		return "done"
	case Aborted:
		return "aborted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Authenticator obtains an API token.
type Authenticator interface {
	Authenticate(ctx context.Context, out io.Writer) (*oauth2.Token, error)
}

// RepoLister fetches the authenticated user's repositories.
type RepoLister interface {
	ListUserRepos(ctx context.Context) ([]*github.Repository, error)
}

// Normalizer splits raw repositories into the repos and owners relations.
type Normalizer interface {
	Normalize(raw []*github.Repository) (model.Repositories, model.Owners, error)
}

// Sink is the durable relational store.
type Sink interface {
	ReplaceTable(ctx context.Context, rel model.Relation) (int64, error)
	ExportCSV(ctx context.Context, path string) (int64, error)
	QueryJoinedReport(ctx context.Context) ([]model.ReportRow, error)
}

// Cache is the key-value mirror of the relations.
type Cache interface {
	Put(ctx context.Context, key string, v any) error
	Get(ctx context.Context, key string, dst any) error
	Close() error
}

// Prompter asks the operator a yes/no question.
type Prompter interface {
	Confirm(question string) (bool, error)
}

// Deps are the collaborators of a Driver.
type Deps struct {
	Auth Authenticator
	// NewLister builds a lister that authenticates with tok.
	NewLister  func(tok *oauth2.Token) RepoLister
	Normalizer Normalizer
	Sink       Sink
	// OpenCache connects to the cache. A failure only disables caching.
	OpenCache func(ctx context.Context) (Cache, error)
	Prompter  Prompter
	// ViewPrompter answers the view-cached-data questions. Nil means Prompter.
	ViewPrompter Prompter
	Out          io.Writer
	Logger       *slog.Logger
	CSVPath      string
}

// Summary describes the outcome of a run.
type Summary struct {
	State        State
	Repositories int
	Owners       int
	ReportRows   int
	CSVPath      string
	Cached       bool
}

// Driver sequences one pipeline run.
type Driver struct {
	deps   Deps
	logger *slog.Logger
	out    io.Writer
}

// New creates a Driver.
func New(deps Deps) *Driver {
	return &Driver{deps: deps, logger: deps.Logger, out: deps.Out}
}

// Run executes authenticate, fetch, normalize, persist, cache and report in
// order. On failure the summary is left in the Aborted state and the error is
// returned; errors.Is(err, apperrors.ErrCancelled) means the operator gave up.
func (d *Driver) Run(ctx context.Context) (*Summary, error) {
	sum := &Summary{CSVPath: d.deps.CSVPath}
	d.logger.Info("Starting the program")

	d.enter(sum, Authenticating)
	tok, err := d.authenticate(ctx)
	if err != nil {
		return d.abort(sum, "Error while getting token from Github API", err)
	}

	d.enter(sum, Fetching)
	raw, err := d.deps.NewLister(tok).ListUserRepos(ctx)
	if err != nil {
		return d.abort(sum, "Error while getting data from Github API despite retrying. No JSON Data received", err)
	}

	d.enter(sum, Normalizing)
	repos, owners, err := d.deps.Normalizer.Normalize(raw)
	if err != nil {
		return d.abort(sum, "Error while normalizing data", err)
	}
	sum.Repositories, sum.Owners = len(repos), len(owners)

	d.enter(sum, Persisting)
	for _, rel := range []model.Relation{repos, owners} {
		if _, err := d.deps.Sink.ReplaceTable(ctx, rel); err != nil {
			return d.abort(sum, "Error while loading data to postgres DB", err)
		}
	}
	fmt.Fprintln(d.out, "Data loaded to DB successfully.")

	d.enter(sum, Caching)
	cache := d.openCache(ctx)
	if cache != nil {
		defer cache.Close()
		sum.Cached = d.put(ctx, cache, model.ReposTable, repos)
		sum.Cached = d.put(ctx, cache, model.OwnersTable, owners) && sum.Cached
	}

	d.enter(sum, Reporting)
	if _, err := d.deps.Sink.ExportCSV(ctx, d.deps.CSVPath); err != nil {
		return d.abort(sum, "Error while loading data to CSV", err)
	}
	fmt.Fprintf(d.out, "Data loaded to CSV successfully in %s.\n", d.deps.CSVPath)
	report, err := d.deps.Sink.QueryJoinedReport(ctx)
	if err != nil {
		return d.abort(sum, "Error while querying the report", err)
	}
	sum.ReportRows = len(report)
	if cache != nil {
		sum.Cached = d.put(ctx, cache, model.ResultKey, report) && sum.Cached
	}

	d.enter(sum, Done)
	if cache != nil {
		if err := d.offerCachedViews(ctx, cache); err != nil {
			d.logger.Warn("Could not read operator choice", "error", err)
		}
	}
	fmt.Fprintln(d.out, "Thank you for using the application.")
	d.logger.Info("Natural end of program", "repos", sum.Repositories, "owners", sum.Owners, "report_rows", sum.ReportRows)
	return sum, nil
}

func (d *Driver) authenticate(ctx context.Context) (*oauth2.Token, error) {
	for {
		tok, err := d.deps.Auth.Authenticate(ctx, d.out)
		if err == nil {
			d.logger.Info("Github OAuth token fetched successfully")
			return tok, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		d.logger.Error("Error while getting token from Github API", "error", err)
		fmt.Fprintf(d.out, "Error while getting token from Github API. %v\n", err)
		retry, perr := d.deps.Prompter.Confirm("Would you like to try again?")
		if perr != nil {
			return nil, errors.Join(err, perr)
		}
		if !retry {
			d.logger.Info("User chose not to get Github OAuth token")
			return nil, apperrors.ErrCancelled
		}
		d.logger.Info("Trying to get Github OAuth token again")
	}
}

func (d *Driver) openCache(ctx context.Context) Cache {
	if d.deps.OpenCache == nil {
		return nil
	}
	cache, err := d.deps.OpenCache(ctx)
	if err != nil {
		d.logger.Warn("Cache unavailable, proceeding without cache", "error", err)
		fmt.Fprintf(d.out, "Cache unavailable, proceeding without cache. %v\n", err)
		return nil
	}
	return cache
}

// put stores v and reports success. Cache failures never abort a run.
func (d *Driver) put(ctx context.Context, cache Cache, key string, v any) bool {
	if err := cache.Put(ctx, key, v); err != nil {
		d.logger.Warn("Cache unavailable, proceeding without cache", "key", key, "error", err)
		return false
	}
	return true
}

func (d *Driver) offerCachedViews(ctx context.Context, cache Cache) error {
	p := d.deps.ViewPrompter
	if p == nil {
		p = d.deps.Prompter
	}
	view, err := p.Confirm("Would you like to view the cached repos and owners from Redis?")
	if err != nil {
		return err
	}
	if view {
		d.logger.Info("User chose to view the cached repos and owners")
		var repos model.Repositories
		var owners model.Owners
		if err := errors.Join(cache.Get(ctx, model.ReposTable, &repos), cache.Get(ctx, model.OwnersTable, &owners)); err != nil {
			d.logger.Error("Error while getting data from Redis", "error", err)
			fmt.Fprintf(d.out, "Error while getting data from Redis. %v\n", err)
		} else {
			writeRepositories(d.out, repos)
			writeOwners(d.out, owners)
		}
	}

	view, err = p.Confirm("Would you like to view the cached result from Redis?")
	if err != nil {
		return err
	}
	if view {
		d.logger.Info("User chose to view the cached result")
		var report []model.ReportRow
		if err := cache.Get(ctx, model.ResultKey, &report); err != nil {
			d.logger.Error("Error while getting data from Redis", "error", err)
			fmt.Fprintf(d.out, "Error while getting data from Redis. %v\n", err)
		} else {
			writeReport(d.out, report)
		}
	}
	return nil
}

func (d *Driver) enter(sum *Summary, s State) {
	sum.State = s
	d.logger.Info("Pipeline state changed", "state", s.String())
}

func (d *Driver) abort(sum *Summary, msg string, err error) (*Summary, error) {
	failed := sum.State
	sum.State = Aborted
	if errors.Is(err, apperrors.ErrCancelled) {
		d.logger.Info("Exiting the program", "state", failed.String())
		fmt.Fprintln(d.out, "Exiting the program.")
		return sum, err
	}
	d.logger.Error(msg, "state", failed.String(), "error", err)
	fmt.Fprintf(d.out, "%s. %v\nExiting the program.\n", msg, err)
	return sum, fmt.Errorf("%s: %w", failed, err)
}

func writeRepositories(w io.Writer, repos model.Repositories) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "id\tname\tvisibility\tstargazers_count\towner_id")
	for _, r := range repos {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\n", r.ID, r.Name, r.Visibility, r.StargazersCount, r.OwnerID)
	}
	tw.Flush()
}

func writeOwners(w io.Writer, owners model.Owners) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "id\tlogin\tgravatar_id")
	for _, o := range owners {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", o.ID, o.Login, o.GravatarID)
	}
	tw.Flush()
}

func writeReport(w io.Writer, rows []model.ReportRow) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for i, c := range model.ReportColumns {
		if i > 0 {
			fmt.Fprint(tw, "\t")
		}
		fmt.Fprint(tw, c)
	}
	fmt.Fprintln(tw)
	for _, r := range rows {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%s\t%s\n", r.RepoID, r.RepoName, r.Status, r.StarsCount, r.OwnerID, r.OwnerName, r.OwnerEmail)
	}
	tw.Flush()
}
