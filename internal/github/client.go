// internal/github/client.go
package github

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/go-github/v62/github"
	"golang.org/x/oauth2"

	apperrors "github-repo-etl/internal/errors"
)

// Client lists the authenticated user's repositories.
type Client struct {
	fetcher *Fetcher
	baseURL string
	logger  *slog.Logger
}

// NewHTTPClient returns an http.Client that sends token as a Bearer credential.
func NewHTTPClient(ctx context.Context, token string) *http.Client {
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	return oauth2.NewClient(ctx, ts)
}

// NewClient creates a Client that fetches from baseURL, e.g. https://api.github.com.
func NewClient(fetcher *Fetcher, baseURL string, logger *slog.Logger) *Client {
	return &Client{
		fetcher: fetcher,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

// ListUserRepos fetches GET /user/repos and decodes it into go-github repositories.
func (c *Client) ListUserRepos(ctx context.Context) ([]*github.Repository, error) {
	url := c.baseURL + "/user/repos"
	headers := http.Header{
		"Accept":               {"application/vnd.github+json"},
		"X-GitHub-Api-Version": {"2022-11-28"},
	}

	raw, err := c.fetcher.Get(ctx, url, headers)
	if err != nil {
		return nil, err
	}

	var repos []*github.Repository
	if err := json.Unmarshal(raw, &repos); err != nil {
		return nil, &apperrors.DecodeError{Source: url, Err: err}
	}
	c.logger.Info("Data fetched successfully from Github", "count", len(repos))
	return repos, nil
}
