// internal/github/fetcher.go
package github

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	apperrors "github-repo-etl/internal/errors"
)

const (
	maxBackoff   = 30 * time.Second
	maxBodyBytes = 32 << 20
)

// Fetcher performs authenticated GET requests and retries transient failures
// with exponential backoff.
type Fetcher struct {
	httpClient    *http.Client
	logger        *slog.Logger
	maxRetries    int
	backoffFactor time.Duration
}

// NewFetcher creates a Fetcher. The n-th retry waits backoffFactor * 2^(n-1).
func NewFetcher(httpClient *http.Client, maxRetries int, backoffFactor time.Duration, logger *slog.Logger) *Fetcher {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Fetcher{
		httpClient:    httpClient,
		logger:        logger,
		maxRetries:    maxRetries,
		backoffFactor: backoffFactor,
	}
}

// Get fetches url and returns its JSON body. Statuses 500, 502, 503 and 504
// and connection failures are retried up to maxRetries times; any other
// status of 400 or above fails immediately.
func (f *Fetcher) Get(ctx context.Context, url string, headers http.Header) (json.RawMessage, error) {
	var payload json.RawMessage
	attempt := 0

	op := func() error {
		attempt++
		f.logger.Debug("Sending request", "url", url, "attempt", attempt)

		body, err := f.do(ctx, url, headers)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			var httpErr *apperrors.HTTPError
			if errors.As(err, &httpErr) && !httpErr.Retryable() {
				return backoff.Permanent(err)
			}
			return err
		}

		if err := json.Unmarshal(body, &payload); err != nil {
			return backoff.Permanent(&apperrors.DecodeError{Source: url, Err: err})
		}
		return nil
	}

	notify := func(err error, wait time.Duration) {
		f.logger.Warn("Request failed, retrying", "url", url, "attempt", attempt, "max_retries", f.maxRetries, "wait", wait, "error", err)
	}

	b := backoff.WithContext(backoff.WithMaxRetries(f.newBackOff(), uint64(f.maxRetries)), ctx)
	if err := backoff.RetryNotify(op, b, notify); err != nil {
		f.logger.Error("Request failed", "url", url, "attempts", attempt, "error", err)
		return nil, err
	}
	return payload, nil
}

func (f *Fetcher) do(ctx context.Context, url string, headers http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, backoff.Permanent(&apperrors.TransportError{URL: url, Err: err})
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, &apperrors.TransportError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &apperrors.TransportError{URL: url, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &apperrors.HTTPError{URL: url, StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

func (f *Fetcher) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = f.backoffFactor
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = maxBackoff
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}
