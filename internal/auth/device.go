// internal/auth/device.go
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	apperrors "github-repo-etl/internal/errors"
)

const (
	deviceGrantType = "urn:ietf:params:oauth:grant-type:device_code"

	defaultPendingInterval  = 5 * time.Second
	defaultSlowDownInterval = 10 * time.Second
	defaultMaxAttempts      = 180
)

// DeviceFlow runs the OAuth device authorization grant against a GitHub-style
// authorization server.
type DeviceFlow struct {
	config     *oauth2.Config
	httpClient *http.Client
	logger     *slog.Logger

	// PendingInterval is the wait after an authorization_pending answer.
	PendingInterval time.Duration
	// SlowDownInterval is the wait after a slow_down answer.
	SlowDownInterval time.Duration
	// MaxAttempts bounds the number of token requests.
	MaxAttempts int
	// Timeout bounds the total polling time. Zero means only MaxAttempts applies.
	Timeout time.Duration
}

// NewDeviceFlow creates a DeviceFlow for clientID. baseURL is the host serving
// /login/device/code and /login/oauth/access_token, e.g. https://github.com.
func NewDeviceFlow(clientID, baseURL string, httpClient *http.Client, logger *slog.Logger) *DeviceFlow {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	baseURL = strings.TrimRight(baseURL, "/")
	return &DeviceFlow{
		config: &oauth2.Config{
			ClientID: clientID,
			Scopes:   []string{"repo"},
			Endpoint: oauth2.Endpoint{
				AuthURL:       baseURL + "/login/oauth/authorize",
				TokenURL:      baseURL + "/login/oauth/access_token",
				DeviceAuthURL: baseURL + "/login/device/code",
			},
		},
		httpClient:       httpClient,
		logger:           logger,
		PendingInterval:  defaultPendingInterval,
		SlowDownInterval: defaultSlowDownInterval,
		MaxAttempts:      defaultMaxAttempts,
	}
}

// RequestDeviceCode asks the authorization server for a device and user code.
func (d *DeviceFlow) RequestDeviceCode(ctx context.Context) (*oauth2.DeviceAuthResponse, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, d.httpClient)
	resp, err := d.config.DeviceAuth(ctx)
	if err != nil {
		var rErr *oauth2.RetrieveError
		if errors.As(err, &rErr) && rErr.Response != nil {
			return nil, &apperrors.AuthRequestError{StatusCode: rErr.Response.StatusCode, Body: string(rErr.Body), Err: err}
		}
		return nil, &apperrors.AuthRequestError{Err: err}
	}
	if resp.DeviceCode == "" {
		return nil, &apperrors.AuthRequestError{Err: errors.New("response did not contain a device_code")}
	}
	d.logger.Info("Device authorization started", "verification_uri", resp.VerificationURI)
	return resp, nil
}

type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	TokenType        string `json:"token_type"`
	Scope            string `json:"scope"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// PollForToken polls the token endpoint until the user approves or denies
// the request, or the attempt/time budget runs out.
func (d *DeviceFlow) PollForToken(ctx context.Context, deviceCode string) (*oauth2.Token, error) {
	if d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}

	start := time.Now()
	for attempt := 1; ; attempt++ {
		tr, err := d.requestToken(ctx, deviceCode)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return nil, &apperrors.AuthTimeoutError{Attempts: attempt - 1, Elapsed: time.Since(start)}
			}
			return nil, err
		}

		var delay time.Duration
		switch tr.Error {
		case "":
			if tr.AccessToken == "" {
				return nil, &apperrors.AuthDeniedError{Code: "missing_access_token", Description: "token response had neither error nor access_token"}
			}
			d.logger.Info("Device authorization completed", "attempts", attempt)
			tokenType := tr.TokenType
			if tokenType == "" {
				tokenType = "Bearer"
			}
			return &oauth2.Token{AccessToken: tr.AccessToken, TokenType: tokenType}, nil
		case "authorization_pending":
			delay = d.PendingInterval
			d.logger.Info("Authorization pending, polling again", "wait", delay, "attempt", attempt)
		case "slow_down":
			delay = d.SlowDownInterval
			d.logger.Info("Polling too frequently, backing off", "wait", delay, "attempt", attempt)
		default:
			d.logger.Error("Device authorization rejected", "error_code", tr.Error, "description", tr.ErrorDescription)
			return nil, &apperrors.AuthDeniedError{Code: tr.Error, Description: tr.ErrorDescription}
		}

		if attempt >= d.MaxAttempts {
			return nil, &apperrors.AuthTimeoutError{Attempts: attempt, Elapsed: time.Since(start)}
		}
		if err := sleep(ctx, delay); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return nil, &apperrors.AuthTimeoutError{Attempts: attempt, Elapsed: time.Since(start)}
			}
			return nil, err
		}
	}
}

// Authenticate runs the full device flow, printing the user instructions to out.
func (d *DeviceFlow) Authenticate(ctx context.Context, out io.Writer) (*oauth2.Token, error) {
	da, err := d.RequestDeviceCode(ctx)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(out, "Please visit this URL on any device and enter the following code to authorize the application:\n%s\nCode: %s\n", da.VerificationURI, da.UserCode)

	tok, err := d.PollForToken(ctx, da.DeviceCode)
	if err != nil {
		return nil, err
	}
	fmt.Fprintln(out, "Authentication flow completed. Token has been obtained from Github.")
	return tok, nil
}

func (d *DeviceFlow) requestToken(ctx context.Context, deviceCode string) (*tokenResponse, error) {
	form := url.Values{
		"client_id":   {d.config.ClientID},
		"device_code": {deviceCode},
		"grant_type":  {deviceGrantType},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.config.Endpoint.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &apperrors.AuthRequestError{Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &apperrors.AuthRequestError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &apperrors.AuthRequestError{Err: err}
	}

	// RFC 8628 servers answer pending/denied with 400 and a JSON error body;
	// GitHub answers 200. Both carry the same fields.
	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		if resp.StatusCode >= 300 {
			return nil, &apperrors.AuthRequestError{StatusCode: resp.StatusCode, Body: string(body)}
		}
		return nil, &apperrors.DecodeError{Source: d.config.Endpoint.TokenURL, Err: err}
	}
	if resp.StatusCode >= 300 && tr.Error == "" {
		return nil, &apperrors.AuthRequestError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return &tr, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// StaticToken authenticates with a pre-issued token, skipping the device flow.
type StaticToken string

// Authenticate returns the static token.
func (s StaticToken) Authenticate(context.Context, io.Writer) (*oauth2.Token, error) {
	if s == "" {
		return nil, &apperrors.AuthRequestError{Err: errors.New("empty static token")}
	}
	return &oauth2.Token{AccessToken: string(s), TokenType: "Bearer"}, nil
}
