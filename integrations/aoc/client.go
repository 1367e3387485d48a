// Package aoc fetches private leaderboards from the Advent of Code website.
package aoc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"leaderbot/core"
)

const (
	// DefaultBaseURL is the Advent of Code website.
	DefaultBaseURL = "https://adventofcode.com"
	// DefaultInterval is the minimum delay between two requests the website asks for.
	DefaultInterval = 15 * time.Minute
	// DefaultUserAgent identifies the bot to the website.
	DefaultUserAgent = "leaderbot (+https://github.com/leaderbot/leaderbot)"
)

// Client implements engine.Fetcher over HTTP. Requests share one rate limiter.
type Client struct {
	http    *resty.Client
	baseURL string
	limiter *rate.Limiter
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another host, for tests.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.SetTimeout(d)
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.http.SetHeader("User-Agent", ua)
		}
	}
}

// WithRateLimit allows one request per interval with the given burst.
// A zero interval disables limiting.
func WithRateLimit(interval time.Duration, burst int) Option {
	return func(c *Client) {
		if interval <= 0 {
			c.limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Every(interval), burst)
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

func New(opts ...Option) *Client {
	c := &Client{
		http: resty.New().
			SetTimeout(30*time.Second).
			SetHeader("User-Agent", DefaultUserAgent).
			SetHeader("Accept", "application/json").
			// AoC answers a missing access with a redirect; keep it visible.
			SetRedirectPolicy(resty.RedirectPolicyFunc(func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			})),
		baseURL: DefaultBaseURL,
		limiter: rate.NewLimiter(rate.Every(DefaultInterval), 1),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// URL returns the JSON endpoint of a private leaderboard.
func (c *Client) URL(year int, id core.LeaderboardID) string {
	return fmt.Sprintf("%s/%d/leaderboard/private/view/%d.json", c.baseURL, year, id)
}

// Fetch downloads the leaderboard. Errors are *core.FetchError, or the context error.
func (c *Client) Fetch(ctx context.Context, year int, id core.LeaderboardID, creds core.Credentials) (*core.Leaderboard, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, core.NewFetchError(core.FetchTransient, fmt.Errorf("rate limited: %w", err))
		}
	}

	req := c.http.R().SetContext(ctx)
	if key, ok := creds.ViewKey(); ok {
		req.SetQueryParam("view_key", key)
	}
	if cookie, ok := creds.SessionCookie(); ok {
		req.SetCookie(&http.Cookie{Name: "session", Value: cookie})
	}

	start := time.Now()
	resp, err := req.Get(c.URL(year, id))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, core.NewFetchError(core.FetchTransient, err)
	}
	status := resp.StatusCode()
	c.logger.Debug("leaderboard request",
		"leaderboard_id", int64(id), "year", year, "status", status, "duration", time.Since(start))

	if ferr := classify(status, resp.Header().Get("Location")); ferr != nil {
		return nil, ferr
	}

	var lb core.Leaderboard
	if err := json.Unmarshal(resp.Body(), &lb); err != nil {
		return nil, &core.FetchError{Kind: core.FetchMalformed, StatusCode: status, Err: err}
	}
	if lb.Year != 0 && lb.Year != year {
		return nil, &core.FetchError{Kind: core.FetchMalformed, StatusCode: status,
			Err: fmt.Errorf("got event %d, want %d", lb.Year, year)}
	}
	if lb.Members == nil {
		lb.Members = map[core.MemberID]core.Member{}
	}
	return &lb, nil
}

// classify maps a non-success status to a fetch error.
func classify(status int, location string) *core.FetchError {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status >= 300 && status < 400:
		return &core.FetchError{Kind: core.FetchAuthExpired, StatusCode: status,
			Err: fmt.Errorf("%w: redirected to %q", core.ErrNoAccess, location)}
	case status == http.StatusBadRequest, status == http.StatusUnauthorized, status == http.StatusForbidden:
		return &core.FetchError{Kind: core.FetchAuthExpired, StatusCode: status, Err: core.ErrNoAccess}
	case status == http.StatusNotFound:
		return &core.FetchError{Kind: core.FetchNotFound, StatusCode: status, Err: errors.New("leaderboard not found")}
	default:
		return &core.FetchError{Kind: core.FetchTransient, StatusCode: status, Err: fmt.Errorf("unexpected status %d", status)}
	}
}
