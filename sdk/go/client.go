package sdk

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"leaderbot/core"
)

// Option configures the Client.
type Option func(*Client)

// Client provides typed access to the leaderbot status API and event stream.
type Client struct {
	baseURL    string
	wsURL      string
	httpClient *http.Client
	headers    http.Header
}

// NewClient constructs a new SDK client targeting the given baseURL (e.g., http://localhost:8080/api).
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("baseURL is required")
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	c := &Client{
		baseURL:    baseURL,
		wsURL:      deriveWSURL(baseURL),
		httpClient: http.DefaultClient,
		headers:    make(http.Header),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithAuthToken adds an Authorization: Bearer token header to all requests (HTTP + WS).
func WithAuthToken(token string) Option {
	return func(c *Client) {
		if strings.TrimSpace(token) != "" {
			c.headers.Set("Authorization", "Bearer "+token)
		}
	}
}

// WithAPIKey adds an X-API-Key header.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		if strings.TrimSpace(key) != "" {
			c.headers.Set("X-API-Key", key)
		}
	}
}

// WithHeader sets an arbitrary header applied to HTTP and WS calls.
func WithHeader(k, v string) Option {
	return func(c *Client) {
		if k != "" {
			c.headers.Set(k, v)
		}
	}
}

// GetLeaderboard fetches the stored snapshot. A missing snapshot is an
// *APIError with status 404.
func (c *Client) GetLeaderboard(ctx context.Context, id core.LeaderboardID, year int) (Snapshot, error) {
	var s Snapshot
	err := c.do(ctx, http.MethodGet, leaderboardPath(id, year), nil, &s)
	return s, err
}

// Standings fetches the ranked members; order is "stars", "score" or empty.
func (c *Client) Standings(ctx context.Context, id core.LeaderboardID, year int, order string) ([]Standing, error) {
	q := url.Values{}
	if order != "" {
		q.Set("sort", order)
	}
	var body struct {
		Standings []Standing `json:"standings"`
	}
	if err := c.do(ctx, http.MethodGet, leaderboardPath(id, year)+"/standings", q, &body); err != nil {
		return nil, err
	}
	return body.Standings, nil
}

// Stats fetches the cycle aggregates kept by the server since it started.
func (c *Client) Stats(ctx context.Context, id core.LeaderboardID, year int) (Stats, error) {
	var st Stats
	err := c.do(ctx, http.MethodGet, leaderboardPath(id, year)+"/stats", nil, &st)
	return st, err
}

// Run triggers one cycle of the configured leaderboard. A failed cycle
// returns the partial result together with a *CycleFailedError.
func (c *Client) Run(ctx context.Context, dryRun bool) (RunResult, error) {
	q := url.Values{}
	if dryRun {
		q.Set("dry_run", "true")
	}
	var body struct {
		Result RunResult `json:"result"`
		Error  string    `json:"error"`
		Kind   string    `json:"error_kind"`
	}
	err := c.do(ctx, http.MethodPost, "/run", q, &body)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusBadGateway {
		return body.Result, &CycleFailedError{Stage: body.Result.Stage, Kind: body.Kind, Message: body.Error}
	}
	if err != nil {
		return RunResult{}, err
	}
	return body.Result, nil
}

// Health probes /healthz and returns status + storage check. An unhealthy
// server answers 503, which is reported in the status rather than as an error.
func (c *Client) Health(ctx context.Context) (HealthStatus, error) {
	var hs HealthStatus
	err := c.do(ctx, http.MethodGet, "/healthz", nil, &hs)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusServiceUnavailable && hs.Status != "" {
		return hs, nil
	}
	return hs, err
}

// SubscribeEvents connects to the WebSocket stream and emits core.Event values.
// A zero id and no types stream everything.
// The returned channel closes when ctx is done or the connection drops.
func (c *Client) SubscribeEvents(ctx context.Context, id core.LeaderboardID, types ...core.EventType) (<-chan core.Event, error) {
	if c.wsURL == "" {
		return nil, errors.New("wsURL is not set; ensure baseURL is http/https")
	}
	u, err := url.Parse(c.wsURL)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	if id != 0 {
		q.Set("leaderboard_id", strconv.FormatInt(int64(id), 10))
	}
	if len(types) > 0 {
		names := make([]string, len(types))
		for i, t := range types {
			names[i] = string(t)
		}
		q.Set("types", strings.Join(names, ","))
	}
	u.RawQuery = q.Encode()

	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, u.String(), c.headers)
	if err != nil {
		return nil, err
	}

	out := make(chan core.Event, 32)
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()
	go func() {
		defer close(out)
		defer conn.Close()
		for {
			var evt core.Event
			if err := conn.ReadJSON(&evt); err != nil {
				return
			}
			select {
			case out <- evt:
			case <-ctx.Done():
				return
			default:
				// drop if consumer is slow
			}
		}
	}()
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values, target any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return err
	}
	c.applyHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeJSON(resp, target)
}

func (c *Client) applyHeaders(r *http.Request) {
	for k, vals := range c.headers {
		for _, v := range vals {
			r.Header.Add(k, v)
		}
	}
}

func leaderboardPath(id core.LeaderboardID, year int) string {
	return fmt.Sprintf("/leaderboards/%d/%d", id, year)
}

func deriveWSURL(httpBase string) string {
	u, err := url.Parse(httpBase)
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	default:
		// leave as-is for custom schemes
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	return u.String()
}
