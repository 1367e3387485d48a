// Package webhook reports cycles to generic HTTP endpoints as JSON.
package webhook

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"leaderbot/core"
)

// Envelope is the JSON body posted to every endpoint.
type Envelope struct {
	Type          string             `json:"type"`
	Time          time.Time          `json:"time"`
	Year          int                `json:"year"`
	LeaderboardID core.LeaderboardID `json:"leaderboard_id"`
	URL           string             `json:"url,omitempty"`
	Changes       *core.ChangeSet    `json:"changes,omitempty"`
	Stage         core.Stage         `json:"stage,omitempty"`
	ErrorKind     string             `json:"error_kind,omitempty"`
	Error         string             `json:"error,omitempty"`
}

const (
	TypeChanges = "changes"
	TypeError   = "error"
)

// Reporter posts envelopes to the configured endpoints.
// Delivery is synchronous; every endpoint is tried and failures are joined.
type Reporter struct {
	client    *resty.Client
	endpoints []string
	headers   map[string]string
}

// Option configures a Reporter.
type Option func(*Reporter)

// WithClient overrides the HTTP client (defaults to 5s timeout).
func WithClient(c *http.Client) Option {
	return func(r *Reporter) {
		if c != nil {
			r.client = resty.NewWithClient(c)
		}
	}
}

// WithHeader adds a header to every request, e.g. an Authorization token.
func WithHeader(key, value string) Option {
	return func(r *Reporter) {
		if key != "" {
			r.headers[key] = value
		}
	}
}

// New creates a webhook reporter.
func New(endpoints []string, opts ...Option) *Reporter {
	r := &Reporter{
		client:  resty.New().SetTimeout(5 * time.Second),
		headers: map[string]string{},
	}
	for _, opt := range opts {
		opt(r)
	}
	r.endpoints = append([]string{}, endpoints...)
	return r
}

func (r *Reporter) ReportChanges(ctx context.Context, rep core.Report) error {
	changes := rep.Changes
	return r.post(ctx, Envelope{
		Type:          TypeChanges,
		Time:          time.Now().UTC(),
		Year:          rep.Year,
		LeaderboardID: rep.LeaderboardID,
		URL:           core.LeaderboardURL(rep.Year, rep.LeaderboardID, ""),
		Changes:       &changes,
	})
}

func (r *Reporter) ReportError(ctx context.Context, rep core.ErrorReport) error {
	return r.post(ctx, Envelope{
		Type:          TypeError,
		Time:          time.Now().UTC(),
		Year:          rep.Year,
		LeaderboardID: rep.LeaderboardID,
		Stage:         rep.Stage,
		ErrorKind:     rep.Kind,
		Error:         rep.Message(),
	})
}

func (r *Reporter) post(ctx context.Context, env Envelope) error {
	var errs []error
	for _, ep := range r.endpoints {
		resp, err := r.client.R().
			SetContext(ctx).
			SetHeaders(r.headers).
			SetHeader("Content-Type", "application/json").
			SetBody(env).
			Post(ep)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			errs = append(errs, fmt.Errorf("%s: %w", ep, err))
			continue
		}
		if !resp.IsSuccess() {
			errs = append(errs, fmt.Errorf("%s: status %d", ep, resp.StatusCode()))
		}
	}
	if len(errs) > 0 {
		return &core.ReportError{Reporter: "webhook", Err: errors.Join(errs...)}
	}
	return nil
}

var _ interface {
	ReportChanges(context.Context, core.Report) error
	ReportError(context.Context, core.ErrorReport) error
} = (*Reporter)(nil)
