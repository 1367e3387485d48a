// Package slack reports leaderboard changes through a Slack incoming webhook.
package slack

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"leaderbot/core"
	"leaderbot/integrations/message"
	"leaderbot/leaderboard"
)

const (
	DefaultUsername = "Advent of Code"
	DefaultIconURL  = "https://adventofcode.com/favicon.png"
)

// Config holds the webhook settings.
type Config struct {
	WebhookURL string                `json:"webhook_url" yaml:"webhook_url" env:"LEADERBOT_SLACK_WEBHOOK_URL"`
	Channel    string                `json:"channel" yaml:"channel" env:"LEADERBOT_SLACK_CHANNEL"`
	Username   string                `json:"username" yaml:"username" env:"LEADERBOT_SLACK_USERNAME"`
	IconURL    string                `json:"icon_url" yaml:"icon_url" env:"LEADERBOT_SLACK_ICON_URL"`
	SortOrder  leaderboard.SortOrder `json:"sort_order" yaml:"sort_order" env:"LEADERBOT_SLACK_SORT_ORDER"`
}

// Validate checks the webhook URL is set.
func (c Config) Validate() error {
	if c.WebhookURL == "" {
		return errors.New("slack webhook_url is required")
	}
	if _, err := leaderboard.ParseSortOrder(string(c.SortOrder)); err != nil {
		return fmt.Errorf("slack: %w", err)
	}
	return nil
}

// WebhookMessage is the payload of an incoming webhook.
type WebhookMessage struct {
	Channel  string `json:"channel,omitempty"`
	Username string `json:"username,omitempty"`
	IconURL  string `json:"icon_url,omitempty"`
	Text     string `json:"text"`
}

// Reporter posts one message per report.
type Reporter struct {
	cfg  Config
	http *resty.Client
}

// Option configures a Reporter.
type Option func(*Reporter)

// WithClient overrides the HTTP client (defaults to 10s timeout).
func WithClient(c *http.Client) Option {
	return func(r *Reporter) {
		if c != nil {
			r.http = resty.NewWithClient(c)
		}
	}
}

func New(cfg Config, opts ...Option) *Reporter {
	if cfg.Username == "" {
		cfg.Username = DefaultUsername
	}
	if cfg.IconURL == "" {
		cfg.IconURL = DefaultIconURL
	}
	if cfg.SortOrder == "" {
		cfg.SortOrder = leaderboard.SortByStars
	}
	r := &Reporter{cfg: cfg, http: resty.New().SetTimeout(10 * time.Second)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Reporter) ReportChanges(ctx context.Context, rep core.Report) error {
	return r.post(ctx, message.Changes(rep, r.cfg.SortOrder, message.Slack))
}

func (r *Reporter) ReportError(ctx context.Context, rep core.ErrorReport) error {
	return r.post(ctx, message.Error(rep, message.Slack))
}

func (r *Reporter) post(ctx context.Context, text string) error {
	resp, err := r.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(WebhookMessage{
			Channel:  r.cfg.Channel,
			Username: r.cfg.Username,
			IconURL:  r.cfg.IconURL,
			Text:     text,
		}).
		Post(r.cfg.WebhookURL)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &core.ReportError{Reporter: "slack", Err: err}
	}
	if !resp.IsSuccess() {
		return &core.ReportError{Reporter: "slack",
			Err: fmt.Errorf("webhook returned %d: %s", resp.StatusCode(), message.Truncate(resp.String(), 200))}
	}
	return nil
}

var _ interface {
	ReportChanges(context.Context, core.Report) error
	ReportError(context.Context, core.ErrorReport) error
} = (*Reporter)(nil)
