// Package discord reports leaderboard changes through a Discord webhook.
package discord

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/bwmarrin/discordgo"

	"leaderbot/core"
	"leaderbot/integrations/message"
	"leaderbot/leaderboard"
)

const (
	DefaultUsername = "Advent of Code"

	// Discord rejects embed descriptions above this many characters.
	maxDescription = 4096
	colorChanges   = 0x00cc00
	colorError     = 0xcc0000
)

// Config holds the webhook settings. WebhookURL has the form
// https://discord.com/api/webhooks/{id}/{token}.
type Config struct {
	WebhookURL string                `json:"webhook_url" yaml:"webhook_url" env:"LEADERBOT_DISCORD_WEBHOOK_URL"`
	Username   string                `json:"username" yaml:"username" env:"LEADERBOT_DISCORD_USERNAME"`
	AvatarURL  string                `json:"avatar_url" yaml:"avatar_url" env:"LEADERBOT_DISCORD_AVATAR_URL"`
	SortOrder  leaderboard.SortOrder `json:"sort_order" yaml:"sort_order" env:"LEADERBOT_DISCORD_SORT_ORDER"`
}

func (c Config) Validate() error {
	if _, _, err := ParseWebhookURL(c.WebhookURL); err != nil {
		return fmt.Errorf("discord: %w", err)
	}
	if _, err := leaderboard.ParseSortOrder(string(c.SortOrder)); err != nil {
		return fmt.Errorf("discord: %w", err)
	}
	return nil
}

// ParseWebhookURL extracts the webhook id and token.
func ParseWebhookURL(raw string) (id, token string, err error) {
	if raw == "" {
		return "", "", errors.New("webhook_url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("invalid webhook_url: %w", err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+2 < len(parts); i++ {
		if parts[i] == "webhooks" && parts[i+1] != "" && parts[i+2] != "" {
			return parts[i+1], parts[i+2], nil
		}
	}
	return "", "", fmt.Errorf("webhook_url %q has no /webhooks/{id}/{token} path", u.Redacted())
}

// webhookExecutor is the part of *discordgo.Session the reporter needs.
type webhookExecutor interface {
	WebhookExecute(webhookID, token string, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Reporter posts one embed per report.
type Reporter struct {
	cfg     Config
	id      string
	token   string
	session webhookExecutor
}

// New builds a reporter backed by a token-less discordgo session; webhooks
// authenticate with the token in their URL.
func New(cfg Config) (*Reporter, error) {
	session, err := discordgo.New("")
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	return newWithExecutor(cfg, session)
}

func newWithExecutor(cfg Config, exec webhookExecutor) (*Reporter, error) {
	id, token, err := ParseWebhookURL(cfg.WebhookURL)
	if err != nil {
		return nil, err
	}
	if cfg.Username == "" {
		cfg.Username = DefaultUsername
	}
	if cfg.SortOrder == "" {
		cfg.SortOrder = leaderboard.SortByStars
	}
	return &Reporter{cfg: cfg, id: id, token: token, session: exec}, nil
}

func (r *Reporter) ReportChanges(ctx context.Context, rep core.Report) error {
	body := message.Changes(rep, r.cfg.SortOrder, message.Discord)
	// the first line is the linked title, which the embed carries itself
	if i := strings.IndexByte(body, '\n'); i >= 0 {
		body = body[i+1:]
	} else {
		body = ""
	}
	title := fmt.Sprintf("Leaderboard %d (year %d)", rep.LeaderboardID, rep.Year)
	summary := fmt.Sprintf("%d new member(s), %d star(s) gained", len(rep.Changes.NewMembers), rep.Changes.StarsGained())
	return r.execute(ctx, &discordgo.MessageEmbed{
		Title:       title,
		URL:         rep.URL(),
		Description: message.Truncate(message.StarsHeader+"\n"+body, maxDescription),
		Color:       colorChanges,
		Footer:      &discordgo.MessageEmbedFooter{Text: summary},
	})
}

func (r *Reporter) ReportError(ctx context.Context, rep core.ErrorReport) error {
	return r.execute(ctx, &discordgo.MessageEmbed{
		Title:       "Leaderbot error",
		Description: message.Truncate(message.Error(rep, message.Discord), maxDescription),
		Color:       colorError,
	})
}

func (r *Reporter) execute(ctx context.Context, embed *discordgo.MessageEmbed) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := r.session.WebhookExecute(r.id, r.token, true, &discordgo.WebhookParams{
		Username:  r.cfg.Username,
		AvatarURL: r.cfg.AvatarURL,
		Embeds:    []*discordgo.MessageEmbed{embed},
	}, discordgo.WithContext(ctx))
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &core.ReportError{Reporter: "discord", Err: err}
	}
	return nil
}

var _ interface {
	ReportChanges(context.Context, core.Report) error
	ReportError(context.Context, core.ErrorReport) error
} = (*Reporter)(nil)
