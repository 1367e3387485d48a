package discord

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leaderbot/core"
	"leaderbot/core/coretest"
)

type fakeExecutor struct {
	id, token string
	params    []*discordgo.WebhookParams
	err       error
}

func (f *fakeExecutor) WebhookExecute(id, token string, _ bool, data *discordgo.WebhookParams, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.id, f.token = id, token
	f.params = append(f.params, data)
	return &discordgo.Message{}, f.err
}

const hookURL = "https://discord.com/api/webhooks/1234/s3cr3t"

func TestParseWebhookURL(t *testing.T) {
	id, token, err := ParseWebhookURL(hookURL)
	require.NoError(t, err)
	assert.Equal(t, "1234", id)
	assert.Equal(t, "s3cr3t", token)

	for _, bad := range []string{"", "https://discord.com/api/channels/1", "https://discord.com/api/webhooks/1234"} {
		_, _, err := ParseWebhookURL(bad)
		assert.Error(t, err, bad)
	}
}

func TestReportChangesSendsEmbed(t *testing.T) {
	exec := &fakeExecutor{}
	r, err := newWithExecutor(Config{WebhookURL: hookURL}, exec)
	require.NoError(t, err)

	prev := core.NewLeaderboard(coretest.Year, 1)
	prev.Members[1] = coretest.Member(1, "Alice", core.Puzzle{Day: 1, Part: 1})
	cur := prev.Clone()
	alice := cur.Members[1]
	coretest.Solve(&alice, core.Puzzle{Day: 1, Part: 2})
	cur.Members[1] = alice

	err = r.ReportChanges(context.Background(), core.Report{
		Year: coretest.Year, LeaderboardID: coretest.LeaderboardID, Previous: prev, Current: cur, Changes: core.Diff(prev, cur),
	})
	require.NoError(t, err)
	require.Len(t, exec.params, 1)
	assert.Equal(t, "1234", exec.id)
	assert.Equal(t, "s3cr3t", exec.token)

	p := exec.params[0]
	assert.Equal(t, DefaultUsername, p.Username)
	require.Len(t, p.Embeds, 1)
	embed := p.Embeds[0]
	assert.Equal(t, "Leaderboard 424242 (year 2024)", embed.Title)
	assert.Equal(t, core.LeaderboardURL(2024, 424242, ""), embed.URL)
	assert.True(t, strings.Contains(embed.Description, "**"), embed.Description)
	assert.Contains(t, embed.Footer.Text, "1 star(s) gained")
}

func TestReportErrorWrapsFailure(t *testing.T) {
	exec := &fakeExecutor{err: errors.New("HTTP 401 Unauthorized")}
	r, err := newWithExecutor(Config{WebhookURL: hookURL}, exec)
	require.NoError(t, err)

	err = r.ReportError(context.Background(), core.ErrorReport{Year: 2024, LeaderboardID: 1, Stage: core.StageLoading})
	var re *core.ReportError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "discord", re.Reporter)
	assert.Equal(t, colorError, exec.params[0].Embeds[0].Color)
}

func TestCanceledContextSkipsSend(t *testing.T) {
	exec := &fakeExecutor{}
	r, err := newWithExecutor(Config{WebhookURL: hookURL}, exec)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, r.ReportChanges(ctx, core.Report{}), context.Canceled)
	assert.Empty(t, exec.params)
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := New(Config{WebhookURL: "nope"})
	assert.Error(t, err)
}
