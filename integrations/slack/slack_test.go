package slack

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leaderbot/core"
	"leaderbot/core/coretest"
)

func TestReportChangesPostsMessage(t *testing.T) {
	var got WebhookMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	r := New(Config{WebhookURL: srv.URL, Channel: "#aoc"}, WithClient(srv.Client()))
	cur := core.NewLeaderboard(coretest.Year, 1)
	cur.Members[1] = coretest.Member(1, "Alice", core.Puzzle{Day: 1, Part: 1})

	err := r.ReportChanges(context.Background(), core.Report{
		Year: coretest.Year, LeaderboardID: coretest.LeaderboardID, Current: cur, Changes: core.Diff(nil, cur),
	})
	require.NoError(t, err)
	assert.Equal(t, "#aoc", got.Channel)
	assert.Equal(t, DefaultUsername, got.Username)
	assert.Equal(t, DefaultIconURL, got.IconURL)
	assert.True(t, strings.Contains(got.Text, "*"), "expected mrkdwn bold marker in %q", got.Text)
	assert.Contains(t, got.Text, "Alice")
}

func TestReportErrorNonSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid_token", http.StatusForbidden)
	}))
	defer srv.Close()

	r := New(Config{WebhookURL: srv.URL})
	err := r.ReportError(context.Background(), core.ErrorReport{Year: 2024, LeaderboardID: 1, Stage: core.StageFetching})

	var re *core.ReportError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "slack", re.Reporter)
	assert.Contains(t, err.Error(), "403")
	assert.Equal(t, "report.slack", core.ErrorKind(err))
}

func TestReportUnreachable(t *testing.T) {
	r := New(Config{WebhookURL: "http://127.0.0.1:1/hook"})
	err := r.ReportChanges(context.Background(), core.Report{Current: core.NewLeaderboard(2024, 1)})
	var re *core.ReportError
	assert.True(t, errors.As(err, &re))
}

func TestConfigValidate(t *testing.T) {
	assert.Error(t, Config{}.Validate())
	assert.Error(t, Config{WebhookURL: "http://x", SortOrder: "name"}.Validate())
	assert.NoError(t, Config{WebhookURL: "http://x", SortOrder: "score"}.Validate())
}
