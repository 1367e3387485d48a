package core_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"leaderbot/core"
)

func TestErrorKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"timeout", fmt.Errorf("fetch: %w", context.DeadlineExceeded), "timeout"},
		{"canceled", context.Canceled, "canceled"},
		{"fetch", &core.FetchError{Kind: core.FetchAuthExpired, StatusCode: 400}, "fetch.auth_expired"},
		{"corrupted", core.Corrupted("load", "k", errors.New("bad json")), "storage.corrupted"},
		{"unavailable", core.Unavailable("save", "k", errors.New("conn refused")), "storage.unavailable"},
		{"report", &core.ReportError{Reporter: "slack", Err: errors.New("500")}, "report.slack"},
		{"regression", fmt.Errorf("member 3: %w", core.ErrStarRegression), "anomaly.star_regression"},
		{"other", errors.New("boom"), "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, core.ErrorKind(tt.err))
		})
	}
}

func TestStorageErrorWrapping(t *testing.T) {
	err := core.Unavailable("load", "leaderboard:1:2024", context.DeadlineExceeded)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, core.ErrStorageUnavailable)

	err = core.Corrupted("load", "leaderboard:1:2024", errors.New("unexpected EOF"))
	assert.ErrorIs(t, err, core.ErrCorruptedState)
	assert.Contains(t, err.Error(), "leaderboard:1:2024")
}

func TestFetchErrorMessage(t *testing.T) {
	err := &core.FetchError{Kind: core.FetchNotFound, StatusCode: 404, Err: errors.New("no such leaderboard")}
	assert.Equal(t, "fetch leaderboard: not_found (status 404): no such leaderboard", err.Error())

	wrapped := fmt.Errorf("cycle: %w", core.NewFetchError(core.FetchTransient, core.ErrNoAccess))
	assert.ErrorIs(t, wrapped, core.ErrNoAccess)
}
