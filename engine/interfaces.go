package engine

import (
	"context"

	"leaderbot/core"
)

// Storage persists the last seen snapshot of a leaderboard, keyed by (id, year).
// Load returns nil and no error when nothing was saved yet for the key.
type Storage interface {
	Load(ctx context.Context, id core.LeaderboardID, year int) (*core.Leaderboard, error)
	Save(ctx context.Context, id core.LeaderboardID, year int, lb *core.Leaderboard) error
}

// ErrorRecorder is implemented by storages that can also remember the kind of
// the last failed cycle. Save clears it.
type ErrorRecorder interface {
	RecordError(ctx context.Context, id core.LeaderboardID, year int, kind string) error
	LastError(ctx context.Context, id core.LeaderboardID, year int) (string, error)
}

// HealthChecker is implemented by storages that can probe their backend.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Reporter announces change sets and cycle failures.
type Reporter interface {
	ReportChanges(ctx context.Context, report core.Report) error
	ReportError(ctx context.Context, report core.ErrorReport) error
}

// Config identifies the leaderboard a cycle monitors.
type Config interface {
	Year() int
	LeaderboardID() core.LeaderboardID
	Credentials() core.Credentials
}

// Fetcher retrieves the current snapshot of a leaderboard.
type Fetcher interface {
	Fetch(ctx context.Context, year int, id core.LeaderboardID, creds core.Credentials) (*core.Leaderboard, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, year int, id core.LeaderboardID, creds core.Credentials) (*core.Leaderboard, error)

func (f FetcherFunc) Fetch(ctx context.Context, year int, id core.LeaderboardID, creds core.Credentials) (*core.Leaderboard, error) {
	return f(ctx, year, id, creds)
}
