package core

import "fmt"

// Stage names a step of a bot cycle.
type Stage string

const (
	StageStart    Stage = "start"
	StageFetching Stage = "fetching"
	StageLoading  Stage = "loading"
	StageDiffing  Stage = "diffing"
	StageReport   Stage = "reporting"
	StageSaving   Stage = "saving"
	StageDone     Stage = "done"
)

// Report carries everything a reporter needs to announce a change set.
type Report struct {
	Year          int           `json:"year"`
	LeaderboardID LeaderboardID `json:"leaderboard_id"`
	// ViewKey is set when the leaderboard is accessed through a read-only link,
	// so reporters can link to it.
	ViewKey  string       `json:"-"`
	Previous *Leaderboard `json:"previous"`
	Current  *Leaderboard `json:"current"`
	Changes  ChangeSet    `json:"changes"`
}

// URL returns the public page of the leaderboard.
func (r Report) URL() string {
	return LeaderboardURL(r.Year, r.LeaderboardID, r.ViewKey)
}

// ErrorReport describes a failed cycle.
type ErrorReport struct {
	Year          int           `json:"year"`
	LeaderboardID LeaderboardID `json:"leaderboard_id"`
	Stage         Stage         `json:"stage"`
	Kind          string        `json:"kind"`
	Err           error         `json:"-"`
}

// Message is the human readable error text.
func (r ErrorReport) Message() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// LeaderboardURL builds the Advent of Code page URL of a private leaderboard.
func LeaderboardURL(year int, id LeaderboardID, viewKey string) string {
	u := fmt.Sprintf("https://adventofcode.com/%d/leaderboard/private/view/%d", year, id)
	if viewKey != "" {
		u += "?view_key=" + viewKey
	}
	return u
}
