package sdk

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"leaderbot/core"
)

// Snapshot mirrors GET /leaderboards/{id}/{year}.
type Snapshot struct {
	LeaderboardID core.LeaderboardID `json:"leaderboard_id"`
	Year          int                `json:"year"`
	LastError     string             `json:"last_error,omitempty"`
	Leaderboard   *core.Leaderboard  `json:"leaderboard"`
}

// Standing is one ranked member.
type Standing struct {
	Rank       int           `json:"rank"`
	MemberID   core.MemberID `json:"member_id"`
	Name       string        `json:"name"`
	Stars      int           `json:"stars"`
	LocalScore int64         `json:"local_score"`
	LastStarTS int64         `json:"last_star_ts"`
}

// Stats mirrors the server's per-leaderboard aggregates.
type Stats struct {
	Runs           int64            `json:"runs"`
	Successes      int64            `json:"successes"`
	Failures       int64            `json:"failures"`
	FailuresByKind map[string]int64 `json:"failures_by_kind"`
	StarsGained    int64            `json:"stars_gained"`
	NewMembers     int64            `json:"new_members"`
	Regressions    int64            `json:"regressions"`
	StarsByDay     map[string]int64 `json:"stars_by_day"`
	LastSuccess    time.Time        `json:"last_success"`
	LastFailure    time.Time        `json:"last_failure"`
	LastError      string           `json:"last_error"`
}

// RunResult summarizes a cycle started through the API.
type RunResult struct {
	RunID         string             `json:"run_id"`
	Year          int                `json:"year"`
	LeaderboardID core.LeaderboardID `json:"leaderboard_id"`
	Stage         core.Stage         `json:"stage"`
	Changes       core.ChangeSet     `json:"changes"`
	FirstRun      bool               `json:"first_run"`
	Reported      bool               `json:"reported"`
	Saved         bool               `json:"saved"`
	DryRun        bool               `json:"dry_run"`
	Duration      time.Duration      `json:"duration"`
}

// HealthStatus describes the /healthz response.
type HealthStatus struct {
	Status string         `json:"status"`
	Checks map[string]any `json:"checks"`
}

// APIError is a non-2xx answer of the server.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("request failed: status %d", e.Status)
	}
	return fmt.Sprintf("request failed: status %d: %s: %s", e.Status, e.Code, e.Message)
}

// CycleFailedError reports a cycle that ran and failed.
type CycleFailedError struct {
	Stage   core.Stage
	Kind    string
	Message string
}

func (e *CycleFailedError) Error() string {
	return fmt.Sprintf("cycle failed while %s [%s]: %s", e.Stage, e.Kind, e.Message)
}

// decodeJSON decodes the body into target. Error responses are decoded as
// well, so callers can read partial payloads, and return an *APIError.
func decodeJSON(resp *http.Response, target any) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{Status: resp.StatusCode}
		_ = json.Unmarshal(body, apiErr)
		_ = json.Unmarshal(body, target)
		return apiErr
	}
	return json.Unmarshal(body, target)
}
