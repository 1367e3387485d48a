package core

import "time"

// EventType enumerates cycle events.
type EventType string

const (
	EventCycleStarted    EventType = "cycle_started"
	EventBaselineSaved   EventType = "baseline_saved"
	EventChangesDetected EventType = "changes_detected"
	EventStarRegression  EventType = "star_regression"
	EventCycleSucceeded  EventType = "cycle_succeeded"
	EventCycleFailed     EventType = "cycle_failed"
)

// AllEventTypes lists every event type, for subscribers that want them all.
var AllEventTypes = []EventType{
	EventCycleStarted,
	EventBaselineSaved,
	EventChangesDetected,
	EventStarRegression,
	EventCycleSucceeded,
	EventCycleFailed,
}

// Event represents an immutable cycle event.
type Event struct {
	Type          EventType      `json:"type"`
	Time          time.Time      `json:"time"`
	RunID         string         `json:"run_id"`
	LeaderboardID LeaderboardID  `json:"leaderboard_id"`
	Year          int            `json:"year"`
	Stage         Stage          `json:"stage,omitempty"`
	Duration      time.Duration  `json:"duration,omitempty"`
	Changes       *ChangeSet     `json:"changes,omitempty"`
	Members       int            `json:"members,omitempty"`
	ErrorKind     string         `json:"error_kind,omitempty"`
	Error         string         `json:"error,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

func newEvent(typ EventType, runID string, id LeaderboardID, year int) Event {
	return Event{Type: typ, Time: time.Now().UTC(), RunID: runID, LeaderboardID: id, Year: year}
}

func NewCycleStarted(runID string, id LeaderboardID, year int) Event {
	return newEvent(EventCycleStarted, runID, id, year)
}

func NewBaselineSaved(runID string, id LeaderboardID, year int, members int) Event {
	ev := newEvent(EventBaselineSaved, runID, id, year)
	ev.Members = members
	return ev
}

func NewChangesDetected(runID string, id LeaderboardID, year int, changes ChangeSet) Event {
	ev := newEvent(EventChangesDetected, runID, id, year)
	ev.Changes = &changes
	return ev
}

func NewStarRegression(runID string, id LeaderboardID, year int, regressions []StarRegression) Event {
	ev := newEvent(EventStarRegression, runID, id, year)
	ev.Changes = &ChangeSet{Regressions: regressions}
	return ev
}

func NewCycleSucceeded(runID string, id LeaderboardID, year int, d time.Duration) Event {
	ev := newEvent(EventCycleSucceeded, runID, id, year)
	ev.Stage = StageDone
	ev.Duration = d
	return ev
}

func NewCycleFailed(runID string, id LeaderboardID, year int, stage Stage, d time.Duration, err error) Event {
	ev := newEvent(EventCycleFailed, runID, id, year)
	ev.Stage = stage
	ev.Duration = d
	ev.ErrorKind = ErrorKind(err)
	if err != nil {
		ev.Error = err.Error()
	}
	return ev
}
