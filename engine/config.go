package engine

import (
	"errors"
	"fmt"
	"time"

	"leaderbot/core"
)

// StaticConfig is a Config whose values are fixed at construction.
type StaticConfig struct {
	YearValue int
	ID        core.LeaderboardID
	Creds     core.Credentials
}

// NewStaticConfig builds a StaticConfig. A zero year resolves to the current
// calendar year in local time.
func NewStaticConfig(year int, id core.LeaderboardID, creds core.Credentials) StaticConfig {
	if year == 0 {
		year = CurrentYear(time.Now())
	}
	return StaticConfig{YearValue: year, ID: id, Creds: creds}
}

func (c StaticConfig) Year() int                         { return c.YearValue }
func (c StaticConfig) LeaderboardID() core.LeaderboardID { return c.ID }
func (c StaticConfig) Credentials() core.Credentials     { return c.Creds }

// CurrentYear returns the default event year for t.
func CurrentYear(t time.Time) int { return t.Local().Year() }

// validateConfig checks what a cycle needs before it starts.
func validateConfig(cfg Config) error {
	if cfg == nil {
		return errors.New("config is required")
	}
	if cfg.LeaderboardID() <= 0 {
		return fmt.Errorf("invalid leaderboard id %d", cfg.LeaderboardID())
	}
	if cfg.Year() < 2015 {
		return fmt.Errorf("invalid event year %d", cfg.Year())
	}
	if err := cfg.Credentials().Validate(); err != nil {
		return fmt.Errorf("invalid credentials: %w", err)
	}
	return nil
}
