package bot

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	mem "leaderbot/adapters/memory"
	"leaderbot/analytics"
	"leaderbot/core"
	"leaderbot/core/coretest"
	"leaderbot/engine"
	"leaderbot/integrations/console"
	"leaderbot/realtime"
)

type recorder struct {
	changes int
	errs    int
}

func (r *recorder) ReportChanges(context.Context, core.Report) error { r.changes++; return nil }
func (r *recorder) ReportError(context.Context, core.ErrorReport) error {
	r.errs++
	return nil
}

func fixedFetcher(lb *core.Leaderboard) engine.Fetcher {
	return engine.FetcherFunc(func(context.Context, int, core.LeaderboardID, core.Credentials) (*core.Leaderboard, error) {
		return lb.Clone(), nil
	})
}

func TestNewDefaultsAndOptions(t *testing.T) {
	lb := core.NewLeaderboard(coretest.Year, 1)
	lb.Members[1] = coretest.Member(1, "Alice", core.Puzzle{Day: 1, Part: 1})

	hub := realtime.NewHub()
	_, ch := hub.Subscribe(8)
	svc, err := analytics.NewService()
	if err != nil {
		t.Fatalf("analytics: %v", err)
	}
	store := mem.New()
	a := New(fixedFetcher(lb),
		WithStorage(store),
		WithRealtime(hub),
		WithAnalytics(svc),
		WithDispatchMode(engine.DispatchSync),
	)
	defer a.Close()

	cfg := engine.NewStaticConfig(coretest.Year, coretest.LeaderboardID, core.ViewKey("vk"))
	res, err := a.Bot.Run(context.Background(), cfg)
	if err != nil || !res.FirstRun || !res.Saved {
		t.Fatalf("first run: %+v err=%v", res, err)
	}

	// realtime bridge should receive the cycle events
	ev := <-ch
	if ev.Type != core.EventCycleStarted || ev.LeaderboardID != coretest.LeaderboardID {
		t.Fatalf("unexpected event: %+v", ev)
	}
	st, ok := svc.Stats().Get(coretest.LeaderboardID, coretest.Year)
	if !ok || st.Successes != 1 {
		t.Fatalf("unexpected stats: %+v", st)
	}
	if saved, _ := store.Load(context.Background(), coretest.LeaderboardID, coretest.Year); saved == nil {
		t.Fatal("baseline not saved to the configured storage")
	}
}

func TestMultipleReporters(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	failing := engine.FetcherFunc(func(context.Context, int, core.LeaderboardID, core.Credentials) (*core.Leaderboard, error) {
		return nil, &core.FetchError{Kind: core.FetchTransient, Err: errors.New("boom")}
	})
	asm := New(failing, WithReporter(a), WithReporter(b), WithDispatchMode(engine.DispatchSync))
	defer asm.Close()

	cfg := engine.NewStaticConfig(coretest.Year, coretest.LeaderboardID, core.ViewKey("vk"))
	if _, err := asm.Bot.Run(context.Background(), cfg); err == nil {
		t.Fatal("expected cycle error")
	}
	if a.errs != 1 || b.errs != 1 {
		t.Fatalf("each reporter should see one error report, got %d and %d", a.errs, b.errs)
	}
}

func TestConsoleFallback(t *testing.T) {
	lb := core.NewLeaderboard(coretest.Year, 1)
	var out bytes.Buffer
	asm := New(fixedFetcher(lb), WithReporter(console.New(console.WithOutput(&out))))
	defer asm.Close()

	cfg := engine.NewStaticConfig(coretest.Year, coretest.LeaderboardID, core.ViewKey("vk"))
	if _, err := asm.Bot.RunWith(context.Background(), cfg, engine.RunOptions{DryRun: true}); err != nil {
		t.Fatalf("dry run: %v", err)
	}
	if !strings.Contains(out.String(), "Leaderboard 424242") {
		t.Fatalf("unexpected console output %q", out.String())
	}
}
