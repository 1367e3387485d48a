package memory

import (
	"context"
	"testing"

	"leaderbot/core/coretest"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := New()

	lb, err := s.Load(ctx, coretest.LeaderboardID, coretest.Year)
	if err != nil || lb != nil {
		t.Fatalf("want absent, got %v %v", lb, err)
	}

	saved := coretest.Leaderboard(coretest.Member(1, "a", coretest.P(1, 1)))
	if err := s.Save(ctx, coretest.LeaderboardID, coretest.Year, saved); err != nil {
		t.Fatal(err)
	}
	got, err := s.Load(ctx, coretest.LeaderboardID, coretest.Year)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(saved) {
		t.Fatalf("loaded snapshot differs: %+v", got)
	}

	// stored copy is isolated from the caller
	m := got.Members[1]
	m.Stars = 99
	got.Members[1] = m
	again, _ := s.Load(ctx, coretest.LeaderboardID, coretest.Year)
	if again.Members[1].Stars != 1 {
		t.Fatalf("store aliased caller data: %d", again.Members[1].Stars)
	}

	if other, _ := s.Load(ctx, coretest.LeaderboardID, coretest.Year+1); other != nil {
		t.Fatal("years must be stored separately")
	}
}

func TestMemoryStoreLastError(t *testing.T) {
	ctx := context.Background()
	s := New()

	if err := s.RecordError(ctx, 1, 2024, "fetch.transient"); err != nil {
		t.Fatal(err)
	}
	if lb, _ := s.Load(ctx, 1, 2024); lb != nil {
		t.Fatal("recording an error must not create a snapshot")
	}
	if kind, _ := s.LastError(ctx, 1, 2024); kind != "fetch.transient" {
		t.Fatalf("got %q", kind)
	}
	if err := s.Save(ctx, 1, 2024, coretest.Leaderboard()); err != nil {
		t.Fatal(err)
	}
	if kind, _ := s.LastError(ctx, 1, 2024); kind != "" {
		t.Fatalf("save should clear last error, got %q", kind)
	}
	if _, ok := s.UpdatedAt(1, 2024); !ok {
		t.Fatal("expected update time")
	}
}

func TestMemoryStoreCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := New()
	if err := s.Save(ctx, 1, 2024, coretest.Leaderboard()); err == nil {
		t.Fatal("expected context error")
	}
}
