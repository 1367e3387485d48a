package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"leaderbot/core"
	"leaderbot/core/coretest"
)

func TestReporter_PostsToEndpoints(t *testing.T) {
	var hits int32
	var got Envelope
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		if r.Header.Get("Authorization") != "Bearer t" {
			t.Errorf("missing auth header")
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = r.Body.Close()
	}))
	defer srv.Close()

	cur := core.NewLeaderboard(coretest.Year, 1)
	cur.Members[9] = coretest.Member(9, "Ivy", core.Puzzle{Day: 3, Part: 1})
	rep := New([]string{srv.URL, srv.URL}, WithHeader("Authorization", "Bearer t"))
	err := rep.ReportChanges(context.Background(), core.Report{
		Year: coretest.Year, LeaderboardID: 5, Current: cur, Changes: core.Diff(nil, cur),
	})
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if atomic.LoadInt32(&hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", hits)
	}
	if got.Type != TypeChanges || got.Changes == nil || len(got.Changes.NewMembers) != 1 {
		t.Fatalf("unexpected envelope %+v", got)
	}
}

func TestReporter_ErrorEnvelope(t *testing.T) {
	var got Envelope
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
	}))
	defer srv.Close()

	err := New([]string{srv.URL}).ReportError(context.Background(), core.ErrorReport{
		Year: 2024, LeaderboardID: 5, Stage: core.StageSaving, Kind: "storage.unavailable", Err: errors.New("down"),
	})
	if err != nil {
		t.Fatalf("report error: %v", err)
	}
	if got.Type != TypeError || got.Stage != core.StageSaving || got.ErrorKind != "storage.unavailable" || got.Error != "down" {
		t.Fatalf("unexpected envelope %+v", got)
	}
}

func TestReporter_FailuresAreJoined(t *testing.T) {
	var hits int32
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer good.Close()

	err := New([]string{bad.URL, good.URL}).ReportChanges(context.Background(), core.Report{})
	var re *core.ReportError
	if !errors.As(err, &re) || re.Reporter != "webhook" {
		t.Fatalf("want webhook ReportError, got %v", err)
	}
	if !strings.Contains(err.Error(), "status 500") {
		t.Fatalf("unexpected error %v", err)
	}
	if atomic.LoadInt32(&hits) != 1 {
		t.Fatal("healthy endpoint should still be called")
	}
}

func TestReporter_NoEndpoints(t *testing.T) {
	if err := New(nil).ReportChanges(context.Background(), core.Report{}); err != nil {
		t.Fatalf("no endpoints should be a no-op, got %v", err)
	}
}
